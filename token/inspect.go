package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ispkit/selfcare/session"
)

// expiryAdvisoryWindow is how close to a JWT exp claim CheckBeforeCall
// starts reporting the token as expiring.
const expiryAdvisoryWindow = 5 * time.Minute

// InspectExpiry reads the exp claim out of a bearer token without verifying
// it, for tenants whose CRM issues JWTs. The result is advisory only: it
// lets a caller skip a request that is certain to fail. Opaque (non-JWT)
// tokens simply report no expiry.
func InspectExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// ExpiringSoon reports whether the token is a JWT whose exp claim falls
// within the window from now.
func ExpiringSoon(token string, window time.Duration) bool {
	exp, ok := InspectExpiry(token)
	if !ok {
		return false
	}
	return time.Until(exp) < window
}

// CheckBeforeCall decides what an authenticated call should do before it
// starts. On top of the session-level check it inspects a JWT token's exp
// claim and flags one that is about to lapse, without a network round-trip.
func (m *Manager) CheckBeforeCall() session.Check {
	check := m.sessions.CheckBeforeCall()
	if !check.Valid {
		return check
	}
	if tok, err := m.sessions.Token(); err == nil && ExpiringSoon(tok, expiryAdvisoryWindow) {
		check.Message = "token expiring"
	}
	return check
}
