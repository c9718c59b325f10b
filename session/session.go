// Package session owns the persisted answer to "who is logged in and with
// what token". The Manager is the single writer of the session record; the
// token manager and feature services read through it. Absence of a session
// is a normal state everywhere in this package: methods return empty values
// for it, never errors.
package session

import "time"

// Storage keys within the opaque KV store. The cache prefix groups the
// account/plan blobs screens persist; logout clears them en masse.
const (
	sessionKey   = "selfcare.session"
	usernameKey  = "selfcare.username"
	passwordKey  = "selfcare.password"
	tenantKey    = "selfcare.tenant"
	baseURLKey   = "selfcare.base_url"
	biometricKey = "selfcare.biometric"
	pinKey       = "selfcare.pin"
	cachePrefix  = "selfcare.cache."
)

// Session is the persisted record of the authenticated device user.
// An empty Token with IsLoggedIn still true is the degraded-but-repairable
// state: regeneration is expected to fill it before the next call rather
// than forcing a fresh login.
type Session struct {
	IsLoggedIn       bool      `json:"isLoggedIn"`
	Username         string    `json:"username"`
	Token            string    `json:"token"`
	LastLoginTime    time.Time `json:"lastLoginTime"`
	LastActivityTime time.Time `json:"lastActivityTime"`
	// SessionExpiry is reserved. Time-based expiry is not active behavior;
	// sessions are valid until explicit logout.
	SessionExpiry time.Time `json:"sessionExpiry,omitempty"`
	ClientName    string    `json:"clientName,omitempty"`
}

// valid reports whether the record identifies a logged-in user. Token is
// deliberately not part of validity.
func (s *Session) valid() bool {
	return s != nil && s.IsLoggedIn && s.Username != ""
}

// Check is the tri-state answer of CheckBeforeCall.
type Check struct {
	Valid          bool
	ShouldRedirect bool
	Message        string
}

// Diagnosis reports structural problems found in the persisted state.
// NeedsReset recommends a hard Reset; a missing token alone never sets it.
type Diagnosis struct {
	NeedsReset bool
	Issues     []string
}
