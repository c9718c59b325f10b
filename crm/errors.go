package crm

import (
	"errors"
	"strings"
)

// NetworkMessage is the fixed user-facing text shown for any transport
// failure. The raw transport error is kept as the cause but never shown.
const NetworkMessage = "Please check your internet connection"

// authPhrases are the backend message fragments that mean the bearer token
// is no longer valid, matched case-insensitively at envelope-parse time.
var authPhrases = []string{
	"token expired",
	"unauthorized",
	"invalid token",
	"authentication failed",
}

// passwordRejectPhrase is how some CRMs report an expired token on
// password-login tenants. Only classified as auth-expired when the tenant
// descriptor opts in: on every other tenant it is a plain login-validation
// failure.
const passwordRejectPhrase = "invalid username or password"

// AuthError is the backend rejecting the bearer token. It is the signal the
// token manager regenerates on.
type AuthError struct {
	Message string
	Code    int
}

func (e *AuthError) Error() string { return e.Message }

// BusinessError is a status=error envelope unrelated to authentication
// (e.g. "No Complaints Found"). It must never trigger regeneration and is
// propagated to the caller verbatim.
type BusinessError struct {
	Message string
	Code    int
}

func (e *BusinessError) Error() string { return e.Message }

// NetworkError is a transport-level failure (connection refused, DNS,
// timeout) or an unparseable response. Its message is always
// NetworkMessage; the underlying error is available via Unwrap.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string { return NetworkMessage }
func (e *NetworkError) Unwrap() error { return e.Cause }

// IsAuthExpired reports whether err means the token should be regenerated.
// Typed AuthErrors from this package classify directly; anything else falls
// back to the historical message-fragment match so errors that crossed a
// layer that stripped the type still classify. Network failures are
// deliberately not auth-shaped: a connectivity blip must not burn a
// regeneration attempt.
func IsAuthExpired(err error) bool {
	if err == nil {
		return false
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range authPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// IsBusiness reports whether err is a non-auth backend rejection.
func IsBusiness(err error) bool {
	var bizErr *BusinessError
	return errors.As(err, &bizErr)
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// classifyEnvelope turns a status=error envelope into the right typed error
// for the tenant.
func classifyEnvelope(message string, code int, passwordRejectIsAuth bool) error {
	lower := strings.ToLower(message)
	for _, phrase := range authPhrases {
		if strings.Contains(lower, phrase) {
			return &AuthError{Message: message, Code: code}
		}
	}
	if passwordRejectIsAuth && strings.Contains(lower, passwordRejectPhrase) {
		return &AuthError{Message: message, Code: code}
	}
	return &BusinessError{Message: message, Code: code}
}
