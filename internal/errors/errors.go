package errors

import (
	"errors"
	"fmt"
)

// Common error types for the self-care client core
var (
	// Session errors
	ErrNoSession = errors.New("no active session")

	// Authentication errors
	ErrAuthRequired   = errors.New("authentication required")
	ErrLoginAgain     = errors.New("authentication failed, please login again")
	ErrNoCredentials  = errors.New("no stored credentials")
	ErrRegenThrottled = errors.New("token regeneration throttled")

	// Tenant errors
	ErrTenantNotFound = errors.New("tenant not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
