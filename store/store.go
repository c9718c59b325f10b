// Package store defines the opaque key-value persistence contract the
// session layer is built on. Values are strings; a missing key is a normal
// outcome, not an error. Implementations must be safe for concurrent use.
package store

// KV is the persistence boundary for session and credential data.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	// Set writes value under key, replacing any previous value.
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Keys lists every stored key with the given prefix.
	Keys(prefix string) ([]string, error)
}
