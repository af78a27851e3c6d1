// Package blob provides the opaque key/value persistence used by the cache.
// Documents are read and written whole; there are no partial updates.
package blob

import "errors"

// ErrNotFound is returned when no document exists for a key.
var ErrNotFound = errors.New("blob not found")

// Store is the persistence collaborator. Implementations must make Write
// atomic per key: a reader never observes a half-written document.
type Store interface {
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	Delete(key string) error
	// Keys returns all keys with the given prefix, in unspecified order.
	Keys(prefix string) ([]string, error)
}
