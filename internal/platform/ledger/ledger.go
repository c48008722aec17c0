// Package ledger is the key-addressed record store the engine runs on.
// Records are JSON payloads addressed by deterministic composite keys; all
// mutation happens inside an all-or-nothing Update transaction.
package ledger

import (
	"context"
	"strings"

	"github.com/m4a/m4a/internal/protocol"
)

// Key builds a composite key from a domain tag and identifying parts.
// Parts must not contain the separator; in practice they are addresses,
// names and formatted integers.
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// Tx is a single transaction over the store. Implementations are not safe
// for concurrent use; a Tx never outlives its View/Update callback.
type Tx interface {
	// Get unmarshals the record at key into v. protocol.ErrNotFound if absent.
	Get(key string, v any) error
	// Has reports whether a record exists at key.
	Has(key string) (bool, error)
	// Create writes v at key. protocol.ErrAlreadyExists if the key is taken.
	Create(key string, v any) error
	// Put writes v at key, creating or overwriting.
	Put(key string, v any) error
	// Delete removes the record at key. protocol.ErrNotFound if absent.
	Delete(key string) error
	// List returns the keys under prefix, in ascending key order.
	List(prefix string) ([]string, error)
}

// Store is a transactional record store.
type Store interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Tx) error) error
	// Update runs fn in a writable transaction. If fn returns an error the
	// store is left exactly as it was.
	Update(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// errNotFound and errExists keep backends honest about the taxonomy.
var (
	errNotFound = protocol.ErrNotFound
	errExists   = protocol.ErrAlreadyExists
)
