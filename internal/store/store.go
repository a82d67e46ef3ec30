package store

import (
	"context"
	"errors"
	"fmt"
)

// Keys of the durable slots.
const (
	ConversationKey = "conversation-log"
	ThemeKey        = "theme"
)

// ErrNotFound is returned by Backend.Get when the key has never been set.
var ErrNotFound = errors.New("key not found")

// Backend is a durable key-value slot store.
// MemoryStore, FileStore, SQLiteStore, PostgresStore, RedisStore and
// PebbleStore implement this interface.
type Backend interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Connection management
	Ping(ctx context.Context) error
	Close() error
}

// PersistenceError reports a failed durable read or write. The in-memory
// state that triggered the write has already advanced.
type PersistenceError struct {
	Op  string // "load" or "persist"
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceFailure checks if err carries a PersistenceError.
func IsPersistenceFailure(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
