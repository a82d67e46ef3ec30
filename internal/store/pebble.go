package store

import (
	"context"
	"errors"

	"github.com/cockroachdb/pebble"
)

// PebbleStore keeps the durable slots in an embedded Pebble database.
type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens (or creates) a Pebble database at path.
// If path is empty, defaults to "./data/pebble"
func NewPebbleStore(path string) (*PebbleStore, error) {
	if path == "" {
		path = "./data/pebble"
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

// Get retrieves the value stored under key.
func (s *PebbleStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set writes value under key with a synced write.
func (s *PebbleStore) Set(ctx context.Context, key string, value []byte) error {
	return s.db.Set([]byte(key), value, pebble.Sync)
}

// Ping reports whether the database is still open.
func (s *PebbleStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("pebble closed")
	}
	return nil
}

// Close closes the database.
func (s *PebbleStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
