package store

import (
	"context"
	"errors"
	"sync"
)

// ErrQuotaExceeded is returned by MemoryStore when a write would exceed its quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// MemoryStore keeps values in process memory. A positive quota caps the
// total stored bytes, which mimics a browser storage quota.
type MemoryStore struct {
	mu      sync.RWMutex
	values  map[string][]byte
	quota   int
	failGet error
}

// NewMemoryStore creates a MemoryStore. quota <= 0 means unlimited.
func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte), quota: quota}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failGet != nil {
		return nil, s.failGet
	}
	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota > 0 {
		total := len(value)
		for k, v := range s.values {
			if k != key {
				total += len(v)
			}
		}
		if total > s.quota {
			return ErrQuotaExceeded
		}
	}

	v := make([]byte, len(value))
	copy(v, value)
	s.values[key] = v
	return nil
}

// SetQuota changes the byte quota. quota <= 0 means unlimited.
func (s *MemoryStore) SetQuota(quota int) {
	s.mu.Lock()
	s.quota = quota
	s.mu.Unlock()
}

// FailReads makes every Get return err until called with nil.
func (s *MemoryStore) FailReads(err error) {
	s.mu.Lock()
	s.failGet = err
	s.mu.Unlock()
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
