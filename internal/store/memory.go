package store

import (
	"context"
	"sync"
)

// Memory returns a process-local store. Used when persistence is disabled
// and as the backend for service tests.
func Memory() DocStore {
	return &memStore{docs: map[string]string{}}
}

type memStore struct {
	mu   sync.Mutex
	docs map[string]string
}

func (s *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.docs[key]
	return v, ok, nil
}

func (s *memStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = value
	return nil
}

func (s *memStore) Close() error { return nil }
