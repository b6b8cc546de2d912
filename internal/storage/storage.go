// Package storage provides the durable key-value port backing session and
// state persistence. One logical record per state domain, keyed by the
// domain identifier. Absence of a record is a valid first-run state.
package storage

import (
	"context"
	"sync"
)

// Store is the durable key-value port. Implementations must treat a missing
// record as (nil, false, nil) rather than an error.
type Store interface {
	Get(ctx context.Context, domain string) ([]byte, bool, error)
	Set(ctx context.Context, domain string, blob []byte) error
	Remove(ctx context.Context, domain string) error
}

type memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory returns an in-memory Store. State held by it does not survive
// process restart; it backs tests and the rememberMe=false session mode.
func NewMemory() Store {
	return &memory{m: make(map[string][]byte)}
}

func (s *memory) Get(_ context.Context, domain string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.m[domain]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (s *memory) Set(_ context.Context, domain string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[domain] = append([]byte(nil), blob...)
	return nil
}

func (s *memory) Remove(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, domain)
	return nil
}
