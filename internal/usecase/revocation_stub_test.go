package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
)

// stubRemoteBackend is a controllable remote backend for failover tests.
type stubRemoteBackend struct {
	mu      sync.Mutex
	entries map[string]time.Duration
	err     error
	block   bool
	closed  bool
	health  error
	onPut   func(key string)
}

func newStubRemoteBackend() *stubRemoteBackend {
	return &stubRemoteBackend{entries: make(map[string]time.Duration)}
}

func (s *stubRemoteBackend) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *stubRemoteBackend) wait(ctx context.Context) error {
	s.mu.Lock()
	block, err := s.block, s.err
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *stubRemoteBackend) Put(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	hook := s.onPut
	s.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	s.mu.Lock()
	s.entries[key] = ttl
	s.mu.Unlock()
	return nil
}

func (s *stubRemoteBackend) IsRevoked(ctx context.Context, key string) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	_, ok := s.entries[key]
	s.mu.Unlock()
	return ok, nil
}

func (s *stubRemoteBackend) Delete(ctx context.Context, key string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *stubRemoteBackend) HealthCheck(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

func (s *stubRemoteBackend) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *stubRemoteBackend) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stubRemoteBackend) ttl(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ttl, ok := s.entries[key]
	return ttl, ok
}

type transition struct {
	from domain.BackendMode
	to   domain.BackendMode
}

type stubRevocationMetrics struct {
	mu          sync.Mutex
	decisions   []domain.AuthDecision
	transitions []transition
	mode        domain.BackendMode
}

func (m *stubRevocationMetrics) ObserveDecision(decision domain.AuthDecision) {
	m.mu.Lock()
	m.decisions = append(m.decisions, decision)
	m.mu.Unlock()
}

func (m *stubRevocationMetrics) ObserveTransition(from, to domain.BackendMode) {
	m.mu.Lock()
	m.transitions = append(m.transitions, transition{from: from, to: to})
	m.mode = to
	m.mu.Unlock()
}

func (m *stubRevocationMetrics) SetMode(mode domain.BackendMode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
}

func (m *stubRevocationMetrics) snapshot() ([]transition, domain.BackendMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transition(nil), m.transitions...), m.mode
}
