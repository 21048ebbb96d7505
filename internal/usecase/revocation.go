package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/core/port"
)

const tracerName = "github.com/Mohhit1230/Chat-App/internal/usecase"

// RemoteConnector dials the remote revocation backend. It returns
// domain.ErrConfigurationIncomplete when connection settings are missing.
type RemoteConnector func(ctx context.Context) (port.RemoteRevocationBackend, error)

// RevocationOptions tunes timeouts and background loops of the revocation service.
type RevocationOptions struct {
	OperationTimeout  time.Duration
	HealthInterval    time.Duration
	ReconnectInterval time.Duration
	HashKeys          bool
}

// backendState is an immutable snapshot of the active backend. Readers load it
// once per operation so Put and IsRevoked never straddle a switch.
type backendState struct {
	mode    domain.BackendMode
	backend port.RevocationBackend
	remote  port.RemoteRevocationBackend
}

// RevocationService serves token revocation from Redis while it is healthy and
// from process memory once Redis faults, without surfacing the switch to callers.
type RevocationService struct {
	state    atomic.Pointer[backendState]
	fallback port.LocalRevocationBackend
	connect  RemoteConnector
	metrics  port.RevocationMetrics
	tracer   trace.Tracer
	logger   *zap.Logger

	opTimeout         time.Duration
	healthInterval    time.Duration
	reconnectInterval time.Duration
	hashKeys          bool
	canReconnect      bool

	// reconnectMu is held for writing across a reconnect and for reading by
	// Delete, so a lifted revocation cannot be copied back into Redis.
	reconnectMu sync.RWMutex
	now         func() time.Time
}

// NewRevocationService builds the service and picks its initial backend. A nil
// connector, incomplete configuration or a failed dial all start it degraded.
func NewRevocationService(ctx context.Context, fallback port.LocalRevocationBackend, connect RemoteConnector, opts RevocationOptions, logger *zap.Logger) (*RevocationService, error) {
	if fallback == nil {
		return nil, fmt.Errorf("fallback revocation backend is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	service := &RevocationService{
		fallback:          fallback,
		connect:           connect,
		tracer:            otel.Tracer(tracerName),
		logger:            logger,
		opTimeout:         opts.OperationTimeout,
		healthInterval:    opts.HealthInterval,
		reconnectInterval: opts.ReconnectInterval,
		hashKeys:          opts.HashKeys,
	}
	if service.opTimeout <= 0 {
		service.opTimeout = 2 * time.Second
	}
	if service.healthInterval <= 0 {
		service.healthInterval = 5 * time.Second
	}
	service.now = func() time.Time { return time.Now().UTC() }

	service.bootstrap(ctx)
	return service, nil
}

// WithMetrics injects telemetry hooks and publishes the current mode.
func (s *RevocationService) WithMetrics(metrics port.RevocationMetrics) *RevocationService {
	if metrics != nil {
		s.metrics = metrics
		metrics.SetMode(s.Mode())
	}
	return s
}

// WithTracer overrides the tracer used for store operation spans.
func (s *RevocationService) WithTracer(tracer trace.Tracer) *RevocationService {
	if tracer != nil {
		s.tracer = tracer
	}
	return s
}

// WithClock overrides the clock used to compute remaining TTLs during reconnection.
func (s *RevocationService) WithClock(clock func() time.Time) *RevocationService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Mode reports the active backend mode.
func (s *RevocationService) Mode() domain.BackendMode {
	return s.state.Load().mode
}

// Key returns the store key used for token.
func (s *RevocationService) Key(token string) string {
	token = strings.TrimSpace(token)
	if token == "" || !s.hashKeys {
		return token
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Put revokes token for ttl. Non-positive TTLs are ignored.
func (s *RevocationService) Put(ctx context.Context, token string, ttl time.Duration) error {
	return s.PutKey(ctx, s.Key(token), ttl)
}

// PutKey revokes an already-derived store key for ttl.
func (s *RevocationService) PutKey(ctx context.Context, key string, ttl time.Duration) error {
	if key == "" || ttl <= 0 {
		return nil
	}
	return s.exec(ctx, "put", func(ctx context.Context, backend port.RevocationBackend) error {
		return backend.Put(ctx, key, ttl)
	})
}

// IsRevoked reports whether token carries an unexpired revocation. An error
// means neither backend could answer and the caller must treat the token as unusable.
func (s *RevocationService) IsRevoked(ctx context.Context, token string) (bool, error) {
	key := s.Key(token)
	if key == "" {
		return false, nil
	}

	var revoked bool
	err := s.exec(ctx, "is_revoked", func(ctx context.Context, backend port.RevocationBackend) error {
		var err error
		revoked, err = backend.IsRevoked(ctx, key)
		return err
	})
	if err != nil {
		return false, err
	}
	return revoked, nil
}

// Delete lifts the revocation of token before it expires. It waits for an
// in-flight reconnect to finish.
func (s *RevocationService) Delete(ctx context.Context, token string) error {
	key := s.Key(token)
	if key == "" {
		return nil
	}

	s.reconnectMu.RLock()
	defer s.reconnectMu.RUnlock()

	if err := s.exec(ctx, "delete", func(ctx context.Context, backend port.RevocationBackend) error {
		return backend.Delete(ctx, key)
	}); err != nil {
		return err
	}
	// Entries migrated to Redis on reconnect are still held in memory.
	return s.fallback.Delete(ctx, key)
}

// Watch probes the live backend and sweeps expired in-memory entries until ctx is done.
// When a reconnect interval is configured it also tries to return to Redis.
func (s *RevocationService) Watch(ctx context.Context) {
	health := time.NewTicker(s.healthInterval)
	defer health.Stop()

	var reconnect <-chan time.Time
	if s.canReconnect && s.reconnectInterval > 0 {
		ticker := time.NewTicker(s.reconnectInterval)
		defer ticker.Stop()
		reconnect = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-health.C:
			s.CheckHealth(ctx)
		case <-reconnect:
			if _, err := s.Reconnect(ctx); err != nil {
				s.logger.Debug("redis reconnect attempt failed", zap.Error(err))
			}
		}
	}
}

// CheckHealth pings the live backend, failing over on error, and prunes the fallback.
func (s *RevocationService) CheckHealth(ctx context.Context) {
	if removed := s.fallback.Prune(s.now()); removed > 0 {
		s.logger.Debug("pruned expired in-memory revocations", zap.Int("removed", removed))
	}

	state := s.state.Load()
	if state.remote == nil {
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	err := state.remote.HealthCheck(pingCtx)
	cancel()
	if err != nil && ctx.Err() == nil {
		s.degrade(state, "health_check", err)
	}
}

// HealthCheck runs a health probe for readiness reporting. A failed probe
// fails over rather than erroring, since the fallback keeps serving.
func (s *RevocationService) HealthCheck(ctx context.Context) error {
	s.CheckHealth(ctx)
	return ctx.Err()
}

// Reconnect dials Redis while degraded, copies the in-memory revocations into it
// and switches back to live. It reports whether the switch happened.
func (s *RevocationService) Reconnect(ctx context.Context) (bool, error) {
	if !s.canReconnect {
		return false, domain.ErrConfigurationIncomplete
	}

	s.reconnectMu.Lock()
	defer s.reconnectMu.Unlock()

	state := s.state.Load()
	if state.mode == domain.BackendModeLive {
		return false, nil
	}

	remote, err := s.connect(ctx)
	if err != nil {
		return false, fmt.Errorf("dial remote revocation backend: %w", err)
	}
	if err := s.migrate(ctx, remote); err != nil {
		_ = remote.Close()
		return false, err
	}

	next := &backendState{mode: domain.BackendModeLive, backend: remote, remote: remote}
	if !s.state.CompareAndSwap(state, next) {
		_ = remote.Close()
		return false, nil
	}
	s.logger.Info("redis reconnected, revocations served from redis again")
	s.observeTransition(domain.BackendModeDegraded, domain.BackendModeLive)

	// Second pass for entries written to memory between the first pass and the swap.
	if err := s.migrate(ctx, remote); err != nil {
		s.degrade(next, "reconnect", err)
		return false, err
	}
	return true, nil
}

// Close releases the remote backend; later operations are served from memory.
func (s *RevocationService) Close() error {
	previous := s.state.Swap(&backendState{mode: domain.BackendModeDegraded, backend: s.fallback})
	if previous == nil || previous.remote == nil {
		return nil
	}
	if err := previous.remote.Close(); err != nil {
		return fmt.Errorf("close remote revocation backend: %w", err)
	}
	return nil
}

func (s *RevocationService) bootstrap(ctx context.Context) {
	degraded := &backendState{mode: domain.BackendModeDegraded, backend: s.fallback}

	if s.connect == nil {
		s.logger.Info("no redis configured, using in-memory store for tokens")
		s.state.Store(degraded)
		return
	}

	remote, err := s.connect(ctx)
	switch {
	case errors.Is(err, domain.ErrConfigurationIncomplete):
		s.logger.Info("no redis configured, using in-memory store for tokens")
		s.state.Store(degraded)
	case err != nil:
		s.logger.Warn("redis connection failed, using in-memory store", zap.Error(err))
		s.canReconnect = true
		s.state.Store(degraded)
	default:
		s.logger.Info("redis connected, revocations served from redis")
		s.canReconnect = true
		s.state.Store(&backendState{mode: domain.BackendModeLive, backend: remote, remote: remote})
	}
}

// exec runs fn against the active backend. A live-backend fault switches to the
// fallback and retries fn there once; caller cancellation never triggers a switch.
func (s *RevocationService) exec(ctx context.Context, op string, fn func(context.Context, port.RevocationBackend) error) error {
	ctx, span := s.tracer.Start(ctx, "revocation."+op)
	defer span.End()

	state := s.state.Load()
	span.SetAttributes(attribute.String("revocation.mode", string(state.mode)))

	if state.remote == nil {
		if err := fn(ctx, state.backend); err != nil {
			span.RecordError(err)
			return fmt.Errorf("%w: %s: %v", domain.ErrBackendUnavailable, op, err)
		}
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	err := fn(opCtx, state.backend)
	cancel()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	span.RecordError(err)
	s.degrade(state, op, err)
	span.AddEvent("failover", trace.WithAttributes(attribute.String("revocation.mode", string(domain.BackendModeDegraded))))

	if err := fn(ctx, s.fallback); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrBackendUnavailable, op, err)
	}
	return nil
}

// degrade swaps from to the fallback. Only the caller that wins the swap logs
// and closes the abandoned remote backend.
func (s *RevocationService) degrade(from *backendState, op string, cause error) {
	next := &backendState{mode: domain.BackendModeDegraded, backend: s.fallback}
	if !s.state.CompareAndSwap(from, next) {
		return
	}

	s.logger.Warn("redis connection error, using in-memory store",
		zap.String("operation", op),
		zap.Error(cause),
	)
	s.observeTransition(domain.BackendModeLive, domain.BackendModeDegraded)

	go func(remote port.RemoteRevocationBackend) {
		if err := remote.Close(); err != nil {
			s.logger.Debug("close abandoned redis backend", zap.Error(err))
		}
	}(from.remote)
}

func (s *RevocationService) migrate(ctx context.Context, remote port.RevocationBackend) error {
	now := s.now()
	for _, entry := range s.fallback.Entries() {
		ttl := entry.Remaining(now)
		if ttl <= 0 {
			continue
		}
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		err := remote.Put(opCtx, entry.Identifier, ttl)
		cancel()
		if err != nil {
			return fmt.Errorf("migrate revocation entries: %w", err)
		}
	}
	return nil
}

func (s *RevocationService) observeTransition(from, to domain.BackendMode) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(from, to)
	}
}

var _ port.RevocationStore = (*RevocationService)(nil)
