package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/core/port"
	"github.com/Mohhit1230/Chat-App/internal/repository/memory"
	redisrepo "github.com/Mohhit1230/Chat-App/internal/repository/redis"
)

func miniredisConnector(server *miniredis.Miniredis) RemoteConnector {
	return func(ctx context.Context) (port.RemoteRevocationBackend, error) {
		client := red.NewClient(&red.Options{Addr: server.Addr(), MaxRetries: -1})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, err
		}
		return redisrepo.NewRevocationRepository(client, "test:revoked"), nil
	}
}

func staticConnector(remote port.RemoteRevocationBackend) RemoteConnector {
	return func(context.Context) (port.RemoteRevocationBackend, error) {
		return remote, nil
	}
}

func newTestService(t *testing.T, connect RemoteConnector, opts RevocationOptions) (*RevocationService, *memory.RevocationRepository) {
	t.Helper()

	fallback := memory.NewRevocationRepository()
	service, err := NewRevocationService(context.Background(), fallback, connect, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewRevocationService returned error: %v", err)
	}
	t.Cleanup(func() { _ = service.Close() })
	return service, fallback
}

func assertRevoked(t *testing.T, service *RevocationService, token string, want bool) {
	t.Helper()

	got, err := service.IsRevoked(context.Background(), token)
	if err != nil {
		t.Fatalf("IsRevoked(%q) returned error: %v", token, err)
	}
	if got != want {
		t.Fatalf("IsRevoked(%q) = %v, want %v", token, got, want)
	}
}

func TestRevocationService_IncompleteConfigStartsDegraded(t *testing.T) {
	incomplete := func(context.Context) (port.RemoteRevocationBackend, error) {
		return nil, domain.ErrConfigurationIncomplete
	}
	service, _ := newTestService(t, incomplete, RevocationOptions{})

	if mode := service.Mode(); mode != domain.BackendModeDegraded {
		t.Fatalf("expected degraded mode, got %s", mode)
	}
	if _, err := service.Reconnect(context.Background()); !errors.Is(err, domain.ErrConfigurationIncomplete) {
		t.Fatalf("expected reconnect to be refused without configuration, got %v", err)
	}

	ctx := context.Background()
	assertRevoked(t, service, "never-put", false)

	if err := service.Put(ctx, "token", time.Hour); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	assertRevoked(t, service, "token", true)

	if err := service.Delete(ctx, "token"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	assertRevoked(t, service, "token", false)

	_ = service.Put(ctx, "zero", 0)
	_ = service.Put(ctx, "negative", -time.Minute)
	assertRevoked(t, service, "zero", false)
	assertRevoked(t, service, "negative", false)
}

func TestRevocationService_NilConnectorStartsDegraded(t *testing.T) {
	service, _ := newTestService(t, nil, RevocationOptions{})
	if mode := service.Mode(); mode != domain.BackendModeDegraded {
		t.Fatalf("expected degraded mode, got %s", mode)
	}
}

func TestRevocationService_DegradedEntriesExpire(t *testing.T) {
	service, _ := newTestService(t, nil, RevocationOptions{})
	ctx := context.Background()

	if err := service.Put(ctx, "short-lived", 50*time.Millisecond); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	assertRevoked(t, service, "short-lived", true)

	time.Sleep(80 * time.Millisecond)
	assertRevoked(t, service, "short-lived", false)
}

func TestRevocationService_LiveUsesRedis(t *testing.T) {
	server := miniredis.RunT(t)
	service, fallback := newTestService(t, miniredisConnector(server), RevocationOptions{})
	ctx := context.Background()

	if mode := service.Mode(); mode != domain.BackendModeLive {
		t.Fatalf("expected live mode, got %s", mode)
	}

	if err := service.Put(ctx, "token-live", time.Minute); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if !server.Exists("test:revoked:token-live") {
		t.Fatalf("expected revocation to be written to redis")
	}
	if fallback.Len() != 0 {
		t.Fatalf("expected in-memory store to stay empty while live")
	}
	assertRevoked(t, service, "token-live", true)

	server.FastForward(time.Minute)
	assertRevoked(t, service, "token-live", false)
}

func TestRevocationService_ConnectionLossFailsOver(t *testing.T) {
	server := miniredis.RunT(t)
	metrics := &stubRevocationMetrics{}
	service, _ := newTestService(t, miniredisConnector(server), RevocationOptions{OperationTimeout: 500 * time.Millisecond})
	service.WithMetrics(metrics)
	ctx := context.Background()

	if err := service.Put(ctx, "before-switch", time.Hour); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	server.Close()

	// Entries written only to redis before the switch are lost; the lookup
	// itself must still succeed against the fallback.
	assertRevoked(t, service, "before-switch", false)
	if mode := service.Mode(); mode != domain.BackendModeDegraded {
		t.Fatalf("expected degraded mode after connection loss, got %s", mode)
	}

	if err := service.Put(ctx, "after-switch", time.Hour); err != nil {
		t.Fatalf("Put after switch returned error: %v", err)
	}
	assertRevoked(t, service, "after-switch", true)

	transitions, mode := metrics.snapshot()
	if len(transitions) != 1 || transitions[0] != (transition{from: domain.BackendModeLive, to: domain.BackendModeDegraded}) {
		t.Fatalf("expected a single live->degraded transition, got %+v", transitions)
	}
	if mode != domain.BackendModeDegraded {
		t.Fatalf("expected metrics mode degraded, got %s", mode)
	}
}

func TestRevocationService_PutRetriedOnFallbackAfterFault(t *testing.T) {
	remote := newStubRemoteBackend()
	service, fallback := newTestService(t, staticConnector(remote), RevocationOptions{})

	remote.fail(errors.New("connection reset by peer"))

	if err := service.Put(context.Background(), "token", time.Hour); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if fallback.Len() != 1 {
		t.Fatalf("expected put to be retried against the fallback")
	}
	assertRevoked(t, service, "token", true)

	deadline := time.Now().Add(time.Second)
	for !remote.isClosed() {
		if time.Now().After(deadline) {
			t.Fatalf("expected abandoned remote backend to be closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRevocationService_TimeoutFailsOver(t *testing.T) {
	remote := newStubRemoteBackend()
	remote.block = true
	service, _ := newTestService(t, staticConnector(remote), RevocationOptions{OperationTimeout: 20 * time.Millisecond})

	assertRevoked(t, service, "token", false)
	if mode := service.Mode(); mode != domain.BackendModeDegraded {
		t.Fatalf("expected hung backend to trigger failover, got %s", mode)
	}
}

func TestRevocationService_CallerCancellationKeepsLive(t *testing.T) {
	remote := newStubRemoteBackend()
	remote.block = true
	service, _ := newTestService(t, staticConnector(remote), RevocationOptions{OperationTimeout: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := service.IsRevoked(ctx, "token"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected caller deadline to surface, got %v", err)
	}
	if mode := service.Mode(); mode != domain.BackendModeLive {
		t.Fatalf("expected caller cancellation not to switch backends, got %s", mode)
	}
}

func TestRevocationService_HealthCheckFailsOver(t *testing.T) {
	remote := newStubRemoteBackend()
	service, _ := newTestService(t, staticConnector(remote), RevocationOptions{})

	service.CheckHealth(context.Background())
	if mode := service.Mode(); mode != domain.BackendModeLive {
		t.Fatalf("expected healthy backend to stay live, got %s", mode)
	}

	remote.mu.Lock()
	remote.health = errors.New("i/o timeout")
	remote.mu.Unlock()

	service.CheckHealth(context.Background())
	if mode := service.Mode(); mode != domain.BackendModeDegraded {
		t.Fatalf("expected failed ping to switch to degraded, got %s", mode)
	}
}

func TestRevocationService_WatchDetectsOutage(t *testing.T) {
	server := miniredis.RunT(t)
	service, _ := newTestService(t, miniredisConnector(server), RevocationOptions{
		OperationTimeout: 200 * time.Millisecond,
		HealthInterval:   10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go service.Watch(ctx)

	server.Close()

	deadline := time.Now().Add(2 * time.Second)
	for service.Mode() != domain.BackendModeDegraded {
		if time.Now().After(deadline) {
			t.Fatalf("expected watcher to detect outage")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRevocationService_ReconnectMigratesEntries(t *testing.T) {
	remote := newStubRemoteBackend()
	attempts := 0
	connect := func(context.Context) (port.RemoteRevocationBackend, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return remote, nil
	}

	service, _ := newTestService(t, connect, RevocationOptions{})
	ctx := context.Background()

	if mode := service.Mode(); mode != domain.BackendModeDegraded {
		t.Fatalf("expected failed dial to start degraded, got %s", mode)
	}
	if err := service.Put(ctx, "revoked-while-degraded", time.Hour); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	switched, err := service.Reconnect(ctx)
	if err != nil {
		t.Fatalf("Reconnect returned error: %v", err)
	}
	if !switched || service.Mode() != domain.BackendModeLive {
		t.Fatalf("expected reconnect to switch to live")
	}

	ttl, ok := remote.ttl("revoked-while-degraded")
	if !ok {
		t.Fatalf("expected in-memory revocation to be migrated to the remote backend")
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected migrated ttl within (0, 1h], got %v", ttl)
	}
	assertRevoked(t, service, "revoked-while-degraded", true)

	if switched, err := service.Reconnect(ctx); err != nil || switched {
		t.Fatalf("expected reconnect while live to be a no-op, got %v, %v", switched, err)
	}
}

func TestRevocationService_DeleteClearsBothBackends(t *testing.T) {
	remote := newStubRemoteBackend()
	attempts := 0
	connect := func(context.Context) (port.RemoteRevocationBackend, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return remote, nil
	}
	service, fallback := newTestService(t, connect, RevocationOptions{})
	ctx := context.Background()

	_ = service.Put(ctx, "token", time.Hour)
	if _, err := service.Reconnect(ctx); err != nil {
		t.Fatalf("Reconnect returned error: %v", err)
	}

	if err := service.Delete(ctx, "token"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, ok := remote.ttl("token"); ok {
		t.Fatalf("expected remote entry to be deleted")
	}
	if fallback.Len() != 0 {
		t.Fatalf("expected in-memory copy to be deleted")
	}
}

func TestRevocationService_DeleteDuringReconnectStaysDeleted(t *testing.T) {
	remote := newStubRemoteBackend()
	attempts := 0
	connect := func(context.Context) (port.RemoteRevocationBackend, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return remote, nil
	}
	service, fallback := newTestService(t, connect, RevocationOptions{})
	ctx := context.Background()

	if err := service.Put(ctx, "tok", time.Hour); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	deleted := make(chan error, 1)
	var once sync.Once
	remote.mu.Lock()
	remote.onPut = func(key string) {
		if key != "tok" {
			return
		}
		once.Do(func() {
			go func() { deleted <- service.Delete(ctx, "tok") }()
		})
	}
	remote.mu.Unlock()

	switched, err := service.Reconnect(ctx)
	if err != nil || !switched {
		t.Fatalf("expected reconnect to switch to live, got %v, %v", switched, err)
	}

	select {
	case err := <-deleted:
		if err != nil {
			t.Fatalf("Delete returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Delete did not complete after reconnect")
	}

	if service.Mode() != domain.BackendModeLive {
		t.Fatalf("expected live mode, got %s", service.Mode())
	}
	assertRevoked(t, service, "tok", false)
	if _, ok := remote.ttl("tok"); ok {
		t.Fatalf("expected migrated copy to be removed from the remote backend")
	}
	if fallback.Len() != 0 {
		t.Fatalf("expected in-memory copy to be deleted")
	}
}

func TestRevocationService_HashKeys(t *testing.T) {
	remote := newStubRemoteBackend()
	service, _ := newTestService(t, staticConnector(remote), RevocationOptions{HashKeys: true})

	sum := sha256.Sum256([]byte("raw-token"))
	want := hex.EncodeToString(sum[:])
	if got := service.Key("raw-token"); got != want {
		t.Fatalf("expected hashed key %s, got %s", want, got)
	}

	_ = service.Put(context.Background(), "raw-token", time.Minute)
	if _, ok := remote.ttl(want); !ok {
		t.Fatalf("expected hashed key to be stored")
	}
	if _, ok := remote.ttl("raw-token"); ok {
		t.Fatalf("expected raw token not to be stored")
	}
	assertRevoked(t, service, "raw-token", true)
}

func TestRevocationService_ConcurrentFailover(t *testing.T) {
	server := miniredis.RunT(t)
	metrics := &stubRevocationMetrics{}
	service, _ := newTestService(t, miniredisConnector(server), RevocationOptions{OperationTimeout: 500 * time.Millisecond})
	service.WithMetrics(metrics)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := service.IsRevoked(ctx, "token"); err != nil {
					t.Errorf("IsRevoked returned error during failover: %v", err)
					return
				}
			}
		}()
	}
	server.Close()
	wg.Wait()

	if _, err := service.IsRevoked(ctx, "token"); err != nil {
		t.Fatalf("IsRevoked returned error: %v", err)
	}
	if mode := service.Mode(); mode != domain.BackendModeDegraded {
		t.Fatalf("expected degraded mode, got %s", mode)
	}
	transitions, _ := metrics.snapshot()
	if len(transitions) != 1 {
		t.Fatalf("expected exactly one transition, got %d", len(transitions))
	}
}

func TestRevocationService_CloseServesFromMemory(t *testing.T) {
	remote := newStubRemoteBackend()
	service, _ := newTestService(t, staticConnector(remote), RevocationOptions{})

	if err := service.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !remote.isClosed() {
		t.Fatalf("expected remote backend to be closed")
	}
	if err := service.Put(context.Background(), "token", time.Minute); err != nil {
		t.Fatalf("Put after Close returned error: %v", err)
	}
	assertRevoked(t, service, "token", true)
}

func TestRevocationService_HealthCheckReportsReadyWhileDegraded(t *testing.T) {
	remote := newStubRemoteBackend()
	remote.health = errors.New("connection refused")
	service, _ := newTestService(t, staticConnector(remote), RevocationOptions{})

	if err := service.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected readiness to hold after failover, got %v", err)
	}
	if mode := service.Mode(); mode != domain.BackendModeDegraded {
		t.Fatalf("expected failed probe to fail over, got %s", mode)
	}
}
