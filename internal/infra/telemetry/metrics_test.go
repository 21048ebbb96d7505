package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
)

func TestRevocationMetricsRecordsDecisionsAndMode(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewRevocationMetrics(RevocationMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create revocation metrics: %v", err)
	}

	metrics.ObserveDecision(domain.Allow("token", &domain.Claims{Email: "a@b.c"}))
	metrics.ObserveDecision(domain.Deny(domain.DenyReasonRevoked))
	metrics.ObserveDecision(domain.Deny(domain.DenyReasonRevoked))

	if got := testutil.ToFloat64(metrics.Decisions.WithLabelValues("allowed", "")); got != 1 {
		t.Fatalf("expected 1 allowed decision, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Decisions.WithLabelValues("denied", "revoked")); got != 2 {
		t.Fatalf("expected 2 revoked decisions, got %f", got)
	}

	metrics.SetMode(domain.BackendModeLive)
	metrics.ObserveTransition(domain.BackendModeLive, domain.BackendModeDegraded)

	if got := testutil.ToFloat64(metrics.Transitions.WithLabelValues("live", "degraded")); got != 1 {
		t.Fatalf("expected 1 transition, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Mode.WithLabelValues("degraded")); got != 1 {
		t.Fatalf("expected degraded gauge 1, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Mode.WithLabelValues("live")); got != 0 {
		t.Fatalf("expected live gauge 0, got %f", got)
	}
}

func TestRevocationMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewRevocationMetrics(RevocationMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	second, err := NewRevocationMetrics(RevocationMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}
	if first.Decisions != second.Decisions {
		t.Fatalf("expected collectors to be shared across registrations")
	}
}

func TestRevocationMetricsNilSafe(t *testing.T) {
	var metrics *RevocationMetrics
	metrics.ObserveDecision(domain.Deny(domain.DenyReasonExpired))
	metrics.ObserveTransition(domain.BackendModeLive, domain.BackendModeDegraded)
}
