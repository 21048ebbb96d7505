package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/core/port"
)

// RevocationMetricsOptions configures the revocation collectors.
type RevocationMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
}

// RevocationMetrics exposes Prometheus collectors for auth decisions and backend failover.
type RevocationMetrics struct {
	Decisions   *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Mode        *prometheus.GaugeVec
}

// NewRevocationMetrics constructs the collectors and registers them with the provided registerer.
func NewRevocationMetrics(opts RevocationMetricsOptions) (*RevocationMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "chat"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	decisions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "decisions_total",
		Help:      "Auth gate decisions partitioned by outcome and deny reason.",
	}, []string{"outcome", "reason"}))
	if err != nil {
		return nil, fmt.Errorf("register decisions collector: %w", err)
	}

	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "revocation",
		Name:      "backend_transitions_total",
		Help:      "Revocation backend switches partitioned by source and target mode.",
	}, []string{"from", "to"}))
	if err != nil {
		return nil, fmt.Errorf("register transitions collector: %w", err)
	}

	mode := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "revocation",
		Name:      "backend_mode",
		Help:      "Active revocation backend mode; the active mode reports 1.",
	}, []string{"mode"})
	if err := reg.Register(mode); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register mode collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.GaugeVec)
		if !ok {
			return nil, fmt.Errorf("existing mode collector has unexpected type %T", already.ExistingCollector)
		}
		mode = existing
	}

	return &RevocationMetrics{
		Decisions:   decisions,
		Transitions: transitions,
		Mode:        mode,
	}, nil
}

// ObserveDecision counts a gate decision.
func (m *RevocationMetrics) ObserveDecision(decision domain.AuthDecision) {
	if m == nil {
		return
	}
	if decision.Allowed {
		m.Decisions.WithLabelValues("allowed", "").Inc()
		return
	}
	m.Decisions.WithLabelValues("denied", string(decision.Reason)).Inc()
}

// ObserveTransition counts a backend switch and updates the mode gauge.
func (m *RevocationMetrics) ObserveTransition(from, to domain.BackendMode) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(string(from), string(to)).Inc()
	m.SetMode(to)
}

// SetMode marks mode as the active backend.
func (m *RevocationMetrics) SetMode(mode domain.BackendMode) {
	if m == nil {
		return
	}
	for _, candidate := range []domain.BackendMode{domain.BackendModeLive, domain.BackendModeDegraded} {
		value := 0.0
		if candidate == mode {
			value = 1
		}
		m.Mode.WithLabelValues(string(candidate)).Set(value)
	}
}

func registerCounterVec(reg prometheus.Registerer, collector *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(collector); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return collector, nil
}

var _ port.RevocationMetrics = (*RevocationMetrics)(nil)
