package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/enterprise-authz/internal/infra/config"
	"github.com/arklim/enterprise-authz/internal/usecase"
)

// Provider represents a telemetry provider handle.
type Provider struct {
	decisionCounter *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

// Attach configures telemetry exporters and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	decisionCounter := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authz",
		Name:      "decisions_total",
		Help:      "Authorization decisions by result and source",
	}, []string{"result", "source"})

	cacheLookups := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authz",
		Name:      "decision_cache_lookups_total",
		Help:      "Decision cache lookups by outcome",
	}, []string{"outcome"})

	return &Provider{
		decisionCounter: decisionCounter,
		cacheLookups:    cacheLookups,
	}, nil
}

// ObserveDecision counts one authorization decision.
func (p *Provider) ObserveDecision(result, source string) {
	if p == nil {
		return
	}
	p.decisionCounter.WithLabelValues(result, source).Inc()
}

// ObserveCacheLookup counts one decision cache lookup.
func (p *Provider) ObserveCacheLookup(hit bool) {
	if p == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	p.cacheLookups.WithLabelValues(outcome).Inc()
}

var _ usecase.DecisionMetrics = (*Provider)(nil)
