// Package metrics provides the ambient, internal-only instrumentation used
// by the ingestion pipeline, validation engine, and reconciliation engine.
// It is deliberately not an HTTP /metrics exporter: publishing scraped
// metrics to an external collector is a deployment decision, not this
// module's. Call sites get a Scope to increment counters and record
// timings; whether and how those get exported is the embedding
// application's decision.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scope is a stats collector that prefixes the name of every stat it
// collects with its own dotted namespace.
type Scope interface {
	NewScope(scopes ...string) Scope

	Inc(stat string, value int64)
	Gauge(stat string, value int64)
	GaugeDelta(stat string, value int64)
	TimingDuration(stat string, delta time.Duration)

	MustRegister(...prometheus.Collector)
}

// promScope is a Scope that sends data to Prometheus collectors registered
// lazily, by name, on first use.
type promScope struct {
	prometheus.Registerer
	*autoRegisterer
	prefix string
}

var _ Scope = &promScope{}

// NewPromScope returns a Scope that sends data to Prometheus.
func NewPromScope(registerer prometheus.Registerer, scopes ...string) Scope {
	prefix := ""
	if len(scopes) > 0 {
		prefix = strings.Join(scopes, ".") + "."
	}
	return &promScope{
		Registerer:     registerer,
		prefix:         prefix,
		autoRegisterer: newAutoRegisterer(registerer),
	}
}

// NewScope generates a new Scope prefixed by this Scope's prefix plus the
// given scopes joined by periods.
func (s *promScope) NewScope(scopes ...string) Scope {
	return NewPromScope(s.Registerer, s.prefix+strings.Join(scopes, "."))
}

func (s *promScope) Inc(stat string, value int64) {
	s.autoCounter(s.prefix + stat).Add(float64(value))
}

func (s *promScope) Gauge(stat string, value int64) {
	s.autoGauge(s.prefix + stat).Set(float64(value))
}

func (s *promScope) GaugeDelta(stat string, value int64) {
	s.autoGauge(s.prefix + stat).Add(float64(value))
}

func (s *promScope) TimingDuration(stat string, delta time.Duration) {
	s.autoSummary(s.prefix + stat + "_seconds").Observe(delta.Seconds())
}

type noopScope struct{}

// NewNoopScope returns a Scope that discards everything, for use in tests
// and one-shot CLI tools that don't run a registry.
func NewNoopScope() Scope { return noopScope{} }

func (noopScope) NewScope(scopes ...string) Scope               { return noopScope{} }
func (noopScope) Inc(stat string, value int64)                  {}
func (noopScope) Gauge(stat string, value int64)                {}
func (noopScope) GaugeDelta(stat string, value int64)            {}
func (noopScope) TimingDuration(stat string, delta time.Duration) {}
func (noopScope) MustRegister(...prometheus.Collector)           {}
