// Package metrics defines the gateway's Prometheus collectors. It never
// registers against prometheus.DefaultRegisterer and exposes no HTTP
// handler of its own — scraping is an external collaborator's concern
// (spec §1 non-goals); this package only owns collector definitions and an
// injectable registry, grounded on the corpus's promauto.With(registry)
// factory pattern rather than a package-level singleton registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every collector the gateway's core emits. It is
// constructed once by the runtime (cmd/gateway) and passed down to the
// components that increment it, never reached through a global accessor.
type Registry struct {
	ReconnectAttemptsTotal *prometheus.CounterVec
	SessionsActive         prometheus.Gauge
	SessionStateTotal      *prometheus.CounterVec
	ConfigReloadsTotal     *prometheus.CounterVec
	TemplateReloadsTotal   *prometheus.CounterVec
	FramesSentTotal        *prometheus.CounterVec
	FramesReceivedTotal    *prometheus.CounterVec
	SendQueueDepth         *prometheus.GaugeVec
}

// New registers every collector against reg and returns the bundle. Passing
// a fresh prometheus.NewRegistry() keeps tests isolated from each other;
// passing prometheus.NewRegistry() wired into an admin HTTP handler is the
// production wiring, done outside this package.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		ReconnectAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocpp_gateway",
			Subsystem: "session",
			Name:      "reconnect_attempts_total",
			Help:      "Total reconnect attempts per device id.",
		}, []string{"device_id"}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ocpp_gateway",
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of Sessions currently in the Connected state.",
		}),
		SessionStateTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocpp_gateway",
			Subsystem: "session",
			Name:      "state_transitions_total",
			Help:      "Total state transitions per device id and target state.",
		}, []string{"device_id", "state"}),
		ConfigReloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocpp_gateway",
			Subsystem: "config",
			Name:      "reloads_total",
			Help:      "Total config reload outcomes.",
		}, []string{"outcome"}),
		TemplateReloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocpp_gateway",
			Subsystem: "mapping",
			Name:      "reloads_total",
			Help:      "Total mapping catalog reload outcomes.",
		}, []string{"outcome"}),
		FramesSentTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocpp_gateway",
			Subsystem: "session",
			Name:      "frames_sent_total",
			Help:      "Total OCPP frames sent per device id.",
		}, []string{"device_id"}),
		FramesReceivedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocpp_gateway",
			Subsystem: "session",
			Name:      "frames_received_total",
			Help:      "Total OCPP frames received per device id.",
		}, []string{"device_id"}),
		SendQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ocpp_gateway",
			Subsystem: "session",
			Name:      "send_queue_depth",
			Help:      "Current send queue depth per device id.",
		}, []string{"device_id"}),
	}
}

// Noop returns a Registry backed by a private, discarded registry — for
// components constructed in tests or standalone tools that have no
// scraping surface wired up.
func Noop() *Registry {
	return New(prometheus.NewRegistry())
}
