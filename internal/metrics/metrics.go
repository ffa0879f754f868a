package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "oracle_provider_requests_total", Help: "Price provider calls by outcome"},
		[]string{"provider", "outcome"},
	)
	ProviderCooldowns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "oracle_provider_cooldowns_total", Help: "Cooldowns started per provider"},
		[]string{"provider"},
	)
	MonitorCycles = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "monitor_cycles_total", Help: "Completed monitor cycles"},
	)
	MonitorEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "monitor_events_total", Help: "Position state transitions"},
		[]string{"kind"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "monitor_open_positions", Help: "Positions not yet closed"},
	)
	SignalsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hub_signals_published_total", Help: "Publish calls by status"},
		[]string{"status"},
	)
	SignalsDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "hub_signals_delivered_total", Help: "Signals handed to clients"},
	)
	NotifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "notify_failures_total", Help: "Notifications dropped after retry"},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderRequests,
		ProviderCooldowns,
		MonitorCycles,
		MonitorEvents,
		OpenPositions,
		SignalsPublished,
		SignalsDelivered,
		NotifyFailures,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
