package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_active_connections",
		Help: "Active websocket connections",
	})
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "presence_online_users",
		Help: "Users with at least one live connection",
	})
	Broadcasts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_broadcast_total",
		Help: "Events fanned out, by event type",
	}, []string{"event"})
	DroppedSends = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ws_dropped_sends_total",
		Help: "Events skipped because a connection's send buffer was full",
	})
	InboundRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_inbound_rejected_total",
		Help: "Inbound socket events rejected, by reason",
	}, []string{"reason"})
	PublishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "event_publish_failures_total",
		Help: "Domain events that could not be handed to the broker",
	})
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(Connections, OnlineUsers, Broadcasts, DroppedSends, InboundRejected, PublishFailures)
	})
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
