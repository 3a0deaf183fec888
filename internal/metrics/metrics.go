package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"zns-gateway/internal/models"
)

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zns_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zns_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// SendTotal counts send attempts by outcome (sent, failed, config_missing, ...)
	SendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zns_send_total",
			Help: "ZNS send attempts by outcome",
		},
		[]string{"outcome"},
	)

	StatusUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zns_status_updates_total",
			Help: "History state changes by new state",
		},
		[]string{"state"},
	)

	SweepChecked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zns_sweep_checked_total",
			Help: "Messages polled by the status sweep",
		},
	)

	BOMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zns_bom_request_duration_seconds",
			Help:    "Latency of outbound BOM API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

var once sync.Once

func Init() {
	once.Do(func() {
		prometheus.MustRegister(RequestCount, RequestDuration, SendTotal, StatusUpdates, SweepChecked, BOMRequestDuration)
	})
}

// Listener counts history state changes.
type Listener struct{}

func (Listener) HistoryChanged(_ context.Context, h *models.History) {
	StatusUpdates.WithLabelValues(string(h.State)).Inc()
}
