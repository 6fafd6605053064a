package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the listener's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	blocksScanned prometheus.Counter
	logsFound     prometheus.Counter
	queryErrors   prometheus.Counter
	deliveries    *prometheus.CounterVec
	chainHead     prometheus.Gauge
	watermark     prometheus.Gauge
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes global metrics on the default registry (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = New(prometheus.DefaultRegisterer)
	})
	return metrics
}

// New builds and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		blocksScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "event_listener_blocks_scanned_total",
			Help: "Total number of blocks covered by successful log queries",
		}),
		logsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "event_listener_logs_found_total",
			Help: "Total number of log entries returned by the node",
		}),
		queryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "event_listener_query_errors_total",
			Help: "Total number of failed head or log queries",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_listener_sink_deliveries_total",
			Help: "Sink deliveries by sink and outcome",
		}, []string{"sink", "outcome"}),
		chainHead: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "event_listener_chain_head",
			Help: "Latest block number reported by the node",
		}),
		watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "event_listener_watermark",
			Help: "Next block number the listener will query",
		}),
	}
	reg.MustRegister(
		m.blocksScanned,
		m.logsFound,
		m.queryErrors,
		m.deliveries,
		m.chainHead,
		m.watermark,
	)
	return m
}

// BlocksScanned adds n to the scanned blocks counter.
func (m *Metrics) BlocksScanned(n uint64) {
	if m != nil {
		m.blocksScanned.Add(float64(n))
	}
}

// LogsFound adds n to the logs counter.
func (m *Metrics) LogsFound(n int) {
	if m != nil {
		m.logsFound.Add(float64(n))
	}
}

// QueryError increments the query errors counter.
func (m *Metrics) QueryError() {
	if m != nil {
		m.queryErrors.Inc()
	}
}

// Delivery counts one sink delivery with its outcome label.
func (m *Metrics) Delivery(sink, outcome string) {
	if m != nil {
		m.deliveries.WithLabelValues(sink, outcome).Inc()
	}
}

// ChainHead records the latest observed head.
func (m *Metrics) ChainHead(n uint64) {
	if m != nil {
		m.chainHead.Set(float64(n))
	}
}

// Watermark records the next block to query.
func (m *Metrics) Watermark(n uint64) {
	if m != nil {
		m.watermark.Set(float64(n))
	}
}

// Handler returns an HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
