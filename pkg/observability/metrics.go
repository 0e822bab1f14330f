package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the client's prometheus collectors. A nil *Metrics is valid
// and records nothing, so components can be built without a registry.
type Metrics struct {
	framesIn       *prometheus.CounterVec
	framesOut      *prometheus.CounterVec
	violations     *prometheus.CounterVec
	sendRetries    prometheus.Counter
	droppedWrites  prometheus.Counter
	rtt            prometheus.Histogram
	queueDepth     *prometheus.GaugeVec
	threshold      prometheus.Gauge
	speedOverride  prometheus.Gauge
	sessionsOpened prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		framesIn: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netplay", Name: "frames_received_total",
			Help: "Frames received, by message type.",
		}, []string{"type"}),
		framesOut: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netplay", Name: "frames_sent_total",
			Help: "Frames sent, by message type.",
		}, []string{"type"}),
		violations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netplay", Name: "protocol_violations_total",
			Help: "Frames rejected or skipped, by reason.",
		}, []string{"reason"}),
		sendRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: "netplay", Name: "socket_send_retries_total",
			Help: "Send attempts that would have blocked.",
		}),
		droppedWrites: f.NewCounter(prometheus.CounterOpts{
			Namespace: "netplay", Name: "socket_dropped_writes_total",
			Help: "Buffered writes dropped because the send buffer was full.",
		}),
		rtt: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netplay", Name: "ping_rtt_seconds",
			Help:    "Round trip time measured by Ping.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		queueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netplay", Name: "input_queue_depth",
			Help: "Buffered authoritative input states per port.",
		}, []string{"port"}),
		threshold: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "netplay", Name: "input_threshold",
			Help: "Current adaptive input buffering threshold.",
		}),
		speedOverride: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "netplay", Name: "speed_override",
			Help: "1 while the emulator runs at max speed to catch up.",
		}),
		sessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: "netplay", Name: "sessions_opened_total",
			Help: "Sessions successfully connected.",
		}),
	}
}

func (m *Metrics) FrameIn(kind string) {
	if m != nil {
		m.framesIn.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) FrameOut(kind string) {
	if m != nil {
		m.framesOut.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Violation(reason string) {
	if m != nil {
		m.violations.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SendRetry() {
	if m != nil {
		m.sendRetries.Inc()
	}
}

func (m *Metrics) DroppedWrite() {
	if m != nil {
		m.droppedWrites.Inc()
	}
}

func (m *Metrics) ObserveRTT(d time.Duration) {
	if m != nil {
		m.rtt.Observe(d.Seconds())
	}
}

func (m *Metrics) QueueDepth(port string, n int) {
	if m != nil {
		m.queueDepth.WithLabelValues(port).Set(float64(n))
	}
}

func (m *Metrics) Threshold(n int) {
	if m != nil {
		m.threshold.Set(float64(n))
	}
}

func (m *Metrics) SpeedOverride(on bool) {
	if m == nil {
		return
	}
	if on {
		m.speedOverride.Set(1)
	} else {
		m.speedOverride.Set(0)
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessionsOpened.Inc()
	}
}
