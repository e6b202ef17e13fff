package observability

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GregMSThompson/agent-bridge/internal/agentstream"
	"github.com/GregMSThompson/agent-bridge/internal/errs"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	invocations    *prometheus.CounterVec
	invokeDuration *prometheus.HistogramVec
	frames         *prometheus.CounterVec
	decodeErrors   prometheus.Counter
	answerSource   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		invocations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_invocations_total",
			Help: "Agent invocations by outcome status",
		}, []string{"status"}),
		invokeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agent_invocation_duration_seconds",
			Help:    "Agent invocation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"status"}),
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_stream_frames_total",
			Help: "Decoded stream frames by kind and verdict",
		}, []string{"kind", "verdict"}),
		decodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "agent_stream_decode_errors_total",
			Help: "Frames whose payload could not be decoded",
		}),
		answerSource: f.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_answer_source_total",
			Help: "Where the final answer was taken from",
		}, []string{"source"}),
	}
}

// ObserveInvocation records one call to the agent runtime.
func (m *Metrics) ObserveInvocation(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := invocationStatus(err)
	m.invocations.WithLabelValues(status).Inc()
	m.invokeDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) ObserveDecode(res agentstream.Result) {
	if m == nil {
		return
	}
	for _, f := range res.Frames {
		verdict := "control"
		switch {
		case f.Err != nil:
			verdict = "error"
			m.decodeErrors.Inc()
		case f.PayloadBearing:
			verdict = "payload"
		}
		m.frames.WithLabelValues(f.Kind, verdict).Inc()
	}
	m.answerSource.WithLabelValues(string(res.Source)).Inc()
}

func invocationStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var te *errs.TransportError
	if errors.As(err, &te) {
		if te.StatusCode == 0 {
			return "network"
		}
		return strconv.Itoa(te.StatusCode)
	}
	return "error"
}
