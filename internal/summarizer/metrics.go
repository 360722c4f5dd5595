package summarizer

import (
	"context"
	"errors"
	"textdigest/internal/domain"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess     = "success"
	outcomeUnavailable = "unavailable"
	outcomeMalformed   = "malformed"
	outcomeCanceled    = "canceled"
	outcomeError       = "error"
)

// Metrics records backend calls and chunking behaviour.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	chunks   prometheus.Histogram
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "textdigest_backend_requests_total",
			Help: "Summarization backend calls by backend and outcome.",
		}, []string{"backend", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "textdigest_backend_request_duration_seconds",
			Help:    "Duration of a single summarization backend call.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"backend"}),
		chunks: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "textdigest_summary_chunks",
			Help:    "Number of chunks a document was split into.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),
	}
}

func (m *Metrics) ObserveChunks(count int) {
	if m == nil {
		return
	}

	m.chunks.Observe(float64(count))
}

type instrumented struct {
	backend string
	next    Summarizer
	metrics *Metrics
}

// Instrument wraps next so every call is counted and timed.
func Instrument(kind domain.BackendKind, next Summarizer, metrics *Metrics) Summarizer {
	if metrics == nil {
		return next
	}

	return &instrumented{
		backend: kind.String(),
		next:    next,
		metrics: metrics,
	}
}

func (s *instrumented) Summarize(ctx context.Context, input Input) (string, error) {
	start := time.Now()
	summary, err := s.next.Summarize(ctx, input)

	s.metrics.duration.WithLabelValues(s.backend).Observe(time.Since(start).Seconds())
	s.metrics.requests.WithLabelValues(s.backend, outcome(err)).Inc()

	return summary, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	case errors.Is(err, ErrMalformedOutput):
		return outcomeMalformed
	case errors.Is(err, ErrBackendUnavailable):
		return outcomeUnavailable
	default:
		return outcomeError
	}
}
