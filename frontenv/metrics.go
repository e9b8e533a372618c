package frontenv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeInjected = "injected"
	outcomeNoHead   = "no_head"
	outcomeOverflow = "overflow"
	outcomeBypassed = "bypassed"
	outcomeError    = "error"
)

// Metrics counts interceptor outcomes. A nil *Metrics records nothing.
type Metrics struct {
	responses *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "frontenv",
				Name:      "responses_total",
				Help:      "Responses seen by the HTML interceptor, by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "frontenv",
				Name:      "transform_duration_seconds",
				Help:      "Time spent streaming an HTML body through the injector.",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
	}
	for _, c := range []prometheus.Collector{m.responses, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(outcome).Inc()
	if outcome != outcomeBypassed {
		m.duration.Observe(elapsed.Seconds())
	}
}
