package stargo

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the Prometheus metrics of a mount. A nil *Collector is
// valid and records nothing.
type Collector struct {
	Commands      *prometheus.CounterVec
	Durations     *prometheus.HistogramVec
	ParseFailures *prometheus.CounterVec
	Telegrams     prometheus.Counter
	PollFailures  prometheus.Counter
	GuidePulses   *prometheus.CounterVec
}

// NewCollector registers the mount metrics against reg, defaulting to the
// global registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	commands, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stargo_commands_total",
		Help: "Mount commands sent, labeled by operation and outcome.",
	}, []string{"operation", "outcome"}))
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stargo_command_duration_seconds",
		Help:    "Round trip time of mount commands including the request delay.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	parseFailures, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stargo_parse_failures_total",
		Help: "Replies that did not match the expected shape, labeled by operation.",
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	telegrams, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stargo_telegrams_total",
		Help: "Unsolicited motion state telegrams applied.",
	}))
	if err != nil {
		return nil, err
	}
	pollFailures, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stargo_poll_failures_total",
		Help: "Status poll cycles that failed.",
	}))
	if err != nil {
		return nil, err
	}
	pulses, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stargo_guide_pulses_total",
		Help: "Guide commands issued, labeled by direction.",
	}, []string{"direction"}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		Commands:      commands,
		Durations:     durations,
		ParseFailures: parseFailures,
		Telegrams:     telegrams,
		PollFailures:  pollFailures,
		GuidePulses:   pulses,
	}, nil
}

// register returns the already registered collector when one with the same
// descriptor exists.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("failed to register metric: %w", err)
	}
	return c, nil
}

func (c *Collector) command(op Operation, start time.Time, err error) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(op.String(), outcome(err)).Inc()
	c.Durations.WithLabelValues(op.String()).Observe(time.Since(start).Seconds())
}

func (c *Collector) parseFailure(op Operation) {
	if c == nil {
		return
	}
	c.ParseFailures.WithLabelValues(op.String()).Inc()
}

func (c *Collector) telegram() {
	if c == nil {
		return
	}
	c.Telegrams.Inc()
}

func (c *Collector) pollFailed() {
	if c == nil {
		return
	}
	c.PollFailures.Inc()
}

func (c *Collector) guidePulse(dir Direction) {
	if c == nil {
		return
	}
	c.GuidePulses.WithLabelValues(dir.String()).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "communication"
	}
}
