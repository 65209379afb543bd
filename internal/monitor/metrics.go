// Package monitor exposes prometheus collectors for instrument traffic and
// acquisitions.
package monitor

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/transport"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Commands            *prometheus.CounterVec
	CommandErrors       *prometheus.CounterVec
	CommandDuration     *prometheus.HistogramVec
	Acquisitions        *prometheus.CounterVec
	AcquisitionDuration *prometheus.HistogramVec
	Timeouts            *prometheus.CounterVec
	ConnectedInstrument prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vna_commands_total",
			Help: "Commands sent to instruments",
		}, []string{"instrument", "kind"}),

		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vna_command_errors_total",
			Help: "Commands that failed at the transport",
		}, []string{"instrument", "kind"}),

		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vna_command_duration_seconds",
			Help:    "Round trip time per command",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"instrument", "kind"}),

		Acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vna_acquisitions_total",
			Help: "S-parameter acquisitions by result",
		}, []string{"instrument", "result"}),

		AcquisitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vna_acquisition_duration_seconds",
			Help:    "Time from trigger to assembled result",
			Buckets: prometheus.DefBuckets,
		}, []string{"instrument"}),

		Timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vna_timeouts_total",
			Help: "Transport reads or completion waits that ran out of time",
		}, []string{"instrument"}),

		ConnectedInstrument: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vna_connected_instruments",
			Help: "Open instrument sessions",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Commands,
			m.CommandErrors,
			m.CommandDuration,
			m.Acquisitions,
			m.AcquisitionDuration,
			m.Timeouts,
			m.ConnectedInstrument,
		)
	}

	return m
}

// ObserveAcquisition records one acquisition outcome.
func (m *Metrics) ObserveAcquisition(instrument string, elapsed time.Duration, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, types.ErrTimeout):
		result = "timeout"
		m.Timeouts.WithLabelValues(instrument).Inc()
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrConfiguration):
		result = "rejected"
	default:
		result = "error"
	}
	m.Acquisitions.WithLabelValues(instrument, result).Inc()
	if err == nil {
		m.AcquisitionDuration.WithLabelValues(instrument).Observe(elapsed.Seconds())
	}
}

// InstrumentTransport counts every command passing through t.
func (m *Metrics) InstrumentTransport(t transport.Transport, instrument string) transport.Transport {
	return &countingTransport{next: t, metrics: m, instrument: instrument}
}

type countingTransport struct {
	next       transport.Transport
	metrics    *Metrics
	instrument string
}

func (c *countingTransport) observe(kind string, start time.Time, err error) {
	c.metrics.Commands.WithLabelValues(c.instrument, kind).Inc()
	c.metrics.CommandDuration.WithLabelValues(c.instrument, kind).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	c.metrics.CommandErrors.WithLabelValues(c.instrument, kind).Inc()
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		c.metrics.Timeouts.WithLabelValues(c.instrument).Inc()
	}
}

func (c *countingTransport) Write(ctx context.Context, cmd string) error {
	start := time.Now()
	err := c.next.Write(ctx, cmd)
	c.observe("write", start, err)
	return err
}

func (c *countingTransport) Query(ctx context.Context, cmd string) (string, error) {
	start := time.Now()
	reply, err := c.next.Query(ctx, cmd)
	c.observe("query", start, err)
	return reply, err
}

func (c *countingTransport) QueryRaw(ctx context.Context, cmd string) ([]byte, error) {
	start := time.Now()
	data, err := c.next.QueryRaw(ctx, cmd)
	c.observe("raw", start, err)
	return data, err
}

func (c *countingTransport) Clear(ctx context.Context) error {
	return c.next.Clear(ctx)
}

func (c *countingTransport) Close() error {
	return c.next.Close()
}
