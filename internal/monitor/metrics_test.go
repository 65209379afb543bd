package monitor

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/transport/transporttest"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentTransportCountsCommands(t *testing.T) {
	ctx := context.Background()
	m := New(prometheus.NewRegistry())

	fake := transporttest.New().
		Respond("*IDN?", "CMT,C4220,1,1").
		Fail("DATA?", os.ErrDeadlineExceeded)
	tr := m.InstrumentTransport(fake, "bench")

	require.NoError(t, tr.Write(ctx, "TRIG:SING"))
	_, err := tr.Query(ctx, "*IDN?")
	require.NoError(t, err)
	_, err = tr.QueryRaw(ctx, "DATA?")
	require.Error(t, err)
	require.NoError(t, tr.Clear(ctx))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("bench", "write")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("bench", "query")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("bench", "raw")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandErrors.WithLabelValues("bench", "raw")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Timeouts.WithLabelValues("bench")))
	assert.Equal(t, 1, fake.Clears())

	require.NoError(t, tr.Close())
	assert.True(t, fake.Closed())
}

func TestObserveAcquisition(t *testing.T) {
	m := New(nil)

	tests := []struct {
		name   string
		err    error
		result string
	}{
		{"ok", nil, "ok"},
		{"timeout", &types.TimeoutError{Op: "sweep", Budget: time.Second}, "timeout"},
		{"rejected", &types.ConfigurationError{Op: "acquire", Reason: "ports"}, "rejected"},
		{"error", errors.New("broken pipe"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.ObserveAcquisition("bench", 20*time.Millisecond, tt.err)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.Acquisitions.WithLabelValues("bench", tt.result)))
		})
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Timeouts.WithLabelValues("bench")))
}

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ConnectedInstrument.Set(2)

	count, err := testutil.GatherAndCount(reg, "vna_connected_instruments")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
