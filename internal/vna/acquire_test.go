package vna

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/transport/transporttest"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scriptAnritsuSweep(fake *transporttest.Fake, points string) {
	fake.Respond("STR?", "1000000").
		Respond("STP?", "3000000").
		Respond("ONP", points)
}

func scriptCMTSweep(fake *transporttest.Fake, cnum string, points string) {
	fake.Respond("SENS"+cnum+":FREQ:STAR?", "1.000000000E+06").
		Respond("SENS"+cnum+":FREQ:STOP?", "3.000000000E+06").
		Respond("SENS"+cnum+":SWE:POIN?", points).
		Respond("*OPC?", "1")
}

func TestGetSNPNetworkScattersFullPair(t *testing.T) {
	ctx := context.Background()
	inst, fake := newAnritsu(t)
	ch, _ := inst.Channel(1)

	const points = 51
	scriptAnritsuSweep(fake, "51")
	fake.RespondBlock("OS2P;", fullPairBlock(points))

	result, err := ch.GetSNPNetwork(ctx, []int{1, 2})
	require.NoError(t, err)

	require.Equal(t, points, result.NPoints())
	require.Equal(t, 2, result.NPorts())
	assert.Equal(t, 1e6, result.Axis[0])
	assert.Equal(t, 3e6, result.Axis[points-1])

	for f := 0; f < points; f++ {
		assert.Equal(t, column(f, 0), result.S[f][0][0], "S11 at %d", f)
		assert.Equal(t, column(f, 1), result.S[f][1][1], "S22 at %d", f)
		assert.Equal(t, column(f, 2), result.S[f][0][1], "S12 at %d", f)
		assert.Equal(t, column(f, 3), result.S[f][1][0], "S21 at %d", f)
	}

	assert.Equal(t, []string{"FMB", "TRS", "SING", "SWP", "FMA"}, fake.Writes())
	assert.Equal(t, types.FormatText, inst.CachedValueFormat())
}

func TestGetSNPNetworkDefaultsToFullPair(t *testing.T) {
	inst, fake := newAnritsu(t)
	ch, _ := inst.Channel(1)

	scriptAnritsuSweep(fake, "51")
	fake.RespondBlock("OS2P;", fullPairBlock(51))

	for _, ports := range [][]int{nil, {2, 1}} {
		result, err := ch.GetSNPNetwork(context.Background(), ports)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, result.Ports)
		assert.Equal(t, column(7, 3), result.S[7][1][0])
	}
}

func TestGetSNPNetworkSinglePort(t *testing.T) {
	inst, fake := newAnritsu(t)
	ch, _ := inst.Channel(1)

	scriptAnritsuSweep(fake, "51")
	values := make([]float64, 0, 102)
	for f := 0; f < 51; f++ {
		values = append(values, float64(f), 0.5)
	}
	fake.RespondBlock("OS22C;", float64LE(values...))

	result, err := ch.GetSNPNetwork(context.Background(), []int{2})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, result.Ports)
	require.Len(t, result.S[0], 1)
	assert.Equal(t, complex(50, 0.5), result.S[50][0][0])
	assert.Contains(t, fake.Queries(), "OS22C;")
}

func TestGetSDataReadsPortOne(t *testing.T) {
	inst, fake := newAnritsu(t)
	ch, _ := inst.Channel(1)

	scriptAnritsuSweep(fake, "51")
	fake.RespondBlock("OS11C;", float64LE(make([]float64, 102)...))

	result, err := ch.GetSData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, result.Ports)
}

func TestGetSNPNetworkRejectsUnsupportedPorts(t *testing.T) {
	tests := []struct {
		name    string
		anritsu bool
		ports   []int
	}{
		{"three ports", true, []int{1, 2, 3}},
		{"unknown single port", true, []int{3}},
		{"repeated port", true, []int{1, 1}},
		{"single port without query", false, []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				inst *Instrument
				fake *transporttest.Fake
			)
			if tt.anritsu {
				inst, fake = newAnritsu(t)
			} else {
				inst, fake = newCMT(t, testOptions)
			}
			ch, _ := inst.Channel(1)

			_, err := ch.GetSNPNetwork(context.Background(), tt.ports)

			var cerr *types.ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Empty(t, fake.Calls())
		})
	}
}

func TestGetSNPNetworkRestoresStateInOrder(t *testing.T) {
	ctx := context.Background()
	inst, fake := newCMT(t, testOptions)
	ch2, err := inst.CreateChannel(2, "")
	require.NoError(t, err)

	scriptCMTSweep(fake, "2", "3")
	fake.RespondBlock("CALC2:DATA:SDAT?", fullPairBlock(3))

	result, err := ch2.GetSNPNetwork(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, column(2, 2), result.S[2][0][1])

	assert.Equal(t, []string{
		"FORM:BORD SWAP",
		"FORM:DATA REAL",
		"DISP:WIND2:ACT",
		"TRIG:SOUR BUS",
		"TRIG:SING",
		"TRIG:SOUR INT",
		"DISP:WIND1:ACT",
		"FORM:DATA ASC",
	}, fake.Writes())
}

func TestGetSNPNetworkTimeoutRestoresFormat(t *testing.T) {
	ctx := context.Background()
	inst, fake := newCMT(t, Options{SweepTimeout: 20 * time.Millisecond, PollInterval: 2 * time.Millisecond})
	ch, _ := inst.Channel(1)

	scriptCMTSweep(fake, "1", "3")
	fake.Respond("*OPC?", "0")

	before, err := inst.ValueFormat(ctx)
	require.NoError(t, err)

	_, err = ch.GetSNPNetwork(ctx, []int{1, 2})
	require.Error(t, err)

	var terr *types.TimeoutError
	require.ErrorAs(t, err, &terr)

	after, err := inst.ValueFormat(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	writes := fake.Writes()
	assert.Equal(t, []string{"TRIG:SOUR INT", "FORM:DATA ASC"}, writes[len(writes)-2:])
	assert.NotContains(t, fake.Queries(), "CALC1:DATA:SDAT?")
}

func TestGetSNPNetworkRejectsShortPayload(t *testing.T) {
	inst, fake := newCMT(t, testOptions)
	ch, _ := inst.Channel(1)

	scriptCMTSweep(fake, "1", "3")
	fake.RespondBlock("CALC1:DATA:SDAT?", fullPairBlock(2))

	_, err := ch.GetSNPNetwork(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrProtocol)

	writes := fake.Writes()
	assert.Equal(t, "FORM:DATA ASC", writes[len(writes)-1])
	assert.Equal(t, types.FormatText, inst.CachedValueFormat())
}

func TestGetSNPNetworkJoinsRestoreFailure(t *testing.T) {
	boom := errors.New("socket closed")
	inst, fake := newCMT(t, testOptions)
	ch, _ := inst.Channel(1)

	scriptCMTSweep(fake, "1", "3")
	fake.RespondBlock("CALC1:DATA:SDAT?", fullPairBlock(2))
	fake.Fail("TRIG:SOUR INT", boom)

	_, err := ch.GetSNPNetwork(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrProtocol)
	assert.ErrorIs(t, err, boom)

	writes := fake.Writes()
	assert.Equal(t, "FORM:DATA ASC", writes[len(writes)-1])
}
