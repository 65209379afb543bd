package vna

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/profiles"
	"github.com/KevinKickass/OpenVNA/internal/transport/transporttest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	cmtID     = "CMT,C4220,00000001,22.1.2"
	anritsuID = "ANRITSU,37369D,123456,3.5"
)

var testOptions = Options{SweepTimeout: time.Second, PollInterval: time.Millisecond}

func loadProfile(t *testing.T, name string) *profiles.Profile {
	t.Helper()
	l, err := profiles.NewLoader(nil)
	require.NoError(t, err)
	p, err := l.Load(name)
	require.NoError(t, err)
	return p
}

// newCMT connects a Copper Mountain instrument whose channel 1 is active.
func newCMT(t *testing.T, opts Options) (*Instrument, *transporttest.Fake) {
	t.Helper()
	fake := transporttest.New().
		Respond("*IDN?", cmtID).
		Respond("SERV:CHAN:ACT?", "1")
	modelFormat(fake, "FORM:DATA?", "ASC", map[string]string{
		"FORM:DATA ASC":   "ASC",
		"FORM:DATA REA32": "REAL32",
		"FORM:DATA REAL":  "REAL",
	})

	inst, err := New(context.Background(), fake, loadProfile(t, "copper-mountain-s2"), zap.NewNop(), opts)
	require.NoError(t, err)
	fake.Reset()
	return inst, fake
}

func newAnritsu(t *testing.T) (*Instrument, *transporttest.Fake) {
	t.Helper()
	fake := transporttest.New().Respond("*IDN?;", anritsuID)
	modelFormat(fake, "FMX?", "0", map[string]string{"FMA": "0", "FMB": "1", "FMC": "2"})
	modelSweepMode(fake, "SWP")

	inst, err := New(context.Background(), fake, loadProfile(t, "anritsu-37xxxd"), zap.NewNop(), testOptions)
	require.NoError(t, err)
	fake.Reset()
	return inst, fake
}

// modelFormat makes the fake's format query follow the select commands.
func modelFormat(fake *transporttest.Fake, query, initial string, replies map[string]string) {
	fake.Respond(query, initial)
	fake.OnWrite(func(cmd string) {
		if reply, ok := replies[cmd]; ok {
			fake.Respond(query, reply)
		}
	})
}

// modelSweepMode makes "SWP?" report the last mode written.
func modelSweepMode(fake *transporttest.Fake, initial string) {
	fake.Respond("SWP?", initial)
	fake.OnWrite(func(cmd string) {
		switch cmd {
		case "HLD", "SING", "SWP", "CTN":
			fake.Respond("SWP?", cmd)
		}
	})
}

func float64LE(values ...float64) []byte {
	out := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

func float32LE(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// fullPairBlock builds a full-pair payload where column k at point f is
// (10f+k) - (10f+k)i.
func fullPairBlock(points int) []byte {
	values := make([]float64, 0, points*8)
	for f := 0; f < points; f++ {
		for k := 0; k < 4; k++ {
			v := float64(10*f + k)
			values = append(values, v, -v)
		}
	}
	return float64LE(values...)
}

func column(f, k int) complex128 {
	v := float64(10*f + k)
	return complex(v, -v)
}
