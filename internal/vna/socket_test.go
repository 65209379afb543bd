package vna

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/transport"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// cmtServer plays a Copper Mountain analyzer on a real socket. Its sweep
// completes opcDelay after "*OPC?" arrives.
func cmtServer(t *testing.T, opcDelay time.Duration) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	replies := map[string]string{
		"*IDN?":            cmtID,
		"SERV:CHAN:ACT?":   "1",
		"FORM:DATA?":       "ASC",
		"SENS1:FREQ:STAR?": "1000000",
		"SENS1:FREQ:STOP?": "3000000",
		"SENS1:SWE:POIN?":  "201",
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.TrimSpace(line)
			switch {
			case cmd == "*OPC?":
				time.Sleep(opcDelay)
				conn.Write([]byte("1\n"))
			case replies[cmd] != "":
				conn.Write([]byte(replies[cmd] + "\n"))
			case strings.HasSuffix(cmd, "?"):
				conn.Write([]byte("0\n"))
			}
		}
	}()

	return ln.Addr().String()
}

func dialCMT(t *testing.T, addr string, timeout time.Duration, opts Options) *Instrument {
	t.Helper()
	ctx := context.Background()

	c := transport.NewTCPClient(addr, timeout, "")
	require.NoError(t, c.Connect(ctx))

	inst, err := New(ctx, c, loadProfile(t, "copper-mountain-s2"), zap.NewNop(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close() })
	return inst
}

func TestSweepOutlastsRequestTimeout(t *testing.T) {
	inst := dialCMT(t, cmtServer(t, 300*time.Millisecond), 100*time.Millisecond,
		Options{SweepTimeout: 2 * time.Second, PollInterval: 10 * time.Millisecond})
	ch, _ := inst.Channel(1)
	ctx := context.Background()

	require.NoError(t, ch.Sweep(ctx))

	f, err := ch.Frequency(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1e6, f.Start)
	assert.Equal(t, 201, f.Points)
}

func TestSweepTimeoutLeavesConnectionInStep(t *testing.T) {
	inst := dialCMT(t, cmtServer(t, 300*time.Millisecond), 500*time.Millisecond,
		Options{SweepTimeout: 150 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	ch, _ := inst.Channel(1)
	ctx := context.Background()

	err := ch.Sweep(ctx)
	var terr *types.TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 150*time.Millisecond, terr.Budget)

	id, err := inst.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, cmtID, id)

	f, err := ch.Frequency(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3e6, f.Stop)
}
