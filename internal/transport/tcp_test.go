package transport

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scpiServer answers "*IDN?" and "DATA?" and records every other line.
func scpiServer(t *testing.T) (string, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	received := make(chan string, 16)
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
			line = strings.TrimSpace(line)
			switch line {
			case "*IDN?":
				conn.Write([]byte("CMT,C4220,0001,1.0\n"))
			case "DATA?":
				conn.Write(append(FormatBlock([]byte{1, 2, 3, 4}), '\n'))
			case "SILENT?":
			default:
				received <- line
			}
		}
	}()

	return ln.Addr().String(), received
}

func TestTCPClientRoundTrip(t *testing.T) {
	addr, received := scpiServer(t)
	ctx := context.Background()

	c := NewTCPClient(addr, time.Second, "")
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	id, err := c.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "CMT,C4220,0001,1.0", id)

	raw, err := c.QueryRaw(ctx, "DATA?")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, raw)

	require.NoError(t, c.Write(ctx, "SENS1:FREQ:STAR 100"))
	select {
	case line := <-received:
		assert.Equal(t, "SENS1:FREQ:STAR 100", line)
	case <-time.After(time.Second):
		t.Fatal("write never reached the server")
	}

	id, err = c.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "CMT,C4220,0001,1.0", id)
}

func TestTCPClientQueryTimesOut(t *testing.T) {
	addr, _ := scpiServer(t)
	ctx := context.Background()

	c := NewTCPClient(addr, 50*time.Millisecond, "")
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	_, err := c.Query(ctx, "SILENT?")
	require.Error(t, err)

	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())

	require.NoError(t, c.Clear(ctx))
	id, err := c.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "CMT,C4220,0001,1.0", id)
}

// reply is how a scriptedServer answers one command.
type reply func(conn net.Conn)

func respond(s string) reply {
	return func(conn net.Conn) { conn.Write([]byte(s)) }
}

func after(d time.Duration, s string) reply {
	return func(conn net.Conn) {
		time.Sleep(d)
		conn.Write([]byte(s))
	}
}

// scriptedServer answers the commands in script one at a time, in arrival
// order. Other queries get "0"; other writes are ignored.
func scriptedServer(t *testing.T, script map[string]reply) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

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
			line = strings.TrimSpace(line)
			if answer, ok := script[line]; ok {
				answer(conn)
			} else if strings.HasSuffix(line, "?") {
				conn.Write([]byte("0\n"))
			}
		}
	}()

	return ln.Addr().String()
}

func dialScripted(t *testing.T, timeout time.Duration, script map[string]reply) *TCPClient {
	t.Helper()
	c := NewTCPClient(scriptedServer(t, script), timeout, "")
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestTCPClientUntilDeadlineOutlastsTimeout(t *testing.T) {
	c := dialScripted(t, 50*time.Millisecond, map[string]reply{
		"*OPC?": after(150*time.Millisecond, "1\n"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := c.Query(UntilDeadline(ctx), "*OPC?")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestTCPClientUntilDeadlineStillEndsAtDeadline(t *testing.T) {
	c := dialScripted(t, time.Second, map[string]reply{
		"*OPC?": after(300*time.Millisecond, "1\n"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Query(UntilDeadline(ctx), "*OPC?")
	require.Error(t, err)
	assert.True(t, isTimeout(err))
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestTCPClientDropsLateReply(t *testing.T) {
	c := dialScripted(t, 200*time.Millisecond, map[string]reply{
		"*OPC?": after(260*time.Millisecond, "1\n"),
		"*IDN?": respond("CMT,C4220,0001,1.0\n"),
	})
	ctx := context.Background()

	_, err := c.Query(ctx, "*OPC?")
	require.Error(t, err)
	assert.True(t, isTimeout(err))

	id, err := c.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "CMT,C4220,0001,1.0", id)

	id, err = c.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "CMT,C4220,0001,1.0", id)
}

func TestTCPClientLateReplyThatNeverComes(t *testing.T) {
	c := dialScripted(t, 50*time.Millisecond, map[string]reply{
		"SILENT?": func(net.Conn) {},
		"*IDN?":   respond("CMT,C4220,0001,1.0\n"),
	})
	ctx := context.Background()

	_, err := c.Query(ctx, "SILENT?")
	require.Error(t, err)

	// the owed reply is given up on after one deadline
	_, err = c.Query(ctx, "*IDN?")
	require.Error(t, err)

	id, err := c.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "CMT,C4220,0001,1.0", id)
}

func TestTCPClientBlockTerminatorInLaterSegment(t *testing.T) {
	c := dialScripted(t, time.Second, map[string]reply{
		"DATA?": func(conn net.Conn) {
			conn.Write([]byte("#14\x01\x02\x03\x04"))
			time.Sleep(20 * time.Millisecond)
			conn.Write([]byte("\n"))
		},
		"*IDN?": respond("CMT,C4220,0001,1.0\n"),
	})
	ctx := context.Background()

	raw, err := c.QueryRaw(ctx, "DATA?")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, raw)

	id, err := c.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "CMT,C4220,0001,1.0", id)
}

func TestTCPClientUnterminatedBlock(t *testing.T) {
	c := dialScripted(t, 50*time.Millisecond, map[string]reply{
		"DATA?": respond("#14\x01\x02\x03\x04"),
		"*IDN?": respond("CMT,C4220,0001,1.0\n"),
	})
	ctx := context.Background()

	raw, err := c.QueryRaw(ctx, "DATA?")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, raw)

	id, err := c.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "CMT,C4220,0001,1.0", id)
}

func TestTCPClientTruncatedBlockIsDrained(t *testing.T) {
	c := dialScripted(t, 50*time.Millisecond, map[string]reply{
		"DATA?": respond("#18\x01\x02"),
		"*IDN?": respond("CMT,C4220,0001,1.0\n"),
	})
	ctx := context.Background()

	_, err := c.QueryRaw(ctx, "DATA?")
	require.Error(t, err)

	id, err := c.Query(ctx, "*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "CMT,C4220,0001,1.0", id)
}

func TestTCPClientNotConnected(t *testing.T) {
	c := NewTCPClient("127.0.0.1:1", time.Second, "")
	assert.Error(t, c.Write(context.Background(), "*RST"))
	assert.NoError(t, c.Close())
}
