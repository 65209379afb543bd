// Package transport provides the line-oriented request/response channel
// instruments are driven over.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Transport is one exclusively owned, ordered connection to an instrument.
// Each command is one line; each query reads one reply.
type Transport interface {
	Write(ctx context.Context, cmd string) error
	Query(ctx context.Context, cmd string) (string, error)
	// QueryRaw returns the payload of a binary block reply, or the raw
	// bytes of a text line when the instrument answers without a block.
	QueryRaw(ctx context.Context, cmd string) ([]byte, error)
	// Clear discards any pending or stale input.
	Clear(ctx context.Context) error
	Close() error
}

const DefaultTerminator = "\n"

type untilDeadlineKey struct{}

// UntilDeadline marks ctx so that requests made with it may wait for
// their reply until ctx's deadline instead of the client's per-request
// timeout. Operation-complete queries use it to wait out a long sweep.
func UntilDeadline(ctx context.Context) context.Context {
	return context.WithValue(ctx, untilDeadlineKey{}, true)
}

func untilDeadline(ctx context.Context) (time.Time, bool) {
	if marked, _ := ctx.Value(untilDeadlineKey{}).(bool); !marked {
		return time.Time{}, false
	}
	return ctx.Deadline()
}

func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// lineConn implements the framing shared by the TCP and serial clients.
//
// A query whose read times out still gets its reply from the instrument
// later. owed counts those replies; settle drops them before the next
// query so every reply is matched to its own command. dirty is set when a
// block was cut off or left unterminated, and the input has to be drained.
type lineConn struct {
	src        io.ReadWriter
	r          *bufio.Reader
	terminator string

	owed  int
	dirty bool
}

func newLineConn(rw io.ReadWriter, terminator string) *lineConn {
	if terminator == "" {
		terminator = DefaultTerminator
	}
	return &lineConn{src: rw, r: bufio.NewReader(rw), terminator: terminator}
}

func (c *lineConn) send(cmd string) error {
	line := strings.TrimRight(cmd, "\r\n") + c.terminator
	if _, err := io.WriteString(c.src, line); err != nil {
		return fmt.Errorf("write %q failed: %w", cmd, err)
	}
	return nil
}

func (c *lineConn) readLine(cmd string) (string, error) {
	line, err := ReadLine(c.r)
	if err != nil {
		if isTimeout(err) {
			c.owed++
		}
		return "", fmt.Errorf("read reply to %q failed: %w", cmd, err)
	}
	return line, nil
}

func (c *lineConn) readRaw(cmd string) ([]byte, error) {
	head, err := c.r.Peek(1)
	if err != nil {
		if isTimeout(err) {
			c.owed++
		}
		return nil, fmt.Errorf("read reply to %q failed: %w", cmd, err)
	}
	if head[0] != '#' {
		line, err := c.readLine(cmd)
		if err != nil {
			return nil, err
		}
		return []byte(line), nil
	}

	data, err := readBlockBody(c.r)
	if err != nil {
		c.dirty = true
		return nil, fmt.Errorf("read block reply to %q failed: %w", cmd, err)
	}
	if err := consumeTerminator(c.r); err != nil {
		// the terminator may still arrive; drain it before the next query
		c.dirty = true
	}
	return data, nil
}

// settle reads and drops the replies still owed to timed-out queries.
// A reply that does not arrive within the current deadline is given up
// on, and the query that triggered settle fails without being sent.
func (c *lineConn) settle() error {
	for c.owed > 0 {
		c.owed--
		if _, err := c.readRaw("late reply"); err != nil {
			c.owed = 0
			return fmt.Errorf("connection out of step: %w", err)
		}
	}
	return nil
}

// discard drops whatever is buffered or arrives before the source errors,
// which for both clients means until a short read deadline expires.
func (c *lineConn) discard() {
	_, _ = io.Copy(io.Discard, c.r)
	c.r.Reset(c.src)
	c.owed = 0
	c.dirty = false
}
