package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// ClearWindow is how long Clear keeps reading stale input before giving up.
const ClearWindow = 50 * time.Millisecond

// TCPClient talks to an instrument over a raw socket (SCPI port 5025 on
// most analyzers).
type TCPClient struct {
	address    string
	timeout    time.Duration
	terminator string

	mu        sync.Mutex
	conn      net.Conn
	line      *lineConn
	connected bool
}

func NewTCPClient(address string, timeout time.Duration, terminator string) *TCPClient {
	return &TCPClient{
		address:    address,
		timeout:    timeout,
		terminator: terminator,
	}
}

// Connect opens the socket; calling it on a connected client is a no-op.
func (c *TCPClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("connection to %s failed: %w", c.address, err)
	}

	c.conn = conn
	c.line = newLineConn(conn, c.terminator)
	c.connected = true

	return nil
}

func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	err := c.conn.Close()
	c.connected = false
	c.conn = nil
	c.line = nil

	return err
}

func (c *TCPClient) Write(ctx context.Context, cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.arm(ctx); err != nil {
		return err
	}
	return c.line.send(cmd)
}

func (c *TCPClient) Query(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.arm(ctx); err != nil {
		return "", err
	}
	if err := c.resync(ctx); err != nil {
		return "", err
	}
	if err := c.line.send(cmd); err != nil {
		return "", err
	}
	return c.line.readLine(cmd)
}

func (c *TCPClient) QueryRaw(ctx context.Context, cmd string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.arm(ctx); err != nil {
		return nil, err
	}
	if err := c.resync(ctx); err != nil {
		return nil, err
	}
	if err := c.line.send(cmd); err != nil {
		return nil, err
	}
	return c.line.readRaw(cmd)
}

func (c *TCPClient) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(ClearWindow)); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	c.line.discard()
	return nil
}

// resync brings the reply stream back in step after an earlier timeout.
// It runs after arm, so waiting for a late reply uses this request's
// deadline.
func (c *TCPClient) resync(ctx context.Context) error {
	if c.line.dirty {
		if err := c.conn.SetReadDeadline(time.Now().Add(ClearWindow)); err != nil {
			return fmt.Errorf("drain failed: %w", err)
		}
		c.line.discard()
		if err := c.arm(ctx); err != nil {
			return err
		}
	}
	return c.line.settle()
}

// arm sets the connection deadline from ctx, bounded by the client
// timeout unless ctx was marked with UntilDeadline.
func (c *TCPClient) arm(ctx context.Context) error {
	if !c.connected {
		return fmt.Errorf("not connected")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if d, ok := untilDeadline(ctx); ok {
		return c.conn.SetDeadline(d)
	}

	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return c.conn.SetDeadline(deadline)
}
