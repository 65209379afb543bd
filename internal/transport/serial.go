package transport

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.bug.st/serial"
)

// SerialClient talks to an instrument over a serial or USB-CDC port.
type SerialClient struct {
	portName   string
	mode       *serial.Mode
	timeout    time.Duration
	terminator string

	mu        sync.Mutex
	port      serial.Port
	line      *lineConn
	connected bool
}

func NewSerialClient(portName string, baudRate int, timeout time.Duration, terminator string) *SerialClient {
	if baudRate == 0 {
		baudRate = 115200
	}
	return &SerialClient{
		portName:   portName,
		mode:       &serial.Mode{BaudRate: baudRate, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit},
		timeout:    timeout,
		terminator: terminator,
	}
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

func (c *SerialClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	port, err := serial.Open(c.portName, c.mode)
	if err != nil {
		return fmt.Errorf("open %s failed: %w", c.portName, err)
	}
	if err := port.SetReadTimeout(c.readTimeout()); err != nil {
		port.Close()
		return fmt.Errorf("set read timeout on %s: %w", c.portName, err)
	}

	c.port = port
	c.line = newLineConn(timeoutPort{port}, c.terminator)
	c.connected = true
	return nil
}

func (c *SerialClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	err := c.port.Close()
	c.connected = false
	c.port = nil
	c.line = nil
	return err
}

func (c *SerialClient) Write(ctx context.Context, cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(ctx); err != nil {
		return err
	}
	return c.line.send(cmd)
}

func (c *SerialClient) Query(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(ctx); err != nil {
		return "", err
	}
	restore, err := c.extendRead(ctx)
	if err != nil {
		return "", err
	}
	defer restore()
	if err := c.resync(); err != nil {
		return "", err
	}
	if err := c.line.send(cmd); err != nil {
		return "", err
	}
	return c.line.readLine(cmd)
}

func (c *SerialClient) QueryRaw(ctx context.Context, cmd string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	restore, err := c.extendRead(ctx)
	if err != nil {
		return nil, err
	}
	defer restore()
	if err := c.resync(); err != nil {
		return nil, err
	}
	if err := c.line.send(cmd); err != nil {
		return nil, err
	}
	return c.line.readRaw(cmd)
}

func (c *SerialClient) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(ctx); err != nil {
		return err
	}
	return c.drain()
}

func (c *SerialClient) drain() error {
	if err := c.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	c.line.r.Reset(c.line.src)
	c.line.owed = 0
	c.line.dirty = false
	return nil
}

func (c *SerialClient) resync() error {
	if c.line.dirty {
		if err := c.drain(); err != nil {
			return err
		}
	}
	return c.line.settle()
}

// extendRead lifts the port read timeout to ctx's deadline for requests
// marked with UntilDeadline. The returned func puts the timeout back.
func (c *SerialClient) extendRead(ctx context.Context) (func(), error) {
	d, ok := untilDeadline(ctx)
	if !ok {
		return func() {}, nil
	}
	left := time.Until(d)
	if left <= 0 {
		return nil, context.DeadlineExceeded
	}
	if err := c.port.SetReadTimeout(left); err != nil {
		return nil, fmt.Errorf("set read timeout on %s: %w", c.portName, err)
	}
	return func() { _ = c.port.SetReadTimeout(c.readTimeout()) }, nil
}

func (c *SerialClient) ready(ctx context.Context) error {
	if !c.connected {
		return fmt.Errorf("not connected")
	}
	return ctx.Err()
}

func (c *SerialClient) readTimeout() time.Duration {
	if c.timeout <= 0 {
		return serial.NoTimeout
	}
	return c.timeout
}

// timeoutPort turns the (0, nil) reads go.bug.st/serial reports on a read
// timeout into os.ErrDeadlineExceeded, so bufio does not spin.
type timeoutPort struct {
	serial.Port
}

func (p timeoutPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == nil && len(b) > 0 {
		return 0, os.ErrDeadlineExceeded
	}
	return n, err
}
