// Package rtmstest provides an in-memory transport for exercising legs
// without a network.
package rtmstest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/rtms-tutor/internal/rtms"
)

// Frame is one websocket message.
type Frame struct {
	Type int
	Data []byte
}

// Conn is a fake rtms.Conn. Tests push inbound frames and read what the leg
// wrote.
type Conn struct {
	inbound  chan Frame
	outbound chan Frame
	closed   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	readErr   error
}

func NewConn() *Conn {
	return &Conn{
		inbound:  make(chan Frame, 64),
		outbound: make(chan Frame, 64),
		closed:   make(chan struct{}),
	}
}

func (c *Conn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.closed:
		return 0, nil, c.closeErr()
	default:
	}

	select {
	case f := <-c.inbound:
		return f.Type, f.Data, nil
	case <-c.closed:
		return 0, nil, c.closeErr()
	}
}

func (c *Conn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return rtms.ErrConnClosed
	default:
	}

	frame := Frame{Type: messageType, Data: append([]byte(nil), data...)}
	select {
	case c.outbound <- frame:
		return nil
	case <-c.closed:
		return rtms.ErrConnClosed
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Fail closes the connection so that the pending read returns err.
func (c *Conn) Fail(err error) {
	c.mu.Lock()
	c.readErr = err
	c.mu.Unlock()
	_ = c.Close()
}

// Done is closed once the connection is closed from either side.
func (c *Conn) Done() <-chan struct{} { return c.closed }

func (c *Conn) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return c.readErr
	}
	return rtms.ErrConnClosed
}

// Push queues v as a JSON text frame for the leg to read.
func (c *Conn) Push(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal inbound frame: %v", err)
	}
	c.PushFrame(websocket.TextMessage, data)
}

// PushFrame queues a raw frame for the leg to read.
func (c *Conn) PushFrame(messageType int, data []byte) {
	c.inbound <- Frame{Type: messageType, Data: data}
}

// Next returns the next frame written by the leg, decoded as a JSON object.
func (c *Conn) Next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case f := <-c.outbound:
		var msg map[string]any
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			t.Fatalf("decode outbound frame %q: %v", f.Data, err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound frame")
		return nil
	}
}

// ExpectSilence fails if the leg writes anything within d.
func (c *Conn) ExpectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case f := <-c.outbound:
		t.Fatalf("unexpected outbound frame %s", f.Data)
	case <-time.After(d):
	}
}

// Dialer hands out one fake Conn per URL and records every dial.
type Dialer struct {
	mu    sync.Mutex
	conns map[string]*Conn
	count map[string]int
	dials chan string

	// Err, when set, fails every dial.
	Err error
}

func NewDialer() *Dialer {
	return &Dialer{
		conns: make(map[string]*Conn),
		count: make(map[string]int),
		dials: make(chan string, 16),
	}
}

// Conn returns the connection served for url, creating it on first use.
func (d *Dialer) Conn(url string) *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.conns[url]
	if !ok {
		c = NewConn()
		d.conns[url] = c
	}
	return c
}

func (d *Dialer) Dial(ctx context.Context, url string) (rtms.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Err != nil {
		return nil, d.Err
	}

	c := d.Conn(url)
	d.mu.Lock()
	d.count[url]++
	d.mu.Unlock()

	select {
	case d.dials <- url:
	default:
	}
	return c, nil
}

// Dials returns how many times url was dialed.
func (d *Dialer) Dials(url string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count[url]
}

// WaitDial returns the next dialed URL.
func (d *Dialer) WaitDial(t *testing.T) string {
	t.Helper()
	select {
	case url := <-d.dials:
		return url
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
		return ""
	}
}
