// Package transporttest provides scripted upstream connections for tests.
package transporttest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
)

// ErrInvalidStream is returned by Transports for destinations they do not know.
var ErrInvalidStream = errors.New("invalid stream")

var _ core.Conn = (*Conn)(nil)

// Conn replays a fixed list of frames, then returns Err.
// If Err is nil, Receive blocks after the last frame until ctx is done or the conn is closed.
type Conn struct {
	Err error

	mu     sync.Mutex
	frames [][]byte
	next   int

	receives atomic.Int32
	closes   atomic.Int32
	closed   chan struct{}
	once     sync.Once
}

func NewConn(frames ...string) *Conn {
	c := &Conn{closed: make(chan struct{})}
	for _, f := range frames {
		c.frames = append(c.frames, []byte(f))
	}
	return c
}

func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	c.receives.Add(1)

	c.mu.Lock()
	if c.next < len(c.frames) {
		frame := c.frames[c.next]
		c.next++
		c.mu.Unlock()
		return frame, nil
	}
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *Conn) Close() error {
	c.closes.Add(1)
	c.once.Do(func() {
		close(c.closed)
	})
	return nil
}

// Receives returns how often Receive was called.
func (c *Conn) Receives() int {
	return int(c.receives.Load())
}

// Closes returns how often Close was called.
func (c *Conn) Closes() int {
	return int(c.closes.Load())
}

// Transport hands out connections by destination.
type Transport struct {
	mu    sync.Mutex
	conns map[string]func() *Conn
	dials map[string]int
}

func NewTransport() *Transport {
	return &Transport{
		conns: make(map[string]func() *Conn),
		dials: make(map[string]int),
	}
}

// Handle makes Connect(destination) succeed with a fresh connection from newConn.
func (t *Transport) Handle(destination string, newConn func() *Conn) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[destination] = newConn
	return t
}

func (t *Transport) Connect(_ context.Context, address string) (core.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dials[address]++
	newConn, ok := t.conns[address]
	if !ok {
		return nil, ErrInvalidStream
	}
	return newConn(), nil
}

// Dials returns how often address was dialed.
func (t *Transport) Dials(address string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials[address]
}

// Hanging is a transport whose Connect ignores its context and blocks until Release is called.
type Hanging struct {
	release chan struct{}
	once    sync.Once
	started atomic.Int32
}

func NewHanging() *Hanging {
	return &Hanging{release: make(chan struct{})}
}

func (h *Hanging) Connect(_ context.Context, _ string) (core.Conn, error) {
	h.started.Add(1)
	<-h.release
	return NewConn(), nil
}

// Release unblocks all pending and future Connect calls.
func (h *Hanging) Release() {
	h.once.Do(func() {
		close(h.release)
	})
}

// Started returns how many Connect calls were made.
func (h *Hanging) Started() int {
	return int(h.started.Load())
}
