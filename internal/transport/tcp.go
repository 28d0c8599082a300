package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
)

const (
	TCPType = "tcp"

	DefaultReadBuffer  = 32 * 1024
	DefaultDialTimeout = 10 * time.Second
)

// TCPConfig holds the options of a raw TCP transport.
// TCP has no message framing: every read is relayed as one frame.
type TCPConfig struct {
	// DialTimeout is the maximum time to wait for the connection to be established.
	// Zero uses DefaultDialTimeout. The context deadline applies as well.
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// KeepAlive is the TCP keep-alive period. Zero uses the Go default.
	KeepAlive time.Duration `mapstructure:"keep_alive"`

	// ReadBuffer is the maximum size of a single frame.
	ReadBuffer int `mapstructure:"read_buffer"`
}

var _ core.Transport = (*TCP)(nil)

// TCP connects to "tcp://host:port" destinations.
type TCP struct {
	dialer     *net.Dialer
	readBuffer int
}

func NewTCP(cfg TCPConfig) *TCP {
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = DefaultReadBuffer
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	return &TCP{
		dialer: &net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		},
		readBuffer: cfg.ReadBuffer,
	}
}

func (t *TCP) Connect(ctx context.Context, address string) (core.Conn, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parsing address: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("address '%s' has no host", address)
	}
	conn, err := t.dialer.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return nil, err
	}
	return &tcpConn{
		conn: conn,
		buf:  make([]byte, t.readBuffer),
	}, nil
}

type tcpConn struct {
	conn      net.Conn
	buf       []byte
	closeOnce sync.Once
	closeErr  error
}

func (c *tcpConn) Receive(ctx context.Context) ([]byte, error) {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	n, err := c.conn.Read(c.buf)
	if n > 0 {
		// the buffer is reused by the next read
		frame := make([]byte, n)
		copy(frame, c.buf[:n])
		return frame, nil
	}
	if err != nil {
		return nil, receiveErr(ctx, err)
	}
	return []byte{}, nil
}

func (c *tcpConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
