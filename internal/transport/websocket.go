package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/decentraminds/osmosis-streaming-driver/internal/buildinfo"
	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
)

const (
	WebsocketType = "websocket"

	DefaultHandshakeTimeout = 10 * time.Second
	closeWriteTimeout       = time.Second
)

// WebsocketConfig holds the options of a websocket transport.
type WebsocketConfig struct {
	// HandshakeTimeout bounds the opening handshake. The context deadline applies as well.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`

	// Headers are sent with the opening handshake (e.g. an API key of the upstream feed).
	Headers map[string]string `mapstructure:"headers"`

	// Subprotocols are offered during the handshake.
	Subprotocols []string `mapstructure:"subprotocols"`

	// ReadLimit is the maximum frame size in bytes. Zero means no limit.
	ReadLimit int64 `mapstructure:"read_limit"`

	// InsecureSkipVerify disables TLS verification for wss:// destinations.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

var _ core.Transport = (*Websocket)(nil)

type Websocket struct {
	dialer    *websocket.Dialer
	header    http.Header
	readLimit int64
}

func NewWebsocket(cfg WebsocketConfig) *Websocket {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
		Subprotocols:     cfg.Subprotocols,
	}
	if cfg.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
	}

	header := make(http.Header, len(cfg.Headers)+1)
	header.Set("User-Agent", buildinfo.UserAgent())
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}

	return &Websocket{
		dialer:    dialer,
		header:    header,
		readLimit: cfg.ReadLimit,
	}
}

func (w *Websocket) Connect(ctx context.Context, address string) (core.Conn, error) {
	conn, resp, err := w.dialer.DialContext(ctx, address, w.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	if w.readLimit > 0 {
		conn.SetReadLimit(w.readLimit)
	}
	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (c *websocketConn) Receive(ctx context.Context) ([]byte, error) {
	deadline, _ := ctx.Deadline() // zero value clears the deadline
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	// wake up the blocked read if ctx is cancelled
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		err = receiveErr(ctx, err)
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
			return nil, fmt.Errorf("upstream closed the stream: %w", err)
		}
		return nil, err
	}
	return data, nil
}

func (c *websocketConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
