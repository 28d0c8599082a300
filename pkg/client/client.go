// Package client is a Go client for the osmosis streaming driver HTTP API.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/decentraminds/osmosis-streaming-driver/internal/buildinfo"
)

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	authToken  string
	userAgent  string
}

type Option func(*Client)

// WithAuthToken sets the admin token sent with every request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithHTTPClient replaces the default client. Note that a client timeout also cuts off streams.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got '%s'", baseURL)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		userAgent:  buildinfo.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type urlBuilder struct {
	u     url.URL
	query url.Values
}

func (c *Client) url() *urlBuilder {
	return &urlBuilder{
		u:     *c.baseURL,
		query: url.Values{},
	}
}

func (b *urlBuilder) setPath(path string) *urlBuilder {
	b.u.Path = strings.TrimRight(b.u.Path, "/") + path
	return b
}

// setPathParam replaces a {name} wildcard of the route pattern.
func (b *urlBuilder) setPathParam(name string, value any) *urlBuilder {
	b.u.Path = strings.ReplaceAll(b.u.Path, "{"+name+"}", fmt.Sprint(value))
	return b
}

func (b *urlBuilder) addQueryParam(key string, value any) *urlBuilder {
	b.query.Add(key, fmt.Sprint(value))
	return b
}

func (b *urlBuilder) build() string {
	b.u.RawQuery = b.query.Encode()
	return b.u.String()
}
