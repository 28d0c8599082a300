package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api"
	"github.com/decentraminds/osmosis-streaming-driver/internal/service"
)

// IssueTokenOptions contains optional parameters for issuing a token.
type IssueTokenOptions struct {
	// ExpiresAt requests an absolute expiry. Takes precedence over TTL.
	ExpiresAt time.Time

	// TTL requests a lifetime relative to the time of issuance.
	TTL time.Duration
}

// IssueToken asks the server to probe streamURL and issue a token for it.
func (c *Client) IssueToken(
	ctx context.Context,
	streamURL string,
	opts IssueTokenOptions,
) (*service.IssueResponse, string, error) {
	ub := c.url().
		setPath(api.IssueTokenRoute).
		addQueryParam("stream_url", streamURL)
	if !opts.ExpiresAt.IsZero() {
		ub = ub.addQueryParam("expires_at", opts.ExpiresAt.Format(time.RFC3339))
	}
	if opts.TTL > 0 {
		ub = ub.addQueryParam("ttl", opts.TTL)
	}

	var resp service.IssueResponse
	correlation, err := c.get(ctx, ub.build(), &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// Stream redeems token and returns the relayed stream.
// The body ends when the token expires or the upstream closes. The caller must close it.
func (c *Client) Stream(ctx context.Context, token string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url().
		setPath(api.ProxyRoute).
		addQueryParam("token", token).
		build(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	resp, correlation, err := c.send(req)
	if err != nil {
		return nil, correlation, err
	}
	return resp.Body, correlation, nil
}
