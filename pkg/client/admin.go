package client

import (
	"context"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api"
)

// Metrics retrieves the server's counters by metric name.
func (c *Client) Metrics(ctx context.Context) (map[string]int64, string, error) {
	var resp map[string]int64
	correlation, err := c.get(ctx, c.url().
		setPath(api.MetricsRoute).
		build(), &resp)
	return resp, correlation, err
}
