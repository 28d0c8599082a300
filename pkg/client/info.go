package client

import (
	"context"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api"
	"github.com/decentraminds/osmosis-streaming-driver/internal/buildinfo"
	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
)

func (c *Client) About(ctx context.Context) (*buildinfo.Info, string, error) {
	var info buildinfo.Info
	correlation, err := c.get(ctx, c.url().
		setPath(api.AboutRoute).
		build(), &info)
	return &info, correlation, err
}

// Info returns all tokens the server knows, expired ones included.
func (c *Client) Info(ctx context.Context) (map[string]core.TokenEntry, string, error) {
	var snapshot map[string]core.TokenEntry
	correlation, err := c.get(ctx, c.url().
		setPath(api.InfoRoute).
		build(), &snapshot)
	return snapshot, correlation, err
}
