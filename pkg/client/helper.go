package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/decentraminds/osmosis-streaming-driver/internal/api/middleware"
	"github.com/decentraminds/osmosis-streaming-driver/internal/api/presenter"
)

var ErrInvalidSession = errors.New("invalid session token")

type APIError struct {
	StatusCode    int
	CorrelationID string
	Message       string
}

func (e APIError) Error() string {
	return fmt.Sprintf("api error %d: '%s' (correlation: %s)", e.StatusCode, e.Message, e.CorrelationID)
}

func (c *Client) get(ctx context.Context, url string, result any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, url string, result any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

func parseErrorResponse(resp *http.Response) error {
	var errResp presenter.ErrorResponse
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status %d and unreadable body: %w", resp.StatusCode, err)
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		if errResp.Error == "invalid session token" {
			return ErrInvalidSession
		}
		return APIError{
			StatusCode:    resp.StatusCode,
			CorrelationID: errResp.CorrelationID,
			Message:       errResp.Error,
		}
	}
	return fmt.Errorf("api error: *unparsed '%s' (status %d)", string(body), resp.StatusCode)
}

// send executes req and returns the response only if the status is below 400.
// The caller must close the body.
func (c *Client) send(req *http.Request) (*http.Response, string, error) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("connection failed: %w", err)
	}
	correlation := correlationFromResponse(resp)

	if resp.StatusCode >= 400 {
		defer func(body io.ReadCloser) {
			_ = body.Close()
		}(resp.Body)
		return nil, correlation, parseErrorResponse(resp)
	}
	return resp, correlation, nil
}

func (c *Client) do(req *http.Request, result any) (string, error) {
	resp, correlation, err := c.send(req)
	if err != nil {
		return correlation, err
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return correlation, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return correlation, nil
}

func correlationFromResponse(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	return resp.Header.Get(middleware.CorrelationIDHeader)
}
