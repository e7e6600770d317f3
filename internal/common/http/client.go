// internal/common/http/client.go
// Package http wraps the standard client with a fixed timeout so outbound
// calls, such as the judgment archive fetches, never hang a request
// indefinitely.
package http

import (
	"context"
	"net/http"
	"time"
)

// Client is an http.Client with a mandatory per-request timeout.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// DoWithContext binds the request to ctx so cancellation propagates on top
// of the client timeout.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}
