// Package httpretry provides a small JSON-over-HTTP client with capped
// exponential-backoff retries, used for best-effort posts to local
// ingestion endpoints.
package httpretry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxResponseBodyBytes = 64 * 1024

type Config struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

type Client struct {
	ctx        context.Context
	baseURL    string
	httpClient *http.Client
	config     Config
	authToken  string
}

func NewClient(ctx context.Context, baseURL string, httpClient *http.Client, config Config) *Client {
	return &Client{
		ctx:        ctx,
		baseURL:    baseURL,
		httpClient: httpClient,
		config:     config,
	}
}

// SetAuthToken makes every request carry the token as an Authorization
// bearer header. Call before the first request; not synchronized.
func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

func (c *Client) Post(path string, body interface{}) (*http.Response, error) {
	url := c.baseURL + path

	var jsonBytes []byte
	if body != nil {
		var err error
		jsonBytes, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, url, bytes.NewReader(jsonBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonBytes)), nil
	}
	return c.Do(req)
}

// Do issues the request, retrying on transport errors and 5xx responses
// with doubling backoff up to MaxBackoff. The request body is restored
// from GetBody before each retry.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	backoff := c.config.Backoff
	if c.authToken != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-c.ctx.Done():
				return nil, c.ctx.Err()
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
				backoff *= 2
				if backoff > c.config.MaxBackoff {
					backoff = c.config.MaxBackoff
				}
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					lastErr = err
					continue
				}
				req.Body = body
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = &RetryableError{StatusCode: resp.StatusCode}
			resp.Body.Close()
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type RetryableError struct {
	StatusCode int
}

func (e *RetryableError) Error() string {
	return "retryable error"
}

// ReadResponseBody drains and closes the body, truncating past 64 KiB.
func ReadResponseBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}
	defer resp.Body.Close()
	limited := io.LimitReader(resp.Body, maxResponseBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(body) > maxResponseBodyBytes {
		slog.Warn("response body truncated", "limit_bytes", maxResponseBodyBytes)
		body = body[:maxResponseBodyBytes]
	}
	return body, nil
}
