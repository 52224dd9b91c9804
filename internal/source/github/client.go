package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/gh-triage/internal/source"
)

// Client is a thin HTTP client for the GitHub REST API. It handles
// Bearer token authentication, JSON unmarshaling, and automatic retry
// with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a new GitHub HTTP client. The baseURL should be the
// root URL of the API (e.g., https://api.github.com). The token is a
// personal access token used for Bearer authentication.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
}

// Get performs an HTTP GET request against a path relative to the base
// URL and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	result interface{},
) error {
	return c.do(ctx, http.MethodGet, c.baseURL+path, result)
}

// GetURL performs an HTTP GET request against an absolute API URL (as
// carried by notification subjects) and unmarshals the JSON response.
func (c *Client) GetURL(
	ctx context.Context,
	url string,
	result interface{},
) error {
	return c.do(ctx, http.MethodGet, url, result)
}

// Patch performs an HTTP PATCH request with no body. Used to mark
// notification threads read.
func (c *Client) Patch(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodPatch, c.baseURL+path, nil)
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON deserialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	url string,
	result interface{},
) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/vnd.github+json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf(
				"executing request %s %s: %w", method, url, err,
			)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf(
				"rate limited (429) on %s %s", method, url,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return &source.AuthError{
				Message: fmt.Sprintf(
					"authentication failed (401): check your "+
						"personal access token for %s", c.baseURL,
				),
			}
		}

		if resp.StatusCode == http.StatusNotFound {
			return &source.NotFoundError{URL: url}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var ghErr apiError
			if json.Unmarshal(respBody, &ghErr) == nil &&
				ghErr.Message != "" {
				return fmt.Errorf(
					"github API error (%d) on %s %s: %s",
					resp.StatusCode, method, url, ghErr.Message,
				)
			}
			return fmt.Errorf(
				"unexpected status %d on %s %s: %s",
				resp.StatusCode, method, url, string(respBody),
			)
		}

		// No content to parse (e.g. 205 from thread PATCH).
		if result == nil || len(respBody) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w",
				method, url, err,
			)
		}

		return nil
	}

	return fmt.Errorf(
		"max retries (%d) exceeded: %w", c.maxRetries, lastErr,
	)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
