// Package bitbucket is a client for the slice of the Bitbucket Cloud
// 2.0 REST API the panel consumes: pull request listing with state
// filters, pull request detail with participants, and commit listing.
package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the Bitbucket Cloud API root.
const DefaultBaseURL = "https://api.bitbucket.org/2.0"

// AuthError indicates that authentication failed for Bitbucket. It is
// returned when a 401 response is received.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("bitbucket auth error: %s", e.Message)
}

// Client is a thin HTTP client for the Bitbucket Cloud REST API. It
// handles Basic authentication with an app password, JSON marshaling,
// and automatic retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	username   string
	appPass    string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a new Bitbucket Cloud client authenticating as
// username with the given app password.
func NewClient(baseURL, username, appPassword string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		appPass:  appPassword,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	result interface{},
) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// StripAPIBase converts an absolute pagination URL (the "next" cursor
// on list responses) back into a client-relative path. Unrelated URLs
// pass through unchanged.
func (c *Client) StripAPIBase(url string) string {
	return strings.TrimPrefix(strings.TrimPrefix(url, DefaultBaseURL), c.baseURL)
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Rebuild the body reader on retries since it was consumed.
		if attempt > 0 && body != nil {
			data, _ := json.Marshal(body)
			bodyReader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(
			ctx, method, url, bodyReader,
		)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.SetBasicAuth(c.username, c.appPass)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf(
				"executing request %s %s: %w", method, path, err,
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
				"rate limited (429) on %s %s", method, path,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return &AuthError{
				Message: fmt.Sprintf(
					"authentication failed (401): check the app "+
						"password for %s", c.username,
				),
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var bbErr ErrorResponse
			if json.Unmarshal(respBody, &bbErr) == nil &&
				bbErr.Error.Message != "" {
				return fmt.Errorf(
					"bitbucket API error (%d) on %s %s: %s",
					resp.StatusCode, method, path,
					bbErr.Error.Message,
				)
			}
			return fmt.Errorf(
				"unexpected status %d on %s %s: %s",
				resp.StatusCode, method, path, string(respBody),
			)
		}

		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w",
				method, path, err,
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
