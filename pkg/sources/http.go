// Package sources holds the HTTP plumbing shared by the collaborator
// clients in its subpackages.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/benjaminschreck/go-docreport/pkg/logging"
)

// ClientOptions configures the shared transport.
type ClientOptions struct {
	Timeout  time.Duration
	RetryMax int
	Logger   zerolog.Logger
}

// NewHTTPClient returns a retrying client that logs through zerolog.
func NewHTTPClient(opts ClientOptions) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = logging.NewRetryLogger(opts.Logger)
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	}
	return client
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Authorizer decorates outgoing requests with credentials.
type Authorizer func(req *retryablehttp.Request)

// BearerToken authorizes with a personal access token.
func BearerToken(token string) Authorizer {
	return func(req *retryablehttp.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// BasicAuth authorizes with user name and API token.
func BasicAuth(user, token string) Authorizer {
	return func(req *retryablehttp.Request) {
		req.SetBasicAuth(user, token)
	}
}

// GetJSON fetches url and decodes the JSON body into out. Non-2xx
// responses are returned as *StatusError.
func GetJSON(ctx context.Context, client *retryablehttp.Client, url string, auth Authorizer, out interface{}) error {
	body, err := Get(ctx, client, url, auth)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

// Get fetches url and returns the body.
func Get(ctx context.Context, client *retryablehttp.Client, url string, auth Authorizer) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if auth != nil {
		auth(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return body, nil
}
