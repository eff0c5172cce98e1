// JSON HTTP client shared by every provider adapter
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/goose/internal/shared"
)

// RequestTimeout bounds every provider call.
const RequestTimeout = 10 * time.Second

// NewHTTPClient returns an [http.Client] bounded by [RequestTimeout].
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: RequestTimeout}
}

// APIClient performs JSON requests against one provider base URL.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	header     http.Header
}

// NewAPIClient creates a client for baseURL. A nil client gets [NewHTTPClient].
func NewAPIClient(baseURL string, client *http.Client) *APIClient {
	if client == nil {
		client = NewHTTPClient()
	}

	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		header:     http.Header{"Accept": []string{"application/json"}},
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// WithHeader returns a copy of the client that sends key on every request.
func (a *APIClient) WithHeader(key, value string) *APIClient {
	c := *a
	c.header = a.header.Clone()
	c.header.Set(key, value)
	return &c
}

// WithHTTPClient returns a copy of the client using hc.
func (a *APIClient) WithHTTPClient(hc *http.Client) *APIClient {
	c := *a
	c.httpClient = hc
	return &c
}

// BaseURL returns the provider root the client was created for.
func (a *APIClient) BaseURL() string {
	return a.baseURL
}

// URL joins path and query onto the base URL.
func (a *APIClient) URL(path string, query url.Values) string {
	u := a.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIClient) Get(ctx context.Context, path string, query url.Values) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range a.header {
		req.Header[k] = v
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}

// GetJSON performs a GET request and decodes a 2xx body into result.
//
// 404 wraps [shared.ErrTrackNotFound]; other failures wrap [shared.ErrAPIRequest].
func (a *APIClient) GetJSON(ctx context.Context, path string, query url.Values, result any) error {
	resp, err := a.Get(ctx, path, query)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s returned status %d", shared.ErrAPIRequest, path, resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}
	return nil
}
