package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Client talks to the status API of a locally running Ollama instance.
type Client struct {
	// baseURL is the runtime endpoint, e.g. http://127.0.0.1:11434.
	baseURL string
	// httpClient carries the per-request timeout.
	httpClient *http.Client
}

// errRuntimeNotReady is returned when the status endpoint answers with a
// non-200 status.
var errRuntimeNotReady = errors.New("runtime endpoint not ready")

// NewClient creates a client for the runtime status endpoint.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ready probes the version endpoint and reports whether the runtime answers.
func (c *Client) Ready(ctx context.Context) error {
	response, err := c.get(ctx, "/api/version")
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w", response.Status, errRuntimeNotReady)
	}

	return nil
}

// Models lists the model names known to the runtime.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	response, err := c.get(ctx, "/api/tags")
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %w", response.Status, errRuntimeNotReady)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}

	if err = json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	names := make([]string, 0, len(payload.Models))
	for _, model := range payload.Models {
		names = append(names, model.Name)
	}

	return names, nil
}

// HasModel reports whether the runtime already serves the named model.
// Tags default to ":latest", so "llama3" matches "llama3:latest".
func HasModel(installed []string, name string) bool {
	for _, candidate := range installed {
		if candidate == name {
			return true
		}

		if base, _, found := strings.Cut(candidate, ":"); found && base == name {
			return true
		}
	}

	return false
}

// get issues a GET request against an API path of the runtime.
func (c *Client) get(ctx context.Context, apiPath string) (*http.Response, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse runtime URL: %w", err)
	}

	endpoint.Path = path.Join(endpoint.Path, apiPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return nil, err
	}

	return c.httpClient.Do(req)
}
