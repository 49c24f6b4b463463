package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrBadHTTPStatus is returned when the remote host answers with a non-200 status.
	ErrBadHTTPStatus = errors.New("unexpected http status")
	// ErrUnsupportedScheme is returned for URLs that are neither http(s) nor s3.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

// Client bounds every fetch with a timeout on top of the caller's context.
type Client struct {
	timeout time.Duration
}

// NewClient returns a fetcher whose downloads are bounded by timeout.
// A zero timeout leaves downloads bounded by the caller's context only.
func NewClient(timeout time.Duration) *Client {
	return &Client{timeout: timeout}
}

// Fetch downloads rawURL into destPath with the client's timeout applied.
// The timeout covers the whole transfer including the body copy, so a host
// that stalls mid-stream cannot hang the caller.
func (c *Client) Fetch(ctx context.Context, rawURL, destPath string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	return Fetch(ctx, rawURL, destPath)
}

// Fetch downloads rawURL into destPath, routing on the URL scheme.
// The payload is written to a temporary sibling file first and renamed into
// place, so an interrupted download never leaves a truncated artifact behind.
func Fetch(ctx context.Context, rawURL, destPath string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	switch parsed.Scheme {
	case "http", "https":
		return fetchHTTP(ctx, rawURL, destPath)
	case "s3":
		return fetchS3(ctx, parsed, destPath)
	default:
		return fmt.Errorf("%s: %w", parsed.Scheme, ErrUnsupportedScheme)
	}
}

// fetchHTTP downloads a file over plain HTTP(S).
func fetchHTTP(ctx context.Context, rawURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", rawURL, response.Status, ErrBadHTTPStatus)
	}

	return writeAtomically(destPath, response.Body)
}

// writeAtomically streams body into a temporary file next to destPath and
// renames it into place on success.
func writeAtomically(destPath string, body io.Reader) error {
	destPath = filepath.Clean(destPath)

	tmp, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".part-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	if _, err = io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return err
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return err
	}

	return os.Rename(tmpName, destPath)
}
