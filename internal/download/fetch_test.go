package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFetch_HTTP downloads a payload from a local server and checks the content.
func TestFetch_HTTP(t *testing.T) {
	t.Parallel()

	payload := []byte("dataset-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "cifar10.zip")
	require.NoError(t, Fetch(context.Background(), server.URL+"/cifar10.zip", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

// TestFetch_HTTPStatusError ensures non-200 responses surface ErrBadHTTPStatus
// and leave no partial file behind.
func TestFetch_HTTPStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "missing.zip")

	err := Fetch(context.Background(), server.URL+"/missing.zip", dest)
	require.ErrorIs(t, err, ErrBadHTTPStatus)

	_, err = os.Stat(dest)
	require.ErrorIs(t, err, os.ErrNotExist)

	// No temp leftovers either.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestClient_FetchTimeout aborts a download when the server never answers.
func TestClient_FetchTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(50 * time.Millisecond)

	err := client.Fetch(context.Background(), server.URL+"/stalled.bin", filepath.Join(t.TempDir(), "stalled.bin"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestFetch_UnsupportedScheme rejects schemes other than http(s) and s3.
func TestFetch_UnsupportedScheme(t *testing.T) {
	t.Parallel()

	err := Fetch(context.Background(), "ftp://mirror.local/file", filepath.Join(t.TempDir(), "f"))
	require.ErrorIs(t, err, ErrUnsupportedScheme)
}

// TestFetch_InvalidS3URL rejects s3 URLs without bucket or key before any AWS call.
func TestFetch_InvalidS3URL(t *testing.T) {
	t.Parallel()

	err := Fetch(context.Background(), "s3://bucket-only", filepath.Join(t.TempDir(), "f"))
	require.ErrorIs(t, err, ErrInvalidS3URL)
}
