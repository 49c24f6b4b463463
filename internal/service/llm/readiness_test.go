package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// readyAfter serves 503 for the first n probes and 200 afterwards.
func readyAfter(n int64) (*httptest.Server, *atomic.Int64) {
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= n {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))

	return server, &calls
}

// TestWaitReady_BecomesReady succeeds once the endpoint starts answering.
func TestWaitReady_BecomesReady(t *testing.T) {
	t.Parallel()

	server, _ := readyAfter(2)
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	opts := WaitOptions{PollInterval: 10 * time.Millisecond, MaxWait: 2 * time.Second}

	require.NoError(t, WaitReady(context.Background(), client, opts))
}

// TestWaitReady_Budget ensures the loop terminates within its budget.
func TestWaitReady_Budget(t *testing.T) {
	t.Parallel()

	server, _ := readyAfter(1 << 30)
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	opts := WaitOptions{PollInterval: 10 * time.Millisecond, MaxWait: 100 * time.Millisecond}

	start := time.Now()
	err := WaitReady(context.Background(), client, opts)
	require.ErrorIs(t, err, ErrNotReady)
	require.Less(t, time.Since(start), 2*time.Second)
}

// TestWaitReady_ContextCancel ensures cancellation stops the loop early.
func TestWaitReady_ContextCancel(t *testing.T) {
	t.Parallel()

	server, _ := readyAfter(1 << 30)
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)

	defer cancel()

	err := WaitReady(ctx, client, WaitOptions{PollInterval: 10 * time.Millisecond, MaxWait: time.Minute})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestEnsureReady_RestartOnce verifies exactly one restart attempt happens and
// the second polling round can succeed after it.
func TestEnsureReady_RestartOnce(t *testing.T) {
	t.Parallel()

	var ready atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var restarts atomic.Int64

	restart := func(_ context.Context) error {
		restarts.Add(1)
		ready.Store(true)

		return nil
	}

	client := NewClient(server.URL, time.Second)
	opts := WaitOptions{PollInterval: 10 * time.Millisecond, MaxWait: 50 * time.Millisecond}

	require.NoError(t, EnsureReady(context.Background(), client, restart, opts))
	require.EqualValues(t, 1, restarts.Load())
}

// TestEnsureReady_StillNotReady degrades to ErrNotReady after the restart.
func TestEnsureReady_StillNotReady(t *testing.T) {
	t.Parallel()

	server, _ := readyAfter(1 << 30)
	defer server.Close()

	var restarts atomic.Int64

	restart := func(_ context.Context) error {
		restarts.Add(1)
		return nil
	}

	client := NewClient(server.URL, time.Second)
	opts := WaitOptions{PollInterval: 10 * time.Millisecond, MaxWait: 50 * time.Millisecond}

	err := EnsureReady(context.Background(), client, restart, opts)
	require.ErrorIs(t, err, ErrNotReady)
	require.EqualValues(t, 1, restarts.Load())
}
