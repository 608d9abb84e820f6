package httpretry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	pkgError "github.com/AzielCF/az-audit/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T, url string) *http.Request {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, WithBaseDelay(10*time.Millisecond))
	resp, err := client.Do(context.Background(), newRequest(t, srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_ForbiddenIsNeverRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(403)
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, WithBaseDelay(10*time.Millisecond))
	_, err := client.Do(context.Background(), newRequest(t, srv.URL))

	require.Error(t, err)
	assert.IsType(t, pkgError.AuthError(""), err)
	// Exactly one attempt: authorization problems must not cause retry storms
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_RateLimitHonorsRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(429)
			return
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, WithBaseDelay(10*time.Millisecond))
	start := time.Now()
	resp, err := client.Do(context.Background(), newRequest(t, srv.URL))
	elapsed := time.Since(start)

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.GreaterOrEqual(t, elapsed, 1*time.Second, "must wait at least Retry-After seconds")
}

func TestDo_TransientRetriesWithIncreasingDelay(t *testing.T) {
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, time.Now())
		w.WriteHeader(503)
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, WithMaxRetries(2), WithBaseDelay(50*time.Millisecond))
	_, err := client.Do(context.Background(), newRequest(t, srv.URL))

	require.Error(t, err)
	assert.IsType(t, pkgError.TransientError(""), err)
	require.Len(t, stamps, 3, "initial attempt plus maxRetries")

	firstGap := stamps[1].Sub(stamps[0])
	secondGap := stamps[2].Sub(stamps[1])
	assert.GreaterOrEqual(t, firstGap, 50*time.Millisecond)
	assert.GreaterOrEqual(t, secondGap, 100*time.Millisecond)
	assert.Greater(t, secondGap, firstGap, "backoff must grow between attempts")
}

func TestDo_NonRetryableStatusIsPropagated(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(404)
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, WithBaseDelay(10*time.Millisecond))
	resp, err := client.Do(context.Background(), newRequest(t, srv.URL))

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_ContextCancelStopsBackoffWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(5*time.Second, WithBaseDelay(5*time.Second))

	done := make(chan error, 1)
	go func() {
		_, err := client.Do(ctx, newRequest(t, srv.URL))
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(1 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}
