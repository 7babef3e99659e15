package telemetry

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, c *Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, nil)
	require.NoError(t, err)
	return c.Do(req)
}

func TestClientDeliversResponses(t *testing.T) {
	// Anything below 500 is a plain response, including client errors.
	for _, status := range []int{http.StatusOK, http.StatusNoContent, http.StatusNotFound} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		c := NewClient(ClientConfig{Timeout: time.Second, Logger: discardLogger()})
		resp, err := post(t, c, srv.URL)
		require.NoError(t, err, "status %d", status)
		assert.Equal(t, status, resp.StatusCode)
		resp.Body.Close()
		srv.Close()
	}
}

func TestClientServerErrorRidesAlong(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Timeout: time.Second, Logger: discardLogger()})
	resp, err := post(t, c, srv.URL)
	require.Error(t, err)
	require.NotNil(t, resp, "the response must be returned so the caller can read the status")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestClientTransportError(t *testing.T) {
	c := NewClient(ClientConfig{Timeout: 200 * time.Millisecond, Logger: discardLogger()})
	resp, err := post(t, c, "http://127.0.0.1:9")
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestClientBreakerOpensAfterConsecutiveServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Timeout: time.Second, Logger: discardLogger()})

	for i := 0; i < 6; i++ {
		resp, err := post(t, c, srv.URL)
		require.Error(t, err, "attempt %d", i+1)
		require.NotNil(t, resp)
		resp.Body.Close()
	}
	require.EqualValues(t, 6, hits.Load())

	resp, err := post(t, c, srv.URL)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 6, hits.Load(), "an open breaker must not reach the server")
}

func TestClientSuccessResetsFailureStreak(t *testing.T) {
	var (
		hits atomic.Int32
		fail atomic.Bool
	)
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Timeout: time.Second, Logger: discardLogger()})

	doOne := func() {
		resp, _ := post(t, c, srv.URL)
		if resp != nil {
			resp.Body.Close()
		}
	}

	for i := 0; i < 5; i++ {
		doOne()
	}
	fail.Store(false)
	doOne()
	fail.Store(true)
	doOne()
	doOne()

	// Five failures, a success, two failures: nine requests total but only
	// two consecutive, so the breaker is still closed.
	resp, err := post(t, c, srv.URL)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.EqualValues(t, 9, hits.Load())
}
