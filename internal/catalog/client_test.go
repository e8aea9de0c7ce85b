package catalog

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// newTestClient returns a client without rate limiting and with a tiny
// back-off so retry tests stay fast.
func newTestClient(baseURL string) *Client {
	c := NewClient(ClientOptions{BaseURL: baseURL})
	c.rateLimiter = rate.NewLimiter(rate.Inf, 1)
	c.backoff = time.Millisecond
	return c
}

func TestClient_DownloadFileDecompresses(t *testing.T) {
	body := gzipBytes(t, `{"data": {}}`)
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		assert.Equal(t, "/"+AllPrintingsFile, r.URL.Path)
		_, _ = w.Write(body)
	}))
	defer server.Close()

	c := newTestClient(server.URL + "/")
	path := filepath.Join(t.TempDir(), "nested", "AllPrintings.json")

	n, err := c.DownloadFile(context.Background(), c.URL(AllPrintingsFile), path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(`{"data": {}}`)), n)
	assert.Equal(t, "deckvault/dev", userAgent)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"data": {}}`, string(data))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestClient_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.DownloadFile(context.Background(), c.URL("missing.json"), filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestClient_RetriesThrottledRequests(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	path := filepath.Join(t.TempDir(), "file.json")
	_, err := c.DownloadFile(context.Background(), c.URL("file.json"), path)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.DownloadFile(context.Background(), c.URL("file.json"), filepath.Join(t.TempDir(), "file.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.DownloadFile(context.Background(), c.URL("file.json"), filepath.Join(t.TempDir(), "file.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad request")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfter(""))
	assert.Equal(t, time.Duration(0), retryAfter("soon"))
	assert.Equal(t, time.Duration(0), retryAfter("-1"))
	assert.Equal(t, 2*time.Second, retryAfter("2"))
}
