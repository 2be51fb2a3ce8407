package httputil

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoWithRetryRecoversFrom5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)

	resp, err := DoWithRetry(srv.Client(), req, 2)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoWithRetryGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = DoWithRetry(srv.Client(), req, 1)
	assert.ErrorContains(t, err, "server error: 503")
}

func TestReadBodyDecodes(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte("gzip body"))
	zw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write([]byte("brotli body"))
	bw.Close()

	tests := []struct {
		encoding string
		body     []byte
		want     string
	}{
		{"", []byte("plain body"), "plain body"},
		{"gzip", gz.Bytes(), "gzip body"},
		{"br", br.Bytes(), "brotli body"},
	}
	for _, tt := range tests {
		resp := &http.Response{
			Header: http.Header{"Content-Encoding": []string{tt.encoding}},
			Body:   ioNopCloser(tt.body),
		}
		got, err := ReadBody(resp)
		require.NoError(t, err, tt.encoding)
		assert.Equal(t, tt.want, string(got))
	}
}

func TestThrottledTransportAddsHeadersAndLimits(t *testing.T) {
	var gotCT atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT.Store(r.Header.Get("Content-Type"))
	}))
	defer srv.Close()

	client := NewHTTPClient(NewThrottledTransport(nil, 10, JSONHeaders()), time.Second)

	start := time.Now()
	for i := 0; i < 3; i++ {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}
	// Burst of one at 10/s: the second and third requests wait ~100ms each.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, "application/json", gotCT.Load())
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

func ioNopCloser(b []byte) nopCloser { return nopCloser{bytes.NewReader(b)} }
