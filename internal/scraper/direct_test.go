package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSearchServer(t *testing.T, handler func(w http.ResponseWriter, query string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(w, r.URL.Query().Get("query"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDirectFetcher_Fetch(t *testing.T) {
	srv := newSearchServer(t, func(w http.ResponseWriter, query string) {
		assert.Equal(t, "phone case", query)
		fmt.Fprint(w, `{"data": {"total": 120, "products": [{"sizes": [{"price": {"product": 50000}}]}]}}`)
	})

	f, err := NewDirectFetcher(DirectOptions{URLTemplate: srv.URL + "/search?query=%s"}, discardLogger())
	require.NoError(t, err)
	defer f.Close()

	res := f.Fetch(context.Background(), "phone case")

	require.NotNil(t, res.Total)
	assert.Equal(t, 120, *res.Total)
	require.NotNil(t, res.AvgPrice)
	assert.InDelta(t, 500.0, *res.AvgPrice, 1e-9)
}

func TestDirectFetcher_FetchBatch_Degraded(t *testing.T) {
	srv := newSearchServer(t, func(w http.ResponseWriter, query string) {
		switch query {
		case "broken":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "garbage":
			fmt.Fprint(w, "<html>captcha</html>")
		case "hangup":
			hj, ok := w.(http.Hijacker)
			if !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			conn, _, err := hj.Hijack()
			if err == nil {
				conn.Close()
			}
		default:
			fmt.Fprintf(w, `{"total": %d}`, len(query))
		}
	})

	f, err := NewDirectFetcher(DirectOptions{URLTemplate: srv.URL + "/?query=%s"}, discardLogger())
	require.NoError(t, err)

	results := f.FetchBatch(context.Background(), []string{"ok", "broken", "garbage", "hangup", "fine"})

	require.Len(t, results, 5)
	assert.Equal(t, 2, *results["ok"].Total)
	assert.Equal(t, 4, *results["fine"].Total)
	for _, q := range []string{"broken", "garbage", "hangup"} {
		assert.True(t, results[q].Absent(), q)
		assert.Equal(t, q, results[q].Query)
	}
}

func TestDirectFetcher_FetchBatch_Concurrent(t *testing.T) {
	var inFlight, peak int32
	srv := newSearchServer(t, func(w http.ResponseWriter, query string) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		fmt.Fprint(w, `{"total": 1}`)
	})

	f, err := NewDirectFetcher(DirectOptions{URLTemplate: srv.URL + "/?query=%s"}, discardLogger())
	require.NoError(t, err)

	results := f.FetchBatch(context.Background(), []string{"a", "b", "c", "d"})

	assert.Len(t, results, 4)
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
}

func TestDirectFetcher_Timeout(t *testing.T) {
	srv := newSearchServer(t, func(w http.ResponseWriter, query string) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{"total": 1}`)
	})

	f, err := NewDirectFetcher(DirectOptions{URLTemplate: srv.URL + "/?query=%s", Timeout: 20 * time.Millisecond}, discardLogger())
	require.NoError(t, err)

	assert.True(t, f.Fetch(context.Background(), "slow").Absent())
}

func TestNewDirectFetcher_InvalidTemplate(t *testing.T) {
	_, err := NewDirectFetcher(DirectOptions{URLTemplate: "http://example.com/search"}, discardLogger())
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestSearchURL_Escapes(t *testing.T) {
	u := SearchURL("https://example.com/s?query=%s&page=1", "чехол & case")
	assert.Equal(t, "https://example.com/s?query=%D1%87%D0%B5%D1%85%D0%BE%D0%BB+%26+case&page=1", u)
}
