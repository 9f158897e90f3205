package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplate = "https://search.test/v18/search?page=1&query=%s"

// fakeSession serves canned pages keyed by query.
type fakeSession struct {
	pages   map[string]string
	failOn  map[string]bool
	visited []string
	closed  bool
}

func (s *fakeSession) Visit(ctx context.Context, rawURL string, settle time.Duration) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query().Get("query")
	s.visited = append(s.visited, q)
	if s.failOn[q] {
		return "", errors.New("net::ERR_CONNECTION_RESET")
	}
	return s.pages[q], nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeFactory struct {
	mu       sync.Mutex
	pages    map[string]string
	failOn   map[string]bool
	startErr error
	sessions []*fakeSession
}

func (f *fakeFactory) New(ctx context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	s := &fakeSession{pages: f.pages, failOn: f.failOn}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func jsonPage(total int, cents ...int) string {
	products := ""
	for i, c := range cents {
		if i > 0 {
			products += ","
		}
		products += fmt.Sprintf(`{"sizes": [{"price": {"basic": %d, "product": %d}}]}`, c+100, c)
	}
	return fmt.Sprintf(`<html><head></head><body><pre>{"total": %d, "products": [%s]}</pre></body></html>`, total, products)
}

func TestBrowserFetcher_FetchBatch(t *testing.T) {
	factory := &fakeFactory{
		pages: map[string]string{
			"a": jsonPage(10, 1000, 2000),
			"b": jsonPage(0),
			"c": "<html><body>Что-то пошло не так</body></html>",
			"d": jsonPage(3, 500),
		},
		failOn: map[string]bool{"e": true},
	}

	f, err := NewBrowserFetcher(factory.New, BrowserOptions{URLTemplate: testTemplate, PoolSize: 2}, discardLogger())
	require.NoError(t, err)

	results := f.FetchBatch(context.Background(), []string{"a", "b", "c", "d", "e"})

	require.Len(t, results, 5)
	assert.Equal(t, 10, *results["a"].Total)
	assert.InDelta(t, 15.0, *results["a"].AvgPrice, 1e-9)
	assert.Equal(t, 0, *results["b"].Total)
	assert.Nil(t, results["b"].AvgPrice)
	assert.True(t, results["c"].Absent())
	assert.Equal(t, 3, *results["d"].Total)
	assert.True(t, results["e"].Absent())

	require.Len(t, factory.sessions, 2)
	var visited [][]string
	for _, s := range factory.sessions {
		visited = append(visited, s.visited)
		assert.True(t, s.closed)
	}
	assert.ElementsMatch(t, [][]string{{"a", "b", "c"}, {"d", "e"}}, visited)
}

func TestBrowserFetcher_SessionStartFailure(t *testing.T) {
	factory := &fakeFactory{startErr: errors.New("chromium not installed")}

	f, err := NewBrowserFetcher(factory.New, BrowserOptions{URLTemplate: testTemplate, PoolSize: 1}, discardLogger())
	require.NoError(t, err)

	results := f.FetchBatch(context.Background(), []string{"a", "b"})

	require.Len(t, results, 2)
	assert.True(t, results["a"].Absent())
	assert.True(t, results["b"].Absent())
}

func TestNewBrowserFetcher_PoolSize(t *testing.T) {
	factory := &fakeFactory{}
	for _, size := range []int{0, 3, -1} {
		_, err := NewBrowserFetcher(factory.New, BrowserOptions{URLTemplate: testTemplate, PoolSize: size}, discardLogger())
		assert.ErrorIs(t, err, ErrInvalidPoolSize, "size %d", size)
	}
}

func TestSplitEven(t *testing.T) {
	tests := []struct {
		name     string
		items    []string
		n        int
		expected [][]string
	}{
		{"Odd split", []string{"a", "b", "c", "d", "e"}, 2, [][]string{{"a", "b", "c"}, {"d", "e"}}},
		{"Even split", []string{"a", "b", "c", "d"}, 2, [][]string{{"a", "b"}, {"c", "d"}}},
		{"Fewer items than workers", []string{"a"}, 2, [][]string{{"a"}}},
		{"Single worker", []string{"a", "b"}, 1, [][]string{{"a", "b"}}},
		{"Empty", nil, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitEven(tt.items, tt.n))
		})
	}
}
