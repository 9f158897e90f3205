package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slava225678/parsing-count/internal/models"
	"github.com/slava225678/parsing-count/internal/parser"
)

type DirectOptions struct {
	URLTemplate     string
	UserAgent       string
	Timeout         time.Duration
	MaxIdleConns    int
	MaxConnsPerHost int
}

// DirectFetcher queries the search API over plain HTTP. All requests share one
// connection pool; a batch is issued concurrently and awaited as a whole.
type DirectFetcher struct {
	client      *http.Client
	urlTemplate string
	userAgent   string
	logger      *slog.Logger
}

func NewDirectFetcher(opts DirectOptions, logger *slog.Logger) (*DirectFetcher, error) {
	if err := validateTemplate(opts.URLTemplate); err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.MaxIdleConns > 0 {
		transport.MaxIdleConns = opts.MaxIdleConns
		transport.MaxIdleConnsPerHost = opts.MaxIdleConns
	}
	if opts.MaxConnsPerHost > 0 {
		transport.MaxConnsPerHost = opts.MaxConnsPerHost
	}

	return &DirectFetcher{
		client:      &http.Client{Timeout: timeout, Transport: transport},
		urlTemplate: opts.URLTemplate,
		userAgent:   opts.UserAgent,
		logger:      logger.With("component", "direct_fetcher"),
	}, nil
}

// Fetch requests a single query. Transport and decode failures are logged and
// reported as an absent result.
func (d *DirectFetcher) Fetch(ctx context.Context, query string) models.Result {
	body, err := d.doGET(ctx, SearchURL(d.urlTemplate, query))
	if err != nil {
		d.logger.Warn("request failed", "query", query, "error", err)
		return models.AbsentResult(query)
	}

	stats, err := parser.ParseSearch(body)
	if err != nil {
		d.logger.Warn("failed to decode response", "query", query, "error", err)
		return models.AbsentResult(query)
	}

	return models.Result{Query: query, Total: stats.Total, AvgPrice: stats.AvgPrice}
}

func (d *DirectFetcher) FetchBatch(ctx context.Context, queries []string) models.Results {
	fetched := make([]models.Result, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			fetched[i] = d.Fetch(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	out := make(models.Results, len(queries))
	for _, r := range fetched {
		out[r.Query] = r
	}
	return out
}

func (d *DirectFetcher) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *DirectFetcher) doGET(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	return body, nil
}
