package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slava225678/parsing-count/internal/browser"
	"github.com/slava225678/parsing-count/internal/models"
	"github.com/slava225678/parsing-count/internal/parser"
	"github.com/slava225678/parsing-count/internal/ratelimit"
)

// MaxPoolSize caps concurrent browser sessions. Each one is a full, detectable
// automated browser and the target throttles harder as concurrency grows.
const MaxPoolSize = 2

// Session is one browser instance that visits pages sequentially.
type Session interface {
	Visit(ctx context.Context, url string, settle time.Duration) (string, error)
	Close() error
}

// SessionFactory starts a new, clean session.
type SessionFactory func(ctx context.Context) (Session, error)

// PlaywrightSessions launches a separate Chromium per session.
func PlaywrightSessions(opts *browser.Options) SessionFactory {
	return func(ctx context.Context) (Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := browser.New(opts)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

type BrowserOptions struct {
	URLTemplate string
	PoolSize    int
	StartDelay  time.Duration
	PageDelay   time.Duration
}

// BrowserFetcher splits each batch across up to PoolSize sessions running in
// parallel. Sessions live for one batch only.
type BrowserFetcher struct {
	newSession SessionFactory
	opts       BrowserOptions
	logger     *slog.Logger
}

func NewBrowserFetcher(factory SessionFactory, opts BrowserOptions, logger *slog.Logger) (*BrowserFetcher, error) {
	if opts.PoolSize < 1 || opts.PoolSize > MaxPoolSize {
		return nil, fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidPoolSize, opts.PoolSize, MaxPoolSize)
	}
	if err := validateTemplate(opts.URLTemplate); err != nil {
		return nil, err
	}

	return &BrowserFetcher{
		newSession: factory,
		opts:       opts,
		logger:     logger.With("component", "browser_fetcher"),
	}, nil
}

func (f *BrowserFetcher) FetchBatch(ctx context.Context, queries []string) models.Results {
	chunks := splitEven(queries, f.opts.PoolSize)
	partial := make([]models.Results, len(chunks))

	var g errgroup.Group
	g.SetLimit(f.opts.PoolSize)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			partial[i] = f.runSession(ctx, i+1, chunk)
			return nil
		})
	}
	_ = g.Wait()

	out := make(models.Results, len(queries))
	for _, p := range partial {
		out.Merge(p)
	}
	return out
}

func (f *BrowserFetcher) Close() error {
	return nil
}

// runSession processes queries in order inside one fresh session.
func (f *BrowserFetcher) runSession(ctx context.Context, worker int, queries []string) models.Results {
	out := make(models.Results, len(queries))
	for _, q := range queries {
		out[q] = models.AbsentResult(q)
	}

	logger := f.logger.With("worker", worker)

	sess, err := f.newSession(ctx)
	if err != nil {
		logger.Error("failed to start browser session", "error", err, "queries", len(queries))
		return out
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("failed to close browser session", "error", err)
		}
	}()

	if err := ratelimit.Sleep(ctx, f.opts.StartDelay); err != nil {
		return out
	}

	for _, q := range queries {
		html, err := sess.Visit(ctx, SearchURL(f.opts.URLTemplate, q), f.opts.PageDelay)
		if err != nil {
			logger.Warn("page load failed", "query", q, "error", err)
			continue
		}

		text, err := parser.BodyText(html)
		if err != nil {
			logger.Warn("failed to read page body", "query", q, "error", err)
			continue
		}

		stats, err := parser.ParseSearch([]byte(text))
		if err != nil {
			logger.Warn("failed to decode page payload", "query", q, "error", err)
			continue
		}

		out[q] = models.Result{Query: q, Total: stats.Total, AvgPrice: stats.AvgPrice}
	}

	return out
}

// splitEven cuts items into at most n contiguous, near-equal parts.
func splitEven(items []string, n int) [][]string {
	if len(items) == 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}

	parts := make([][]string, 0, n)
	size, rem := len(items)/n, len(items)%n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < rem {
			end++
		}
		parts = append(parts, items[start:end])
		start = end
	}
	return parts
}
