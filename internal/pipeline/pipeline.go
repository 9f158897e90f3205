package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/slava225678/parsing-count/internal/checkpoint"
	"github.com/slava225678/parsing-count/internal/filter"
	"github.com/slava225678/parsing-count/internal/models"
	"github.com/slava225678/parsing-count/internal/queue"
	"github.com/slava225678/parsing-count/internal/ratelimit"
	"github.com/slava225678/parsing-count/internal/scraper"
)

var (
	ErrInvalidOptions = errors.New("invalid pipeline options")
	ErrInterrupted    = errors.New("run interrupted")
)

// Options are the run parameters of one pass over the input list.
type Options struct {
	BatchSize int
	Sleep     time.Duration
	Resume    bool

	// CheckpointEvery saves after at least this many newly processed queries.
	// Zero leaves only the final checkpoint.
	CheckpointEvery int

	PoolSize int
	Bounds   filter.Bounds
}

func DefaultOptions() Options {
	return Options{
		BatchSize:       100,
		Sleep:           10 * time.Second,
		CheckpointEvery: 500,
		PoolSize:        1,
		Bounds:          filter.DefaultBounds(),
	}
}

func (o Options) Validate() error {
	if o.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be at least 1, got %d", ErrInvalidOptions, o.BatchSize)
	}
	if o.Sleep < 0 {
		return fmt.Errorf("%w: sleep must not be negative", ErrInvalidOptions)
	}
	if o.CheckpointEvery < 0 {
		return fmt.Errorf("%w: checkpoint interval must not be negative", ErrInvalidOptions)
	}
	if o.PoolSize < 1 {
		return fmt.Errorf("%w: pool size must be at least 1, got %d", ErrInvalidOptions, o.PoolSize)
	}
	if o.Bounds.Min > o.Bounds.Max {
		return fmt.Errorf("%w: count bounds [%d, %d] are empty", ErrInvalidOptions, o.Bounds.Min, o.Bounds.Max)
	}
	return nil
}

// Stats summarises a run.
type Stats struct {
	Valid       int
	Resumed     int
	Fetched     int
	Absent      int
	Batches     int
	Checkpoints int
}

// Reporter is told about progress after every batch and once when the run ends.
// Implementations must not block the run for long.
type Reporter interface {
	BatchDone(ctx context.Context, batch int, size int, stats Stats)
	RunFinished(ctx context.Context, stats Stats, err error)
}

// Runner drives the batch, pause and checkpoint loop. It only knows the
// Fetcher interface, never a concrete backend.
type Runner struct {
	fetcher  scraper.Fetcher
	store    checkpoint.Store
	limiter  ratelimit.RateLimiter
	reporter Reporter
	opts     Options
	logger   *slog.Logger
}

// NewRunner builds a runner. store may be nil to run without checkpoints;
// a nil limiter pauses opts.Sleep between batches.
func NewRunner(fetcher scraper.Fetcher, store checkpoint.Store, limiter ratelimit.RateLimiter, opts Options, logger *slog.Logger) (*Runner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Resume && store == nil {
		return nil, fmt.Errorf("%w: resume requires a checkpoint store", ErrInvalidOptions)
	}
	if limiter == nil {
		limiter = ratelimit.NewFixed(opts.Sleep)
	}

	return &Runner{
		fetcher: fetcher,
		store:   store,
		limiter: limiter,
		opts:    opts,
		logger:  logger.With("component", "pipeline"),
	}, nil
}

// SetReporter installs a progress reporter.
func (r *Runner) SetReporter(rep Reporter) {
	r.reporter = rep
}

// Run fetches every valid record not already checkpointed and returns the
// accumulated results, including those loaded from the checkpoint.
// If ctx is cancelled between batches the run stops, the final checkpoint is
// still written, and the returned error wraps ErrInterrupted.
func (r *Runner) Run(ctx context.Context, records []models.Query) (results models.Results, stats Stats, err error) {
	if r.reporter != nil {
		defer func() {
			r.reporter.RunFinished(context.WithoutCancel(ctx), stats, err)
		}()
	}
	return r.run(ctx, records)
}

func (r *Runner) run(ctx context.Context, records []models.Query) (models.Results, Stats, error) {
	var stats Stats
	results := models.Results{}

	if r.opts.Resume {
		loaded, err := r.store.Load(ctx)
		if err != nil {
			return nil, stats, err
		}
		results.Merge(loaded)
		r.logger.Info("resuming", "previously_processed", len(loaded))
	}

	valid := filter.Apply(records, r.opts.Bounds)
	stats.Valid = len(valid)

	pending := make([]models.Query, 0, len(valid))
	queued := make(map[string]bool, len(valid))
	for _, q := range valid {
		if _, done := results[q.Text]; done {
			stats.Resumed++
			continue
		}
		if queued[q.Text] {
			continue
		}
		queued[q.Text] = true
		pending = append(pending, q)
	}

	batches, err := queue.NewBatchQueue(pending, r.opts.BatchSize)
	if err != nil {
		return nil, stats, err
	}

	r.logger.Info("starting run",
		"records", len(records),
		"valid", stats.Valid,
		"skipped", stats.Resumed,
		"pending", len(pending),
		"batches", batches.Batches())

	var interrupted error
	sinceCheckpoint := 0
	for {
		if err := ctx.Err(); err != nil {
			interrupted = err
			break
		}
		batch, ok := batches.Next()
		if !ok {
			break
		}

		// A dispatched batch always runs to completion.
		started := time.Now()
		fetched := r.fetcher.FetchBatch(context.WithoutCancel(ctx), queue.Texts(batch))
		stats.Batches++

		for _, q := range batch {
			res, ok := fetched[q.Text]
			if !ok {
				res = models.AbsentResult(q.Text)
			}
			res.Query = q.Text
			results[q.Text] = res

			stats.Fetched++
			if res.Absent() {
				stats.Absent++
			}
		}
		sinceCheckpoint += len(batch)
		if r.reporter != nil {
			r.reporter.BatchDone(context.WithoutCancel(ctx), stats.Batches, len(batch), stats)
		}

		if !batches.HasNext() {
			r.logger.Info("batch done",
				"batch", stats.Batches,
				"size", len(batch),
				"duration", time.Since(started))
			break
		}

		if r.store != nil && r.opts.CheckpointEvery > 0 && sinceCheckpoint >= r.opts.CheckpointEvery {
			if err := r.save(ctx, results, &stats); err != nil {
				return nil, stats, err
			}
			sinceCheckpoint = 0
		}

		r.logger.Info("batch done, pausing",
			"batch", stats.Batches,
			"size", len(batch),
			"processed", stats.Fetched,
			"remaining", batches.Remaining(),
			"duration", time.Since(started))

		if err := r.limiter.Wait(ctx); err != nil {
			interrupted = err
			break
		}
	}

	if r.store != nil {
		if err := r.save(context.WithoutCancel(ctx), results, &stats); err != nil {
			return nil, stats, err
		}
	}

	r.logger.Info("run finished",
		"fetched", stats.Fetched,
		"absent", stats.Absent,
		"batches", stats.Batches,
		"checkpoints", stats.Checkpoints)

	if interrupted != nil {
		return results, stats, fmt.Errorf("%w: %w", ErrInterrupted, interrupted)
	}
	return results, stats, nil
}

func (r *Runner) save(ctx context.Context, results models.Results, stats *Stats) error {
	if err := r.store.Save(ctx, results); err != nil {
		return err
	}
	stats.Checkpoints++
	r.logger.Debug("checkpoint saved", "results", len(results))
	return nil
}
