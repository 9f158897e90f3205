package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/slava225678/parsing-count/internal/browser"
	"github.com/slava225678/parsing-count/internal/checkpoint"
	"github.com/slava225678/parsing-count/internal/config"
	"github.com/slava225678/parsing-count/internal/database"
	"github.com/slava225678/parsing-count/internal/events"
	"github.com/slava225678/parsing-count/internal/filter"
	"github.com/slava225678/parsing-count/internal/models"
	"github.com/slava225678/parsing-count/internal/pipeline"
	"github.com/slava225678/parsing-count/internal/scraper"
	"github.com/slava225678/parsing-count/internal/storage"
	"github.com/slava225678/parsing-count/pkg/logger"
)

const (
	modeDirect  = "direct"
	modeBrowser = "browser"

	backendNone  = "none"
	backendFile  = "file"
	backendRedis = "redis"
)

type flags struct {
	mode            string
	input           string
	output          string
	batch           int
	sleep           time.Duration
	resume          bool
	checkpointEvery int
	checkpointPath  string
	backend         string
	pool            int
	minCount        int64
	maxCount        int64
	headless        bool
	exportDB        bool
	pgDSN           string
	eventsStream    string
}

func main() {
	var f flags
	flag.StringVar(&f.mode, "mode", modeBrowser, "Fetch strategy: direct (HTTP API) or browser (Chromium sessions)")
	flag.StringVar(&f.input, "input", "", "Input query list (.xlsx with header row, or header-less .csv query,count)")
	flag.StringVar(&f.output, "output", "results.xlsx", "Output file (.xlsx or .csv), overwritten at the end of the run")
	flag.IntVar(&f.batch, "batch", 100, "Queries per batch")
	flag.DurationVar(&f.sleep, "sleep", 10*time.Second, "Pause between batches")
	flag.BoolVar(&f.resume, "resume", false, "Skip queries already present in the checkpoint")
	flag.IntVar(&f.checkpointEvery, "checkpoint-every", 500, "Save a checkpoint after at least this many processed queries (0 = only at the end)")
	flag.StringVar(&f.checkpointPath, "checkpoint", "", "Checkpoint file, or run key for the redis backend (default <output>.partial.xlsx)")
	flag.StringVar(&f.backend, "checkpoint-backend", "", "Checkpoint backend: file, redis or none (default file for browser, none for direct)")
	flag.IntVar(&f.pool, "pool", 1, "Parallel browser sessions (1..2)")
	flag.Int64Var(&f.minCount, "min-count", filter.DefaultMinCount, "Lowest accepted request count")
	flag.Int64Var(&f.maxCount, "max-count", filter.DefaultMaxCount, "Highest accepted request count")
	flag.BoolVar(&f.headless, "headless", true, "Run browser in headless mode")
	flag.BoolVar(&f.exportDB, "export-db", false, "Also store the results in Postgres")
	flag.StringVar(&f.pgDSN, "pg-dsn", "", "Postgres DSN for -export-db (default built from DB_* env)")
	flag.StringVar(&f.eventsStream, "events-stream", "", "Publish batch progress to this Redis stream (empty = off)")
	flag.Parse()

	if f.input == "" {
		fmt.Println("Please provide an input file with -input")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	runID := uuid.New()
	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format).With("run_id", runID.String())
	logger.Info("Starting parsing-count", "mode", f.mode, "input", f.input, "output", f.output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, finishing current batch")
		cancel()
	}()

	if err := run(ctx, cfg, f, runID, logger); err != nil {
		logger.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, f flags, runID uuid.UUID, logger *slog.Logger) error {
	started := time.Now()

	opts := pipeline.Options{
		BatchSize:       f.batch,
		Sleep:           f.sleep,
		Resume:          f.resume,
		CheckpointEvery: f.checkpointEvery,
		PoolSize:        f.pool,
		Bounds:          filter.Bounds{Min: f.minCount, Max: f.maxCount},
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	schema, err := storage.SchemaByName(f.mode)
	if err != nil {
		return err
	}
	if _, err := storage.FormatOf(f.output); err != nil {
		return err
	}

	records, err := storage.ReadQueries(f.input)
	if err != nil {
		return err
	}
	logger.Info("Loaded queries", "count", len(records))

	fetcher, err := newFetcher(cfg, f, logger)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	store, closeStore, err := newStore(ctx, cfg, f, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	runner, err := pipeline.NewRunner(fetcher, store, nil, opts, logger)
	if err != nil {
		return err
	}

	if f.eventsStream != "" {
		client, err := newRedisClient(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		runner.SetReporter(events.NewPublisher(client, f.eventsStream, runID.String(), f.mode, logger))
	}

	results, stats, err := runner.Run(ctx, records)
	if errors.Is(err, pipeline.ErrInterrupted) && store != nil {
		logger.Warn("Run interrupted, progress kept in checkpoint; rerun with -resume to continue",
			"processed", stats.Fetched)
	}
	if err != nil {
		return err
	}

	rows := pipeline.Assemble(records, results, opts.Bounds)
	if err := storage.WriteResults(f.output, schema, rows); err != nil {
		return err
	}
	logger.Info("Results written",
		"output", f.output,
		"rows", len(rows),
		"fetched", stats.Fetched,
		"absent", stats.Absent,
		"resumed", stats.Resumed,
		"duration", time.Since(started))

	if f.exportDB {
		dsn := f.pgDSN
		if dsn == "" {
			dsn = cfg.Database.DSN()
		}
		if err := exportResults(ctx, dsn, &database.Run{
			ID:        runID,
			Mode:      f.mode,
			StartedAt: started,
		}, rows, logger); err != nil {
			return err
		}
	}

	return nil
}

func newFetcher(cfg *config.Config, f flags, logger *slog.Logger) (scraper.Fetcher, error) {
	switch f.mode {
	case modeDirect:
		return scraper.NewDirectFetcher(scraper.DirectOptions{
			URLTemplate:     cfg.Search.DirectURL,
			UserAgent:       cfg.HTTP.UserAgent,
			Timeout:         cfg.HTTP.Timeout,
			MaxIdleConns:    cfg.HTTP.MaxIdleConns,
			MaxConnsPerHost: cfg.HTTP.MaxConnsPerHost,
		}, logger)

	case modeBrowser:
		browserOpts := &browser.Options{
			Headless:       f.headless && cfg.Browser.Headless,
			Timeout:        cfg.Browser.Timeout,
			UserAgent:      cfg.Browser.UserAgent,
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
			AcceptLanguage: cfg.Browser.AcceptLanguage,
			TimezoneID:     cfg.Browser.TimezoneID,
			Locale:         cfg.Browser.Locale,
			ExtraHeaders:   browser.DefaultOptions().ExtraHeaders,
		}
		return scraper.NewBrowserFetcher(scraper.PlaywrightSessions(browserOpts), scraper.BrowserOptions{
			URLTemplate: cfg.Search.BrowserURL,
			PoolSize:    f.pool,
			StartDelay:  cfg.Browser.StartDelay,
			PageDelay:   cfg.Browser.PageDelay,
		}, logger)

	default:
		return nil, fmt.Errorf("unknown mode %q (want %s or %s)", f.mode, modeDirect, modeBrowser)
	}
}

// newStore returns a nil store when checkpointing is off.
func newStore(ctx context.Context, cfg *config.Config, f flags, logger *slog.Logger) (checkpoint.Store, func(), error) {
	noop := func() {}

	backend := f.backend
	if backend == "" {
		backend = backendFile
		if f.mode == modeDirect && !f.resume {
			backend = backendNone
		}
	}

	switch backend {
	case backendNone:
		if f.resume {
			return nil, noop, errors.New("-resume needs a checkpoint backend")
		}
		return nil, noop, nil

	case backendFile:
		path := f.checkpointPath
		if path == "" {
			path = checkpoint.DefaultPath(f.output)
		}
		store, err := checkpoint.NewFileStore(path)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Using file checkpoint", "path", path)
		return store, noop, nil

	case backendRedis:
		client, err := newRedisClient(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}

		runKey := f.checkpointPath
		if runKey == "" {
			runKey = f.output
		}
		store := checkpoint.NewRedisStore(client, cfg.Redis.KeyPrefix, runKey)
		logger.Info("Using redis checkpoint", "addr", cfg.Redis.Addr, "key", store.Key())
		return store, func() { client.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown checkpoint backend %q", backend)
	}
}

func newRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func exportResults(ctx context.Context, dsn string, run *database.Run, rows []models.OutputRow, logger *slog.Logger) error {
	db, err := database.New(ctx, database.Config{DSN: dsn, MaxConns: 2})
	if err != nil {
		return err
	}
	defer db.Close()

	repo := database.NewResultRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := repo.SaveRun(ctx, run, rows); err != nil {
		return err
	}

	logger.Info("Results exported to database", "rows", len(rows))
	return nil
}
