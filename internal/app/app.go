package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/config"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/infrastructure/llm"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/infrastructure/parser"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/infrastructure/scheduler"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/infrastructure/storage"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/infrastructure/web"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/logging"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/scanner"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/scorer"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/usecase"
)

const lockFileName = ".run.lock"

// Application wires configuration to the pipeline and its lifecycle
// surfaces: one-shot runs, the cron scheduler, and the digest web server.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	dedup    *storage.SQLiteDedupStore
	digests  *storage.FSDigestStore

	runMu sync.Mutex
}

// New builds a runnable application instance from resolved configuration.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("app: create output dir: %w", err)
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewArxivRSSFetcher(nil, ""))
	registry.Register(parser.NewArxivListingFetcher(nil, ""))

	source := parser.NewStrategySource(registry, cfg.Crawler.Strategy, baseLogger.With("component", "source"))

	dedup, err := storage.NewSQLiteDedupStore(cfg.DedupPath())
	if err != nil {
		return nil, fmt.Errorf("app: open dedup store: %w", err)
	}

	digests, err := storage.NewFSDigestStore(cfg.OutputDir, cfg.Digest.OnConflict)
	if err != nil {
		dedup.Close()
		return nil, fmt.Errorf("app: open digest store: %w", err)
	}

	relevance := scorer.New(
		llm.NewOpenAIClient(cfg.Reader),
		cfg.SystemPrompt,
		cfg.Reader.MaxAttempts,
		scorer.WithLogger(baseLogger.With("component", "scorer")),
	)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Dedup:      dedup,
		Scorer:     relevance,
		Digests:    digests,
		Categories: cfg.Crawler.Categories,
		Threshold:  cfg.Reader.RelevanceThreshold,
		Workers:    cfg.Reader.Workers,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		pipeline: pipeline,
		dedup:    dedup,
		digests:  digests,
	}, nil
}

// RunOnce executes a single pipeline run for the given day. At most one
// run executes at a time, across goroutines and across processes sharing
// the output directory.
func (a *Application) RunOnce(ctx context.Context, day time.Time) (*usecase.RunSummary, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	unlock, err := a.acquireRunLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return a.pipeline.Run(ctx, day)
}

// Serve starts the cron scheduler and the digest web server, then blocks
// until the context is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	server := web.NewServer(a.cfg.Server.Addr, a.digests, a.logger.With("component", "web"))
	if err := server.Start(); err != nil {
		return err
	}

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.Cron, a.cfg.Scheduler.Location())
	sched := usecase.NewDigestScheduler(driver, lockedRunner{a}, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		server.Shutdown(context.Background())
		return err
	}

	a.logger.Info("serving",
		"addr", a.cfg.Server.Addr,
		"cron", a.cfg.Scheduler.Cron,
		"timezone", a.cfg.Scheduler.Location().String())

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	return server.Shutdown(shutdownCtx)
}

// lockedRunner routes scheduled runs through RunOnce so they take the
// same run lock as CLI-triggered runs.
type lockedRunner struct {
	app *Application
}

func (r lockedRunner) Run(ctx context.Context, day time.Time) (*usecase.RunSummary, error) {
	return r.app.RunOnce(ctx, day)
}

// Close releases resources held by the application.
func (a *Application) Close() error {
	return a.dedup.Close()
}

// acquireRunLock guards the output directory against a second process
// running concurrently. A stale lock from a crashed process must be
// removed by hand.
func (a *Application) acquireRunLock() (func(), error) {
	path := filepath.Join(a.cfg.OutputDir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("app: another run holds %s; remove it if the owner crashed", path)
		}
		return nil, fmt.Errorf("app: acquire run lock: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	return func() {
		if err := os.Remove(path); err != nil {
			a.logger.Warn("releasing run lock", "error", err)
		}
	}, nil
}
