package ports

import (
	"context"
	"time"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
)

// PaperSource fetches candidate papers for one category over a time window.
// Failures map to domain.ErrSourceUnavailable and are category-scoped.
type PaperSource interface {
	Fetch(ctx context.Context, category string, window domain.Window) ([]domain.Paper, error)
}

// DedupStore is the durable record of paper ids already processed.
type DedupStore interface {
	// FilterNew returns the subset of papers whose id is not recorded.
	// Pure read; safe to call repeatedly.
	FilterNew(ctx context.Context, papers []domain.Paper) ([]domain.Paper, error)

	// Commit durably records the given ids, atomically with respect to
	// process crash. Failures map to domain.ErrDedupStoreWrite.
	Commit(ctx context.Context, ids []string) error

	Close() error
}

// Scorer produces a validated relevance verdict for one paper.
type Scorer interface {
	Score(ctx context.Context, paper domain.Paper) (domain.ScoreVerdict, error)
}

// DigestStore persists digests under the output root, keyed by run date.
type DigestStore interface {
	// Persist writes the digest atomically and returns its location.
	// Re-persisting an existing run date follows the configured conflict
	// policy; under reject it returns domain.ErrDigestExists.
	Persist(ctx context.Context, digest domain.Digest) (string, error)

	// Load reads a persisted digest back by run date.
	Load(ctx context.Context, runDate string) (domain.Digest, error)

	// Latest returns the most recent persisted digest.
	Latest(ctx context.Context) (domain.Digest, error)
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
