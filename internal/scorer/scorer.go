// Package scorer rates a paper's relevance to the configured research
// interests by sending its title and abstract to an LLM and validating the
// structured verdict that comes back.
package scorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/infrastructure/llm"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/ports"
)

// Transport abstracts the LLM chat endpoint so tests can stub responses.
type Transport interface {
	Complete(ctx context.Context, system, user string) (llm.Completion, error)
}

// Scorer implements ports.Scorer over an LLM transport with bounded retry.
type Scorer struct {
	transport    Transport
	systemPrompt string
	maxAttempts  int
	baseDelay    time.Duration
	logger       *slog.Logger
}

var _ ports.Scorer = (*Scorer)(nil)

// Option configures a Scorer.
type Option func(*Scorer)

// WithBaseDelay overrides the initial backoff interval.
func WithBaseDelay(d time.Duration) Option {
	return func(s *Scorer) {
		s.baseDelay = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		s.logger = logger
	}
}

// New builds a Scorer. The system prompt is the fixed scoring rubric passed
// unchanged on every call; maxAttempts bounds retries per paper.
func New(transport Transport, systemPrompt string, maxAttempts int, opts ...Option) *Scorer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	s := &Scorer{
		transport:    transport,
		systemPrompt: systemPrompt,
		maxAttempts:  maxAttempts,
		baseDelay:    time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score sends title and abstract to the LLM and returns the validated
// verdict. Malformed responses and transient transport failures are retried
// with exponential backoff and jitter; fatal transport failures are not.
// After exhaustion the error matches domain.ErrScoringFailed.
func (s *Scorer) Score(ctx context.Context, paper domain.Paper) (domain.ScoreVerdict, error) {
	user := fmt.Sprintf("Title: %s\nAbstract: %s", paper.Title, paper.Abstract)

	var verdict domain.ScoreVerdict
	attempt := 0
	op := func() error {
		attempt++
		completion, err := s.transport.Complete(ctx, s.systemPrompt, user)
		if err != nil {
			if llm.IsTransient(err) {
				s.debug("transient scoring failure", "paper", paper.ID, "attempt", attempt, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}

		parsed, err := parseVerdict(completion.Content)
		if err != nil {
			s.debug("malformed verdict", "paper", paper.ID, "attempt", attempt, "error", err)
			return err
		}

		parsed.Model = completion.Model
		verdict = parsed
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.baseDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(s.maxAttempts-1)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, domain.ErrScoringFailed) {
			return domain.ScoreVerdict{}, fmt.Errorf("paper %s: %w", paper.ID, err)
		}
		return domain.ScoreVerdict{}, fmt.Errorf("%w: paper %s: %v", domain.ErrScoringFailed, paper.ID, err)
	}

	return verdict, nil
}

func (s *Scorer) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
