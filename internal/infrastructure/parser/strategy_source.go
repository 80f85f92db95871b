package parser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/ports"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/scanner"
)

// StrategySource implements ports.PaperSource via a registered fetch
// strategy. Fetch failures surface as domain.ErrSourceUnavailable so the
// orchestrator can skip the category without aborting the run.
type StrategySource struct {
	registry *scanner.Registry
	strategy string
	logger   *slog.Logger
}

var _ ports.PaperSource = (*StrategySource)(nil)

// NewStrategySource wires the registry with the configured strategy name.
func NewStrategySource(reg *scanner.Registry, strategy string, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		strategy: strategy,
		logger:   log,
	}
}

// Fetch resolves the configured strategy and executes one category fetch.
func (s *StrategySource) Fetch(ctx context.Context, category string, window domain.Window) ([]domain.Paper, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("fetch strategy registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.strategy)
	if err != nil {
		return nil, err
	}

	s.debug("fetch category", "category", category, "strategy", s.strategy,
		"window_start", window.Start, "window_end", window.End)

	papers, err := strategy.Fetch(ctx, scanner.Request{Category: category, Window: window})
	if err != nil {
		return nil, fmt.Errorf("%w: category %s: %v", domain.ErrSourceUnavailable, category, err)
	}

	s.debug("category fetched", "category", category, "count", len(papers))
	return papers, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
