package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/ports"
)

// Stage names the pipeline's progress through one run.
type Stage string

const (
	StageFetching   Stage = "fetching"
	StageFiltering  Stage = "filtering"
	StageScoring    Stage = "scoring"
	StageBuilding   Stage = "building"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// RunSummary reports what one run did, including partial progress when the
// run failed.
type RunSummary struct {
	RunID                 string
	RunDate               string
	Stage                 Stage
	Categories            map[string]*domain.CategoryStats
	UnavailableCategories []string
	Kept                  int
	Location              string
	Conflict              bool
}

// PipelineDeps wires all collaborators into the orchestrator.
type PipelineDeps struct {
	Source     ports.PaperSource
	Dedup      ports.DedupStore
	Scorer     ports.Scorer
	Digests    ports.DigestStore
	Categories []string
	Threshold  int
	Workers    int
	Logger     *slog.Logger
}

// Pipeline sequences fetch, dedup, score, build, and persist for one run.
type Pipeline struct {
	source     ports.PaperSource
	dedup      ports.DedupStore
	scorer     ports.Scorer
	digests    ports.DigestStore
	categories []string
	threshold  int
	workers    int
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	workers := deps.Workers
	if workers < 1 {
		workers = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:     deps.Source,
		dedup:      deps.Dedup,
		scorer:     deps.Scorer,
		digests:    deps.Digests,
		categories: deps.Categories,
		threshold:  deps.Threshold,
		workers:    workers,
		logger:     logger,
	}
}

// candidate is a paper together with the category it was fetched under.
type candidate struct {
	paper    domain.Paper
	category string
}

// Run executes one full pipeline pass for the given day.
//
// Per-category source failures and per-paper scoring failures are absorbed
// into the summary; dedup store failures and persistence failures (other
// than a conflict under the reject policy) abort the run. The dedup commit
// happens before persistence so that a dedup write failure never leaves a
// digest on disk describing papers the store never recorded.
func (p *Pipeline) Run(ctx context.Context, day time.Time) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:      uuid.NewString(),
		RunDate:    domain.RunDate(day),
		Categories: make(map[string]*domain.CategoryStats, len(p.categories)),
	}
	for _, category := range p.categories {
		summary.Categories[category] = &domain.CategoryStats{}
	}

	logger := p.logger.With("run_id", summary.RunID, "run_date", summary.RunDate)
	window := domain.DayWindow(day)

	// FETCHING: categories are independent; one unreachable upstream must
	// not starve the others.
	summary.Stage = StageFetching
	logger.Info("run started", "categories", len(p.categories))

	fetched := p.fetchAll(ctx, window, summary, logger)
	if err := ctx.Err(); err != nil {
		return p.fail(summary, logger, err)
	}

	candidates := mergeCandidates(p.categories, fetched)

	// FILTERING: drop papers already processed in earlier runs.
	summary.Stage = StageFiltering
	fresh, err := p.filterNew(ctx, candidates, summary)
	if err != nil {
		return p.fail(summary, logger, err)
	}
	logger.Info("dedup filtered", "candidates", len(candidates), "fresh", len(fresh))

	// SCORING: shared bounded worker pool across all categories.
	summary.Stage = StageScoring
	scored := p.scoreAll(ctx, fresh, summary, logger)
	if err := ctx.Err(); err != nil {
		// Cancelled runs never persist a partial digest.
		return p.fail(summary, logger, err)
	}

	// BUILDING
	summary.Stage = StageBuilding
	digest := BuildDigest(summary.RunDate, scored, p.threshold, summary.Categories)
	summary.Kept = len(digest.Entries)

	// Commit scored ids before persisting; see the method comment.
	scoredIDs := make([]string, len(scored))
	for i, sp := range scored {
		scoredIDs[i] = sp.Paper.ID
	}
	if err := p.dedup.Commit(ctx, scoredIDs); err != nil {
		return p.fail(summary, logger, err)
	}

	// PERSISTING
	summary.Stage = StagePersisting
	location, err := p.digests.Persist(ctx, digest)
	if err != nil {
		if errors.Is(err, domain.ErrDigestExists) {
			summary.Conflict = true
			summary.Stage = StageDone
			logger.Warn("digest already persisted for run date", "error", err)
			return summary, nil
		}
		return p.fail(summary, logger, err)
	}
	summary.Location = location

	summary.Stage = StageDone
	logger.Info("run done", "kept", summary.Kept, "location", location,
		"unavailable_categories", len(summary.UnavailableCategories))
	return summary, nil
}

// fetchAll fetches every category concurrently and returns results indexed
// by category position so the later merge stays deterministic.
func (p *Pipeline) fetchAll(ctx context.Context, window domain.Window, summary *RunSummary, logger *slog.Logger) [][]domain.Paper {
	results := make([][]domain.Paper, len(p.categories))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i, category := range p.categories {
		wg.Add(1)
		go func(i int, category string) {
			defer wg.Done()

			papers, err := p.source.Fetch(ctx, category, window)
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				summary.UnavailableCategories = append(summary.UnavailableCategories, category)
				logger.Warn("category unavailable", "category", category, "error", err)
				return
			}
			summary.Categories[category].Fetched = len(papers)
			results[i] = papers
		}(i, category)
	}
	wg.Wait()

	return results
}

// mergeCandidates flattens per-category results in configured category
// order, keeping the first occurrence of a cross-listed paper.
func mergeCandidates(categories []string, fetched [][]domain.Paper) []candidate {
	var merged []candidate
	seen := map[string]struct{}{}
	for i, category := range categories {
		for _, paper := range fetched[i] {
			if _, dup := seen[paper.ID]; dup {
				continue
			}
			seen[paper.ID] = struct{}{}
			merged = append(merged, candidate{paper: paper, category: category})
		}
	}
	return merged
}

func (p *Pipeline) filterNew(ctx context.Context, candidates []candidate, summary *RunSummary) ([]candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	papers := make([]domain.Paper, len(candidates))
	byID := make(map[string]candidate, len(candidates))
	for i, c := range candidates {
		papers[i] = c.paper
		byID[c.paper.ID] = c
	}

	freshPapers, err := p.dedup.FilterNew(ctx, papers)
	if err != nil {
		return nil, fmt.Errorf("dedup filter: %w", err)
	}

	fresh := make([]candidate, 0, len(freshPapers))
	freshIDs := make(map[string]struct{}, len(freshPapers))
	for _, paper := range freshPapers {
		fresh = append(fresh, byID[paper.ID])
		freshIDs[paper.ID] = struct{}{}
	}

	for _, c := range candidates {
		if _, ok := freshIDs[c.paper.ID]; !ok {
			if st := summary.Categories[c.category]; st != nil {
				st.Deduped++
			}
		}
	}

	return fresh, nil
}

// scoreAll runs the shared worker pool over all fresh candidates. Papers
// whose scoring fails after retries are counted and left uncommitted so the
// next run retries them.
func (p *Pipeline) scoreAll(ctx context.Context, fresh []candidate, summary *RunSummary, logger *slog.Logger) []ScoredPaper {
	if len(fresh) == 0 {
		return nil
	}

	jobs := make(chan candidate)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		scored []ScoredPaper
	)

	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				verdict, err := p.scorer.Score(ctx, c.paper)

				mu.Lock()
				if err != nil {
					if st := summary.Categories[c.category]; st != nil {
						st.ScoringFailed++
					}
					logger.Warn("scoring failed", "paper", c.paper.ID, "error", err)
				} else {
					if st := summary.Categories[c.category]; st != nil {
						st.Scored++
					}
					scored = append(scored, ScoredPaper{Paper: c.paper, Verdict: verdict, Category: c.category})
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, c := range fresh {
		select {
		case jobs <- c:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return scored
}

func (p *Pipeline) fail(summary *RunSummary, logger *slog.Logger, err error) (*RunSummary, error) {
	logger.Error("run failed", "stage_reached", summary.Stage, "error", err)
	summary.Stage = StageFailed
	return summary, err
}
