package usecase

import (
	"time"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
)

// ScoredPaper pairs a paper with its verdict and the category it was
// fetched under, before threshold filtering.
type ScoredPaper struct {
	Paper    domain.Paper
	Verdict  domain.ScoreVerdict
	Category string
}

// BuildDigest keeps papers scoring at or above threshold, sorts them into
// the deterministic digest order, and snapshots the per-category summary
// over everything seen this run, not just the survivors. Empty input
// produces a valid digest with zero entries.
func BuildDigest(runDate string, scored []ScoredPaper, threshold int, stats map[string]*domain.CategoryStats) domain.Digest {
	entries := make([]domain.DigestEntry, 0, len(scored))
	for _, sp := range scored {
		if sp.Verdict.Score < threshold {
			continue
		}
		entries = append(entries, domain.DigestEntry{Paper: sp.Paper, Verdict: sp.Verdict})
		if st := stats[sp.Category]; st != nil {
			st.Kept++
		}
	}

	domain.SortEntries(entries)

	summary := make(map[string]domain.CategoryStats, len(stats))
	for category, st := range stats {
		summary[category] = *st
	}

	return domain.Digest{
		RunDate:         runDate,
		GeneratedAt:     time.Now().UTC(),
		Entries:         entries,
		CategorySummary: summary,
	}
}
