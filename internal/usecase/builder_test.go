package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
)

func scoredPaper(id string, score int, published time.Time) ScoredPaper {
	return ScoredPaper{
		Paper:    domain.Paper{ID: id, Categories: []string{"cs.CV"}, PublishedAt: published},
		Verdict:  domain.ScoreVerdict{Score: score, Reasons: "r", Model: "gpt-4o"},
		Category: "cs.CV",
	}
}

func TestBuildDigestThresholdAndOrder(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)
	stats := map[string]*domain.CategoryStats{"cs.CV": {Fetched: 3, Scored: 3}}

	scored := []ScoredPaper{
		scoredPaper("P2", 7, day),
		scoredPaper("P3", 6, day),
		scoredPaper("P1", 9, day),
	}

	digest := BuildDigest("2026-08-30", scored, 7, stats)

	require.Len(t, digest.Entries, 2, "threshold is inclusive: 7 stays, 6 drops")
	assert.Equal(t, "P1", digest.Entries[0].Paper.ID)
	assert.Equal(t, "P2", digest.Entries[1].Paper.ID)
	assert.Equal(t, 2, digest.CategorySummary["cs.CV"].Kept)
	assert.Equal(t, 3, digest.CategorySummary["cs.CV"].Scored)
}

func TestBuildDigestEmptyInput(t *testing.T) {
	t.Parallel()

	stats := map[string]*domain.CategoryStats{"cs.CL": {}}
	digest := BuildDigest("2026-08-30", nil, 7, stats)

	assert.Equal(t, "2026-08-30", digest.RunDate)
	assert.Empty(t, digest.Entries)
	assert.Equal(t, domain.CategoryStats{}, digest.CategorySummary["cs.CL"])
}

func TestBuildDigestBoundaryIsInclusive(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)
	stats := map[string]*domain.CategoryStats{"cs.CV": {}}

	digest := BuildDigest("2026-08-30", []ScoredPaper{
		scoredPaper("at", 7, day),
		scoredPaper("below", 6, day),
	}, 7, stats)

	require.Len(t, digest.Entries, 1)
	assert.Equal(t, "at", digest.Entries[0].Paper.ID)
}
