package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
)

// fakeSource serves canned papers per category.
type fakeSource struct {
	papers      map[string][]domain.Paper
	unavailable map[string]bool
}

func (f *fakeSource) Fetch(_ context.Context, category string, _ domain.Window) ([]domain.Paper, error) {
	if f.unavailable[category] {
		return nil, fmt.Errorf("%w: category %s", domain.ErrSourceUnavailable, category)
	}
	return f.papers[category], nil
}

// fakeDedup is an in-memory dedup store.
type fakeDedup struct {
	mu        sync.Mutex
	seen      map[string]bool
	failWrite bool
}

func newFakeDedup(seen ...string) *fakeDedup {
	d := &fakeDedup{seen: map[string]bool{}}
	for _, id := range seen {
		d.seen[id] = true
	}
	return d
}

func (d *fakeDedup) FilterNew(_ context.Context, papers []domain.Paper) ([]domain.Paper, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var fresh []domain.Paper
	for _, p := range papers {
		if !d.seen[p.ID] {
			fresh = append(fresh, p)
		}
	}
	return fresh, nil
}

func (d *fakeDedup) Commit(_ context.Context, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWrite {
		return fmt.Errorf("%w: disk full", domain.ErrDedupStoreWrite)
	}
	for _, id := range ids {
		d.seen[id] = true
	}
	return nil
}

func (d *fakeDedup) Close() error { return nil }

func (d *fakeDedup) has(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id]
}

// fakeScorer scores by canned verdicts; missing ids fail scoring.
type fakeScorer struct {
	scores map[string]int
}

func (s *fakeScorer) Score(_ context.Context, paper domain.Paper) (domain.ScoreVerdict, error) {
	score, ok := s.scores[paper.ID]
	if !ok {
		return domain.ScoreVerdict{}, fmt.Errorf("%w: paper %s", domain.ErrScoringFailed, paper.ID)
	}
	return domain.ScoreVerdict{Score: score, Reasons: "r", Model: "stub"}, nil
}

// fakeDigestStore records persisted digests in memory.
type fakeDigestStore struct {
	mu        sync.Mutex
	persisted []domain.Digest
	conflict  bool
}

func (d *fakeDigestStore) Persist(_ context.Context, digest domain.Digest) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conflict {
		return "", fmt.Errorf("%w: %s", domain.ErrDigestExists, digest.RunDate)
	}
	d.persisted = append(d.persisted, digest)
	return "/digests/" + digest.RunDate + ".json", nil
}

func (d *fakeDigestStore) Load(_ context.Context, runDate string) (domain.Digest, error) {
	return domain.Digest{}, domain.ErrDigestNotFound
}

func (d *fakeDigestStore) Latest(_ context.Context) (domain.Digest, error) {
	return domain.Digest{}, domain.ErrDigestNotFound
}

func paper(id string, categories ...string) domain.Paper {
	if len(categories) == 0 {
		categories = []string{"cs.CV"}
	}
	return domain.Paper{
		ID:          id,
		Title:       "title " + id,
		Abstract:    "abstract " + id,
		Categories:  categories,
		PublishedAt: time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC),
	}
}

func testDay() time.Time {
	return time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC)
}

func newTestPipeline(src *fakeSource, dedup *fakeDedup, scorer *fakeScorer, store *fakeDigestStore, categories []string) *Pipeline {
	return NewPipeline(PipelineDeps{
		Source:     src,
		Dedup:      dedup,
		Scorer:     scorer,
		Digests:    store,
		Categories: categories,
		Threshold:  7,
		Workers:    4,
	})
}

func TestRunKeepsOnlyThresholdClearingPapers(t *testing.T) {
	t.Parallel()

	src := &fakeSource{papers: map[string][]domain.Paper{
		"cs.CV": {paper("P1"), paper("P2"), paper("P3")},
	}}
	dedup := newFakeDedup()
	scorer := &fakeScorer{scores: map[string]int{"P1": 9, "P2": 7, "P3": 6}}
	store := &fakeDigestStore{}

	summary, err := newTestPipeline(src, dedup, scorer, store, []string{"cs.CV"}).Run(context.Background(), testDay())
	require.NoError(t, err)
	assert.Equal(t, StageDone, summary.Stage)
	assert.Equal(t, 2, summary.Kept)

	require.Len(t, store.persisted, 1)
	digest := store.persisted[0]
	require.Len(t, digest.Entries, 2)
	assert.Equal(t, "P1", digest.Entries[0].Paper.ID)
	assert.Equal(t, "P2", digest.Entries[1].Paper.ID)

	// All successfully scored papers are committed, kept or not.
	for _, id := range []string{"P1", "P2", "P3"} {
		assert.True(t, dedup.has(id), "expected %s committed", id)
	}
}

func TestRunEmptyCategoryStillCompletes(t *testing.T) {
	t.Parallel()

	src := &fakeSource{papers: map[string][]domain.Paper{}}
	store := &fakeDigestStore{}

	summary, err := newTestPipeline(src, newFakeDedup(), &fakeScorer{}, store, []string{"cs.CL"}).Run(context.Background(), testDay())
	require.NoError(t, err)
	assert.Equal(t, StageDone, summary.Stage)
	assert.Equal(t, domain.CategoryStats{}, *summary.Categories["cs.CL"])

	require.Len(t, store.persisted, 1)
	assert.Empty(t, store.persisted[0].Entries)
}

func TestRunScoringFailureLeavesPaperForNextRun(t *testing.T) {
	t.Parallel()

	src := &fakeSource{papers: map[string][]domain.Paper{
		"cs.CV": {paper("P1"), paper("FAIL")},
	}}
	dedup := newFakeDedup()
	scorer := &fakeScorer{scores: map[string]int{"P1": 8}}
	store := &fakeDigestStore{}

	p := newTestPipeline(src, dedup, scorer, store, []string{"cs.CV"})
	summary, err := p.Run(context.Background(), testDay())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Categories["cs.CV"].ScoringFailed)
	assert.Equal(t, 1, summary.Categories["cs.CV"].Scored)

	require.Len(t, store.persisted, 1)
	for _, entry := range store.persisted[0].Entries {
		assert.NotEqual(t, "FAIL", entry.Paper.ID)
	}
	assert.False(t, dedup.has("FAIL"), "failed paper must not be committed")

	// The next run sees the paper again as a candidate.
	fresh, err := dedup.FilterNew(context.Background(), []domain.Paper{paper("FAIL")})
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
}

func TestRunSourceUnavailableIsolatedPerCategory(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		papers:      map[string][]domain.Paper{"cs.CV": {paper("P1")}},
		unavailable: map[string]bool{"cs.CL": true},
	}
	store := &fakeDigestStore{}
	scorer := &fakeScorer{scores: map[string]int{"P1": 8}}

	summary, err := newTestPipeline(src, newFakeDedup(), scorer, store, []string{"cs.CV", "cs.CL"}).Run(context.Background(), testDay())
	require.NoError(t, err)
	assert.Equal(t, StageDone, summary.Stage)
	assert.Equal(t, []string{"cs.CL"}, summary.UnavailableCategories)
	assert.Equal(t, 1, summary.Kept)
}

func TestRunDedupFiltersPreviouslySeen(t *testing.T) {
	t.Parallel()

	src := &fakeSource{papers: map[string][]domain.Paper{
		"cs.CV": {paper("OLD"), paper("NEW")},
	}}
	dedup := newFakeDedup("OLD")
	scorer := &fakeScorer{scores: map[string]int{"NEW": 9, "OLD": 9}}
	store := &fakeDigestStore{}

	summary, err := newTestPipeline(src, dedup, scorer, store, []string{"cs.CV"}).Run(context.Background(), testDay())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Categories["cs.CV"].Deduped)

	require.Len(t, store.persisted, 1)
	require.Len(t, store.persisted[0].Entries, 1)
	assert.Equal(t, "NEW", store.persisted[0].Entries[0].Paper.ID)
}

func TestRunCrossListedPaperScoredOnce(t *testing.T) {
	t.Parallel()

	shared := paper("SHARED", "cs.CV", "cs.CL")
	src := &fakeSource{papers: map[string][]domain.Paper{
		"cs.CV": {shared},
		"cs.CL": {shared},
	}}
	scorer := &fakeScorer{scores: map[string]int{"SHARED": 9}}
	store := &fakeDigestStore{}

	summary, err := newTestPipeline(src, newFakeDedup(), scorer, store, []string{"cs.CV", "cs.CL"}).Run(context.Background(), testDay())
	require.NoError(t, err)

	require.Len(t, store.persisted, 1)
	assert.Len(t, store.persisted[0].Entries, 1, "cross-listed paper must appear once")
	assert.Equal(t, 1, summary.Categories["cs.CV"].Scored)
	assert.Equal(t, 0, summary.Categories["cs.CL"].Scored)
}

func TestRunDedupWriteFailureIsFatal(t *testing.T) {
	t.Parallel()

	src := &fakeSource{papers: map[string][]domain.Paper{
		"cs.CV": {paper("P1")},
	}}
	dedup := newFakeDedup()
	dedup.failWrite = true
	store := &fakeDigestStore{}
	scorer := &fakeScorer{scores: map[string]int{"P1": 8}}

	summary, err := newTestPipeline(src, dedup, scorer, store, []string{"cs.CV"}).Run(context.Background(), testDay())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDedupStoreWrite)
	assert.Equal(t, StageFailed, summary.Stage)
	assert.Empty(t, store.persisted, "no digest may be written after a dedup write failure")
}

func TestRunPersistConflictSurfacedNotFatal(t *testing.T) {
	t.Parallel()

	src := &fakeSource{papers: map[string][]domain.Paper{
		"cs.CV": {paper("P1")},
	}}
	store := &fakeDigestStore{conflict: true}
	scorer := &fakeScorer{scores: map[string]int{"P1": 8}}

	summary, err := newTestPipeline(src, newFakeDedup(), scorer, store, []string{"cs.CV"}).Run(context.Background(), testDay())
	require.NoError(t, err)
	assert.Equal(t, StageDone, summary.Stage)
	assert.True(t, summary.Conflict)
}

func TestRunCancelledBeforePersist(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{papers: map[string][]domain.Paper{
		"cs.CV": {paper("P1")},
	}}
	store := &fakeDigestStore{}
	scorer := &fakeScorer{scores: map[string]int{"P1": 8}}

	summary, err := newTestPipeline(src, newFakeDedup(), scorer, store, []string{"cs.CV"}).Run(ctx, testDay())
	require.Error(t, err)
	assert.Equal(t, StageFailed, summary.Stage)
	assert.Empty(t, store.persisted, "cancelled runs must not persist")
}
