package domain

import (
	"sort"
	"time"
)

// ScoreVerdict is the validated output of one relevance-scoring call.
type ScoreVerdict struct {
	Score   int    `json:"score"`
	Reasons string `json:"reasons"`
	Model   string `json:"model"`
}

// DigestEntry pairs a paper with the verdict that cleared the threshold.
type DigestEntry struct {
	Paper   Paper        `json:"paper"`
	Verdict ScoreVerdict `json:"verdict"`
}

// CategoryStats counts the fate of papers fetched under one category.
type CategoryStats struct {
	Fetched       int `json:"fetched"`
	Deduped       int `json:"deduped"`
	Scored        int `json:"scored"`
	ScoringFailed int `json:"scoring_failed"`
	Kept          int `json:"kept"`
}

// Digest is the persisted output of one run. Created once, written once.
type Digest struct {
	RunDate         string                   `json:"run_date"`
	GeneratedAt     time.Time                `json:"generated_at"`
	Entries         []DigestEntry            `json:"entries"`
	CategorySummary map[string]CategoryStats `json:"category_summary"`
}

// SortEntries orders entries deterministically: score descending, then
// published date descending, then id ascending.
func SortEntries(entries []DigestEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Verdict.Score != b.Verdict.Score {
			return a.Verdict.Score > b.Verdict.Score
		}
		if !a.Paper.PublishedAt.Equal(b.Paper.PublishedAt) {
			return a.Paper.PublishedAt.After(b.Paper.PublishedAt)
		}
		return a.Paper.ID < b.Paper.ID
	})
}
