package domain

import "time"

// RunDateLayout is the canonical format for a run's logical date.
const RunDateLayout = "2006-01-02"

// Paper is a single arXiv submission candidate. It is never mutated after
// fetch; derived results wrap it instead.
type Paper struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Abstract    string    `json:"abstract"`
	Link        string    `json:"link"`
	Categories  []string  `json:"categories"`
	PublishedAt time.Time `json:"published_at"`
}

// Window bounds a fetch to papers published in [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// DayWindow returns the window covering the calendar day of t in UTC.
func DayWindow(t time.Time) Window {
	start := t.UTC().Truncate(24 * time.Hour)
	return Window{Start: start, End: start.Add(24 * time.Hour)}
}

// RunDate formats the logical run date for a day.
func RunDate(t time.Time) string {
	return t.UTC().Format(RunDateLayout)
}
