package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/ports"
)

// SQLiteDedupStore records processed paper ids in an embedded database.
// Scope is global: once recorded, a paper is skipped in every future run
// regardless of which category surfaced it.
type SQLiteDedupStore struct {
	db *sql.DB
}

var _ ports.DedupStore = (*SQLiteDedupStore)(nil)

const dedupSchema = `
CREATE TABLE IF NOT EXISTS seen_papers (
    id         TEXT PRIMARY KEY,
    first_seen TEXT NOT NULL
)`

// NewSQLiteDedupStore opens (creating if needed) the dedup database at path.
func NewSQLiteDedupStore(path string) (*SQLiteDedupStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dedup dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open dedup store: %w", err)
	}

	if _, err := db.Exec(dedupSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init dedup schema: %w", err)
	}

	return &SQLiteDedupStore{db: db}, nil
}

// FilterNew returns the subset of papers not yet recorded. Pure read.
func (s *SQLiteDedupStore) FilterNew(ctx context.Context, papers []domain.Paper) ([]domain.Paper, error) {
	if len(papers) == 0 {
		return nil, nil
	}

	ids := make([]string, len(papers))
	for i, p := range papers {
		ids[i] = p.ID
	}

	query, args, err := sq.Select("id").From("seen_papers").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build filter query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seen papers: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		seen[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	fresh := make([]domain.Paper, 0, len(papers))
	for _, p := range papers {
		if !seen[p.ID] {
			fresh = append(fresh, p)
		}
	}

	return fresh, nil
}

// Commit durably records the given ids in one transaction. Already-present
// ids are ignored, so replays across crash boundaries are harmless.
func (s *SQLiteDedupStore) Commit(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	builder := sq.Insert("seen_papers").Columns("id", "first_seen").
		Suffix("ON CONFLICT(id) DO NOTHING")
	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		builder = builder.Values(id, now)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("%w: build insert: %v", domain.ErrDedupStoreWrite, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrDedupStoreWrite, err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: insert: %v", domain.ErrDedupStoreWrite, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrDedupStoreWrite, err)
	}

	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteDedupStore) Close() error {
	return s.db.Close()
}
