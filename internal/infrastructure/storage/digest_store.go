package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/config"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/domain"
	"github.com/Tree-Shu-Zhao/DailyArXivGPT/internal/ports"
)

var digestFilePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.json$`)

// FSDigestStore persists one digest per run date as a JSON document under
// the output root. Writes go to a temp file first and are renamed into
// place, so a partially written digest is never observable.
type FSDigestStore struct {
	root   string
	policy string
}

var _ ports.DigestStore = (*FSDigestStore)(nil)

// NewFSDigestStore creates the output root if needed. policy is one of
// config.ConflictReject or config.ConflictOverwrite.
func NewFSDigestStore(root, policy string) (*FSDigestStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FSDigestStore{root: root, policy: policy}, nil
}

func (s *FSDigestStore) pathFor(runDate string) string {
	return filepath.Join(s.root, runDate+".json")
}

// Persist writes the digest atomically and returns its location.
func (s *FSDigestStore) Persist(_ context.Context, digest domain.Digest) (string, error) {
	path := s.pathFor(digest.RunDate)

	if s.policy == config.ConflictReject {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%w: %s", domain.ErrDigestExists, digest.RunDate)
		}
	}

	data, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal digest: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, ".digest-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp digest: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write digest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close digest: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("move digest into place: %w", err)
	}

	return path, nil
}

// Load reads a persisted digest back by run date.
func (s *FSDigestStore) Load(_ context.Context, runDate string) (domain.Digest, error) {
	raw, err := os.ReadFile(s.pathFor(runDate))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Digest{}, fmt.Errorf("%w: %s", domain.ErrDigestNotFound, runDate)
		}
		return domain.Digest{}, fmt.Errorf("read digest %s: %w", runDate, err)
	}

	var digest domain.Digest
	if err := json.Unmarshal(raw, &digest); err != nil {
		return domain.Digest{}, fmt.Errorf("parse digest %s: %w", runDate, err)
	}

	return digest, nil
}

// Latest returns the digest with the most recent run date.
func (s *FSDigestStore) Latest(ctx context.Context) (domain.Digest, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return domain.Digest{}, fmt.Errorf("read output dir: %w", err)
	}

	dates := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !digestFilePattern.MatchString(entry.Name()) {
			continue
		}
		dates = append(dates, strings.TrimSuffix(entry.Name(), ".json"))
	}
	if len(dates) == 0 {
		return domain.Digest{}, domain.ErrDigestNotFound
	}

	// Run dates sort lexicographically in chronological order.
	sort.Strings(dates)
	return s.Load(ctx, dates[len(dates)-1])
}
