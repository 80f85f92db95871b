package domain

import (
	"errors"
	"fmt"
)

// Failure taxonomy for the pipeline. Category- and paper-scoped errors are
// recoverable and aggregated into the run summary; store failures abort the
// run.
var (
	// ErrSourceUnavailable means one category's upstream could not be
	// reached; the run skips the category and continues.
	ErrSourceUnavailable = errors.New("paper source unavailable")

	// ErrScoringFailed means a paper could not be scored after all retry
	// attempts. The paper is excluded from the digest and left out of the
	// dedup store so the next run picks it up again.
	ErrScoringFailed = errors.New("scoring failed")

	// ErrMalformedVerdict is a scoring failure caused by a response the
	// validator rejected. It matches ErrScoringFailed under errors.Is.
	ErrMalformedVerdict = fmt.Errorf("%w: malformed verdict", ErrScoringFailed)

	// ErrDedupStoreWrite is fatal for the run; proceeding without the
	// dedup guarantee would re-admit already-seen papers next run.
	ErrDedupStoreWrite = errors.New("dedup store write failed")

	// ErrDigestExists is returned under the reject conflict policy when a
	// digest for the run date is already persisted.
	ErrDigestExists = errors.New("digest already exists for run date")

	// ErrDigestNotFound is returned when no digest is persisted for the
	// requested run date.
	ErrDigestNotFound = errors.New("digest not found")
)
