package domain

import (
	"context"
)

// RunnerPort is the public port exposed by the module
type RunnerPort interface {
	Run(ctx context.Context, spec DateSpec) (RunSummary, error)
}

// CandidateIter walks one date's discovery listing in order.
// Next answers io.EOF once the listing is exhausted; the sequence is finite
// and not restartable
type CandidateIter interface {
	Next(ctx context.Context) (Candidate, error)
}

// Catalog is the upstream metadata provider
type Catalog interface {
	// Discover lists every candidate released on date (YYYY-MM-DD)
	Discover(date string) CandidateIter

	// Detail fetches the full record for one id
	Detail(ctx context.Context, id int64) (RawRecord, error)
}

// Normalizer reshapes a raw record into the persisted schema
type Normalizer interface {
	Normalize(raw RawRecord, ingestDate string) Record
}

// Sink accepts ordered batches of normalized records.
// A write is all-or-nothing per call
type Sink interface {
	WriteMovies(ctx context.Context, recs []Record) error
}

// LedgerRepo is the run ledger storage interface
type LedgerRepo interface {
	// StartDate marks the beginning of one ingest date
	StartDate(ctx context.Context, runID, day string) error

	// FinishDate marks the end of one ingest date with its counters
	FinishDate(ctx context.Context, day string, fin DateFinish) error
}
