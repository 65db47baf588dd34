// Package domain holds the core business logic and data structures for ingest
package domain

import (
	"time"

	"marquee/internal/adapters/catalog/tmdb"
	perr "marquee/internal/platform/errors"
)

// RawRecord re-exports the catalog detail shape consumed by the normalizer
type RawRecord = tmdb.Movie

// DayFormat is the calendar date layout used across the pipeline
const DayFormat = "2006-01-02"

// DateSpec names the dates one run covers: either an explicit calendar date
// or a count of consecutive days ending today
type DateSpec struct {
	// Date is an explicit YYYY-MM-DD target; wins when both fields are set
	Date string

	// BackfillDays is today plus the N-1 preceding days
	BackfillDays int
}

// Dates expands the spec into concrete days, oldest first.
// now and loc decide what "today" means for a backfill window
func (s DateSpec) Dates(now time.Time, loc *time.Location) ([]string, error) {
	if s.Date != "" {
		t, err := time.Parse(DayFormat, s.Date)
		if err != nil {
			return nil, perr.Configf("target date %q is not YYYY-MM-DD", s.Date)
		}
		return []string{t.Format(DayFormat)}, nil
	}
	if s.BackfillDays <= 0 {
		return nil, perr.Configf("either a target date or a positive backfill day count is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	today := now.In(loc)
	out := make([]string, 0, s.BackfillDays)
	for i := s.BackfillDays - 1; i >= 0; i-- {
		out = append(out, today.AddDate(0, 0, -i).Format(DayFormat))
	}
	return out, nil
}

// Candidate is one discovery listing entry: id plus the popularity score the
// threshold filter reads
type Candidate struct {
	ID         int64
	Popularity float64
}

// Record is the normalized shape persisted to the sink
type Record struct {
	MovieID     int64
	IMDBID      string
	Title       string
	ReleaseDate string
	Language    string
	Runtime     int32
	PosterPath  string
	Adult       bool
	Video       bool
	Genres      []string
	Overview    string
	Popularity  float64
	IngestDate  string
}

// DateFinish carries one processed date's outcome into the ledger
type DateFinish struct {
	Status           string
	Discovered       int
	Deduped          int
	Fetched          int
	SkippedNotFound  int
	SkippedMalformed int
	Written          int
	ElapsedMS        int
	ErrText          string
}

// RunSummary accumulates the whole run's counters
type RunSummary struct {
	Discovered       int
	Deduped          int
	Fetched          int
	SkippedNotFound  int
	SkippedMalformed int
	Written          int
}
