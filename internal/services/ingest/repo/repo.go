// Package repo provides storage access for the ingest run ledger and sink
package repo

import (
	"context"

	"marquee/internal/modkit/repokit"
	"marquee/internal/services/ingest/domain"
)

type (
	// PG is a Postgres binder for domain.LedgerRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.LedgerRepo
func NewPG() repokit.Binder[domain.LedgerRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.LedgerRepo { return &queries{q: q} }

// StartDate marks the start of an ingest date (idempotent)
func (r *queries) StartDate(ctx context.Context, runID, day string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO ingest_dates (day, run_id, started_at, status)
		VALUES ($1::date, $2, now(), 'running')
		ON CONFLICT (day) DO UPDATE
		SET run_id = $2, started_at = now(), status = 'running', error = null, finished_at = null
	`, day, runID)
	return err
}

// FinishDate marks the end of an ingest date (idempotent)
func (r *queries) FinishDate(ctx context.Context, day string, fin domain.DateFinish) error {
	_, err := r.q.Exec(ctx, `
		UPDATE ingest_dates SET
			finished_at = now(),
			status = $2,
			discovered = $3,
			deduped = $4,
			fetched = $5,
			skipped_not_found = $6,
			skipped_malformed = $7,
			written = $8,
			elapsed_ms = $9,
			error = NULLIF($10,'')
		WHERE day = $1::date
	`,
		day, fin.Status, fin.Discovered, fin.Deduped, fin.Fetched,
		fin.SkippedNotFound, fin.SkippedMalformed, fin.Written, fin.ElapsedMS, fin.ErrText,
	)
	return err
}
