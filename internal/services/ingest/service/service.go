// Package service provides the ingest pipeline orchestrator
package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"marquee/internal/modkit/repokit"
	perr "marquee/internal/platform/errors"
	"marquee/internal/platform/logger"
	"marquee/internal/platform/retry"
	"marquee/internal/services/ingest/domain"
)

// Config holds configuration options for the ingest service
type Config struct {
	// Threshold is the inclusive popularity lower bound; candidates below it
	// never reach the detail stage
	Threshold float64

	// BatchSize bounds each sink flush; <=0 -> 10
	BatchSize int

	// Retry is applied to catalog calls by the client and to sink flushes here
	Retry retry.Policy

	// FetchDelay paces detail calls to stay inside the catalog's rate budget
	FetchDelay time.Duration

	// Location decides what "today" means for a backfill window; nil -> UTC
	Location *time.Location
}

// Service implements domain.RunnerPort: one run drives
// dates -> discover -> filter -> dedup -> detail -> normalize -> batched writes
type Service struct {
	// DB and Binder feed the run ledger; both nil disables it
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.LedgerRepo]

	Catalog domain.Catalog
	Norm    domain.Normalizer
	Sink    domain.Sink
	Cfg     Config

	now func() time.Time
}

// New constructs the ingest service
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.LedgerRepo],
	cat domain.Catalog,
	norm domain.Normalizer,
	sink domain.Sink,
	cfg Config,
) *Service {
	if cat == nil {
		panic("ingest.Service requires a non nil Catalog")
	}
	if norm == nil {
		panic("ingest.Service requires a non nil Normalizer")
	}
	if sink == nil {
		panic("ingest.Service requires a non nil Sink")
	}
	return &Service{
		DB: db, Binder: binder,
		Catalog: cat, Norm: norm, Sink: sink,
		Cfg: cfg,
		now: time.Now,
	}
}

// Run implements domain.RunnerPort. On a fatal error the summary still
// carries every counter accumulated up to the failure
func (s *Service) Run(ctx context.Context, spec domain.DateSpec) (domain.RunSummary, error) {
	var sum domain.RunSummary

	dates, err := spec.Dates(s.now(), s.Cfg.Location)
	if err != nil {
		return sum, err
	}

	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID, "")
	logger.C(ctx).Info().
		Strs("dates", dates).
		Float64("threshold", s.Cfg.Threshold).
		Int("batch_size", s.Cfg.BatchSize).
		Msg("ingest run starting")

	// dedup set and buffer live for exactly one run
	seen := make(map[int64]struct{})
	bw := newBatcher(s.Sink, s.Cfg.BatchSize, s.Cfg.Retry)

	for _, day := range dates {
		if err := ctx.Err(); err != nil {
			sum.Written = bw.Written()
			return sum, err
		}
		if err := s.runDate(ctx, runID, day, seen, bw, &sum); err != nil {
			sum.Written = bw.Written()
			logRunSummary(ctx, sum, "ingest run failed")
			return sum, err
		}
	}

	// final partial flush; nothing is silently dropped
	if err := bw.Flush(ctx); err != nil {
		sum.Written = bw.Written()
		logRunSummary(ctx, sum, "ingest run failed")
		return sum, err
	}

	sum.Written = bw.Written()
	logRunSummary(ctx, sum, "ingest run complete")
	return sum, nil
}

func (s *Service) runDate(
	ctx context.Context,
	runID, day string,
	seen map[int64]struct{},
	bw *batcher,
	sum *domain.RunSummary,
) (retErr error) {
	ctx = logger.WithRun(ctx, runID, day)
	start := time.Now()
	writtenBefore := bw.Written()
	var fin domain.DateFinish

	s.ledgerStart(ctx, runID, day)
	defer func() {
		fin.Status = "ok"
		if retErr != nil {
			fin.Status = "error"
			fin.ErrText = retErr.Error()
		}
		fin.Written = bw.Written() - writtenBefore
		fin.ElapsedMS = int(time.Since(start).Milliseconds())
		s.ledgerFinish(ctx, day, fin)
	}()

	it := s.Catalog.Discover(day)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cand, err := it.Next(ctx)
		if err == io.EOF {
			return nil // a date with zero candidates is not an error
		}
		if err != nil {
			// discovery failures mean the date cannot be enumerated completely
			return err
		}

		if cand.Popularity < s.Cfg.Threshold {
			continue
		}
		fin.Discovered++
		sum.Discovered++

		if _, dup := seen[cand.ID]; dup {
			fin.Deduped++
			sum.Deduped++
			continue
		}
		seen[cand.ID] = struct{}{}

		raw, err := s.Catalog.Detail(ctx, cand.ID)
		switch {
		case err == nil:
		case perr.CodeOf(err) == perr.ErrorCodeNotFound:
			// expected race: record delisted between discovery and detail
			fin.SkippedNotFound++
			sum.SkippedNotFound++
			logger.C(ctx).Warn().Int64("movie_id", cand.ID).Msg("record vanished before detail fetch, skipping")
			continue
		case perr.CodeOf(err) == perr.ErrorCodeMalformed:
			fin.SkippedMalformed++
			sum.SkippedMalformed++
			logger.C(ctx).Warn().Int64("movie_id", cand.ID).Err(err).Msg("malformed detail record, skipping")
			continue
		default:
			// transient exhaustion or config failure: completeness for the
			// day cannot be guaranteed
			return err
		}
		fin.Fetched++
		sum.Fetched++

		if err := bw.Add(ctx, s.Norm.Normalize(raw, day)); err != nil {
			return err
		}

		if s.Cfg.FetchDelay > 0 {
			if err := sleepCtx(ctx, s.Cfg.FetchDelay); err != nil {
				return err
			}
		}
	}
}

// ledgerStart marks the date as running; best effort, the pipeline proceeds
// even when the ledger is unreachable
func (s *Service) ledgerStart(ctx context.Context, runID, day string) {
	if s.DB == nil || s.Binder == nil {
		return
	}
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		return s.Binder.Bind(q).StartDate(ctx, runID, day)
	})
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("ledger start failed")
	}
}

func (s *Service) ledgerFinish(ctx context.Context, day string, fin domain.DateFinish) {
	if s.DB == nil || s.Binder == nil {
		return
	}
	err := s.DB.Tx(ctx, func(q repokit.Queryer) error {
		return s.Binder.Bind(q).FinishDate(ctx, day, fin)
	})
	if err != nil {
		logger.C(ctx).Warn().Err(err).Msg("ledger finish failed")
	}
}

func logRunSummary(ctx context.Context, sum domain.RunSummary, msg string) {
	logger.C(ctx).Info().
		Int("discovered", sum.Discovered).
		Int("deduped", sum.Deduped).
		Int("fetched", sum.Fetched).
		Int("skipped_not_found", sum.SkippedNotFound).
		Int("skipped_malformed", sum.SkippedMalformed).
		Int("written", sum.Written).
		Msg(msg)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
