package service

import (
	"context"
	"fmt"

	perr "marquee/internal/platform/errors"
	"marquee/internal/platform/retry"
	"marquee/internal/services/ingest/domain"
)

const defaultBatchSize = 10

// batcher accumulates normalized records and flushes them to the sink in
// fixed-size batches, in fill order. A flush is all-or-nothing; on retry
// exhaustion the whole batch's ids surface in the error so the run can be
// re-triggered safely
type batcher struct {
	sink   domain.Sink
	size   int
	policy retry.Policy

	buf     []domain.Record
	written int
	flushes int
}

func newBatcher(sink domain.Sink, size int, policy retry.Policy) *batcher {
	if size <= 0 {
		size = defaultBatchSize
	}
	return &batcher{
		sink:   sink,
		size:   size,
		policy: policy,
		buf:    make([]domain.Record, 0, size),
	}
}

// Add buffers one record and flushes when the buffer reaches the batch size
func (b *batcher) Add(ctx context.Context, rec domain.Record) error {
	b.buf = append(b.buf, rec)
	if len(b.buf) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

// Flush writes any remaining partial buffer; call once at end of run
func (b *batcher) Flush(ctx context.Context) error { return b.flush(ctx) }

// Written answers how many records have landed in the sink so far
func (b *batcher) Written() int { return b.written }

func (b *batcher) flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	batch := b.buf
	err := b.policy.Do(ctx, "sink flush", func() error {
		return b.sink.WriteMovies(ctx, batch)
	})
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "batch write failed for movie ids %s", recordIDs(batch))
	}
	b.written += len(batch)
	b.flushes++
	b.buf = b.buf[:0]
	return nil
}

func recordIDs(recs []domain.Record) string {
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.MovieID)
	}
	return fmt.Sprint(ids)
}
