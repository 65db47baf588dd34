package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"marquee/internal/modkit/repokit"
	perr "marquee/internal/platform/errors"
	"marquee/internal/platform/retry"
	"marquee/internal/services/ingest/domain"
)

func fastPolicy() retry.Policy {
	return retry.Policy{
		Attempts:  3,
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
		MaxJitter: time.Millisecond,
	}
}

/*
   fakes
*/

type fakeIter struct {
	cands []domain.Candidate
	idx   int
	err   error // returned after the listed candidates, instead of EOF
}

func (it *fakeIter) Next(ctx context.Context) (domain.Candidate, error) {
	if it.idx < len(it.cands) {
		c := it.cands[it.idx]
		it.idx++
		return c, nil
	}
	if it.err != nil {
		return domain.Candidate{}, it.err
	}
	return domain.Candidate{}, io.EOF
}

type fakeCatalog struct {
	byDate      map[string][]domain.Candidate
	discoverErr map[string]error
	detailErr   map[int64]error
	fetchCalls  map[int64]int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		byDate:      map[string][]domain.Candidate{},
		discoverErr: map[string]error{},
		detailErr:   map[int64]error{},
		fetchCalls:  map[int64]int{},
	}
}

func (c *fakeCatalog) Discover(date string) domain.CandidateIter {
	return &fakeIter{cands: c.byDate[date], err: c.discoverErr[date]}
}

func (c *fakeCatalog) Detail(ctx context.Context, id int64) (domain.RawRecord, error) {
	c.fetchCalls[id]++
	if err := c.detailErr[id]; err != nil {
		return domain.RawRecord{}, err
	}
	return domain.RawRecord{ID: id, Title: fmt.Sprintf("movie %d", id)}, nil
}

// passNorm copies the raw fields straight through
type passNorm struct{}

func (passNorm) Normalize(raw domain.RawRecord, ingestDate string) domain.Record {
	return domain.Record{
		MovieID:    raw.ID,
		Title:      raw.Title,
		Popularity: raw.Popularity,
		IngestDate: ingestDate,
	}
}

type fakeSink struct {
	batches [][]int64
	failN   int // fail the first N write calls
	calls   int
}

func (s *fakeSink) WriteMovies(ctx context.Context, recs []domain.Record) error {
	s.calls++
	if s.calls <= s.failN {
		return perr.Unavailablef("sink flush refused")
	}
	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.MovieID)
	}
	s.batches = append(s.batches, ids)
	return nil
}

func newTestService(cat domain.Catalog, sink domain.Sink, cfg Config) *Service {
	if cfg.Retry == (retry.Policy{}) {
		cfg.Retry = fastPolicy()
	}
	s := New(nil, nil, cat, passNorm{}, sink, cfg)
	s.now = func() time.Time { return time.Date(2023, 1, 7, 12, 0, 0, 0, time.UTC) }
	return s
}

/*
   tests
*/

func TestRun_SingleDateThresholdFilter(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.byDate["2023-01-05"] = []domain.Candidate{
		{ID: 1, Popularity: 20},
		{ID: 2, Popularity: 10},
		{ID: 3, Popularity: 30},
	}
	sink := &fakeSink{}
	svc := newTestService(cat, sink, Config{Threshold: 15, BatchSize: 10})

	sum, err := svc.Run(context.Background(), domain.DateSpec{Date: "2023-01-05"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Discovered != 2 || sum.Fetched != 2 || sum.Written != 2 {
		t.Fatalf("summary mismatch: %+v", sum)
	}
	if cat.fetchCalls[2] != 0 {
		t.Fatalf("candidate below threshold reached the detail stage")
	}
	if len(sink.batches) != 1 || len(sink.batches[0]) != 2 {
		t.Fatalf("expected one batch of 2, got %v", sink.batches)
	}
}

func TestRun_ThresholdIsInclusive(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.byDate["2023-01-05"] = []domain.Candidate{
		{ID: 1, Popularity: 15}, // exactly at the bound survives
		{ID: 2, Popularity: 14.999},
	}
	sink := &fakeSink{}
	svc := newTestService(cat, sink, Config{Threshold: 15, BatchSize: 10})

	sum, err := svc.Run(context.Background(), domain.DateSpec{Date: "2023-01-05"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Discovered != 1 || sum.Written != 1 {
		t.Fatalf("summary mismatch: %+v", sum)
	}
	if len(sink.batches) != 1 || sink.batches[0][0] != 1 {
		t.Fatalf("batches mismatch: %v", sink.batches)
	}
}

func TestRun_BackfillDedupsAcrossDates(t *testing.T) {
	t.Parallel()

	// now is pinned to 2023-01-07; a 3-day backfill covers 05..07
	cat := newFakeCatalog()
	cat.byDate["2023-01-05"] = []domain.Candidate{{ID: 7, Popularity: 50}}
	cat.byDate["2023-01-06"] = []domain.Candidate{{ID: 7, Popularity: 50}, {ID: 8, Popularity: 50}}
	cat.byDate["2023-01-07"] = nil
	sink := &fakeSink{}
	svc := newTestService(cat, sink, Config{Threshold: 15, BatchSize: 10})

	sum, err := svc.Run(context.Background(), domain.DateSpec{BackfillDays: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cat.fetchCalls[7] != 1 {
		t.Fatalf("duplicate id fetched %d times, want 1", cat.fetchCalls[7])
	}
	if sum.Discovered != 3 || sum.Deduped != 1 || sum.Fetched != 2 || sum.Written != 2 {
		t.Fatalf("summary mismatch: %+v", sum)
	}

	// no duplicate ids across every flushed batch
	seen := map[int64]bool{}
	for _, b := range sink.batches {
		for _, id := range b {
			if seen[id] {
				t.Fatalf("id %d written twice", id)
			}
			seen[id] = true
		}
	}
}

func TestRun_NotFoundSkipsAndContinues(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.byDate["2023-01-05"] = []domain.Candidate{
		{ID: 1, Popularity: 50},
		{ID: 2, Popularity: 50},
	}
	cat.detailErr[1] = perr.NotFoundf("tmdb /movie/1 not found")
	sink := &fakeSink{}
	svc := newTestService(cat, sink, Config{Threshold: 15, BatchSize: 10})

	sum, err := svc.Run(context.Background(), domain.DateSpec{Date: "2023-01-05"})
	if err != nil {
		t.Fatalf("run must not fail on a vanished record: %v", err)
	}
	if sum.SkippedNotFound != 1 || sum.Fetched != 1 || sum.Written != 1 {
		t.Fatalf("summary mismatch: %+v", sum)
	}
}

func TestRun_MalformedSkipsAndContinues(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.byDate["2023-01-05"] = []domain.Candidate{
		{ID: 1, Popularity: 50},
		{ID: 2, Popularity: 50},
	}
	cat.detailErr[2] = perr.Malformedf("tmdb /movie/2 malformed response")
	sink := &fakeSink{}
	svc := newTestService(cat, sink, Config{Threshold: 15, BatchSize: 10})

	sum, err := svc.Run(context.Background(), domain.DateSpec{Date: "2023-01-05"})
	if err != nil {
		t.Fatalf("run must not fail on a malformed record: %v", err)
	}
	if sum.SkippedMalformed != 1 || sum.Fetched != 1 || sum.Written != 1 {
		t.Fatalf("summary mismatch: %+v", sum)
	}
}

func TestRun_TransientExhaustionIsFatal(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.byDate["2023-01-05"] = []domain.Candidate{
		{ID: 1, Popularity: 50},
		{ID: 2, Popularity: 50},
	}
	cat.detailErr[1] = perr.Unavailablef("tmdb /movie/1 server error 503")
	sink := &fakeSink{}
	svc := newTestService(cat, sink, Config{Threshold: 15, BatchSize: 10})

	sum, err := svc.Run(context.Background(), domain.DateSpec{Date: "2023-01-05"})
	if perr.CodeOf(err) != perr.ErrorCodeUnavailable {
		t.Fatalf("expected unavailable code, got %v (err=%v)", perr.CodeOf(err), err)
	}
	// counters up to the failure are still reported
	if sum.Discovered != 1 {
		t.Fatalf("summary mismatch: %+v", sum)
	}
	if cat.fetchCalls[2] != 0 {
		t.Fatalf("pipeline continued past a fatal fetch error")
	}
}

func TestRun_WriteErrorCarriesBatchIDs(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.byDate["2023-01-05"] = []domain.Candidate{
		{ID: 10, Popularity: 50},
		{ID: 11, Popularity: 50},
		{ID: 12, Popularity: 50},
		{ID: 13, Popularity: 50},
	}
	// first flush lands, every later flush attempt is refused
	sink := &fakeSink{}
	flaky := &failAfterSink{inner: sink, okCalls: 1}
	svc := newTestService(cat, flaky, Config{Threshold: 15, BatchSize: 2})

	sum, err := svc.Run(context.Background(), domain.DateSpec{Date: "2023-01-05"})
	if perr.CodeOf(err) != perr.ErrorCodeDB {
		t.Fatalf("expected write error code, got %v (err=%v)", perr.CodeOf(err), err)
	}
	if !strings.Contains(err.Error(), "12") || !strings.Contains(err.Error(), "13") {
		t.Fatalf("write error does not name the failed batch ids: %v", err)
	}
	// the first batch stays counted as written
	if sum.Written != 2 {
		t.Fatalf("written mismatch: %+v", sum)
	}
}

// failAfterSink lets the first okCalls writes through then refuses forever
type failAfterSink struct {
	inner   *fakeSink
	okCalls int
	calls   int
}

func (s *failAfterSink) WriteMovies(ctx context.Context, recs []domain.Record) error {
	s.calls++
	if s.calls > s.okCalls {
		return perr.Unavailablef("sink flush refused")
	}
	return s.inner.WriteMovies(ctx, recs)
}

func TestRun_BatchSizesAreBounded(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	var cands []domain.Candidate
	for i := 1; i <= 25; i++ {
		cands = append(cands, domain.Candidate{ID: int64(i), Popularity: 50})
	}
	cat.byDate["2023-01-05"] = cands
	sink := &fakeSink{}
	svc := newTestService(cat, sink, Config{Threshold: 15, BatchSize: 10})

	sum, err := svc.Run(context.Background(), domain.DateSpec{Date: "2023-01-05"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.batches) != 3 {
		t.Fatalf("expected 3 flushes, got %d", len(sink.batches))
	}
	sizes := []int{len(sink.batches[0]), len(sink.batches[1]), len(sink.batches[2])}
	if sizes[0] != 10 || sizes[1] != 10 || sizes[2] != 5 {
		t.Fatalf("flush sizes mismatch: %v", sizes)
	}
	if sum.Written != 25 || sum.Fetched != 25 {
		t.Fatalf("summary mismatch: %+v", sum)
	}
}

func TestRun_SinkRetriedToSuccess(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.byDate["2023-01-05"] = []domain.Candidate{{ID: 1, Popularity: 50}}
	sink := &fakeSink{failN: 2} // two transient refusals then success
	svc := newTestService(cat, sink, Config{Threshold: 15, BatchSize: 10})

	sum, err := svc.Run(context.Background(), domain.DateSpec{Date: "2023-01-05"})
	if err != nil {
		t.Fatalf("expected success after transient sink failures: %v", err)
	}
	if sum.Written != 1 || sink.calls != 3 {
		t.Fatalf("summary=%+v calls=%d", sum, sink.calls)
	}
}

func TestRun_MissingDateSpecIsConfigError(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeCatalog(), &fakeSink{}, Config{Threshold: 15})

	_, err := svc.Run(context.Background(), domain.DateSpec{})
	if perr.CodeOf(err) != perr.ErrorCodeConfig {
		t.Fatalf("expected config code, got %v (err=%v)", perr.CodeOf(err), err)
	}
}

func TestRun_CancelledContextStopsRun(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.byDate["2023-01-05"] = []domain.Candidate{{ID: 1, Popularity: 50}}
	svc := newTestService(cat, &fakeSink{}, Config{Threshold: 15})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, domain.DateSpec{Date: "2023-01-05"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_EmptyDateIsNotAnError(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog() // no candidates for any date
	sink := &fakeSink{}
	svc := newTestService(cat, sink, Config{Threshold: 15})

	sum, err := svc.Run(context.Background(), domain.DateSpec{Date: "2023-01-05"})
	if err != nil {
		t.Fatalf("empty date must not fail: %v", err)
	}
	if sum != (domain.RunSummary{}) {
		t.Fatalf("expected zero summary, got %+v", sum)
	}
	if sink.calls != 0 {
		t.Fatalf("no flush expected for an empty run")
	}
}

/*
   ledger wiring
*/

type recordedFinish struct {
	day string
	fin domain.DateFinish
}

type fakeLedger struct {
	starts   []string
	finishes []recordedFinish
}

func (l *fakeLedger) StartDate(ctx context.Context, runID, day string) error {
	l.starts = append(l.starts, day)
	return nil
}

func (l *fakeLedger) FinishDate(ctx context.Context, day string, fin domain.DateFinish) error {
	l.finishes = append(l.finishes, recordedFinish{day: day, fin: fin})
	return nil
}

// txRunnerStub satisfies repokit.TxRunner with no real database behind it;
// the binder stub ignores the nil Queryer it hands out
type txRunnerStub struct{}

func (txRunnerStub) Exec(ctx context.Context, sql string, args ...any) (repokit.CommandTag, error) {
	var z repokit.CommandTag
	return z, nil
}

func (txRunnerStub) Query(ctx context.Context, sql string, args ...any) (repokit.Rows, error) {
	var z repokit.Rows
	return z, nil
}

func (txRunnerStub) QueryRow(ctx context.Context, sql string, args ...any) repokit.Row {
	var z repokit.Row
	return z
}

func (txRunnerStub) Tx(ctx context.Context, fn func(q repokit.Queryer) error) error { return fn(nil) }

type binderStub struct{ ledger domain.LedgerRepo }

func (b binderStub) Bind(_ repokit.Queryer) domain.LedgerRepo { return b.ledger }

func TestRun_LedgerRecordsDateOutcome(t *testing.T) {
	t.Parallel()

	cat := newFakeCatalog()
	cat.byDate["2023-01-05"] = []domain.Candidate{
		{ID: 1, Popularity: 50},
		{ID: 2, Popularity: 50},
	}
	cat.detailErr[2] = perr.NotFoundf("gone")
	sink := &fakeSink{}

	ledger := &fakeLedger{}
	svc := newTestService(cat, sink, Config{Threshold: 15, BatchSize: 10})
	svc.DB = &txRunnerStub{}
	svc.Binder = binderStub{ledger: ledger}

	if _, err := svc.Run(context.Background(), domain.DateSpec{Date: "2023-01-05"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(ledger.starts) != 1 || ledger.starts[0] != "2023-01-05" {
		t.Fatalf("ledger starts mismatch: %v", ledger.starts)
	}
	if len(ledger.finishes) != 1 {
		t.Fatalf("ledger finishes mismatch: %v", ledger.finishes)
	}
	fin := ledger.finishes[0].fin
	if fin.Status != "ok" || fin.Discovered != 2 || fin.Fetched != 1 || fin.SkippedNotFound != 1 || fin.Written != 1 {
		t.Fatalf("finish counters mismatch: %+v", fin)
	}
}
