package repo

import (
	"context"

	perr "marquee/internal/platform/errors"
	"marquee/internal/platform/store"
	"marquee/internal/services/ingest/domain"
)

// moviesTable names the sink destination with its column order.
// The table is a ReplacingMergeTree keyed by movie_id, so re-ingesting the
// same ids is an upsert rather than a duplicate
const moviesTable = `movies (
	movie_id, imdb_id, title, release_date, language, runtime,
	poster_path, adult, video, genres, overview, popularity, ingest_date
)`

// CHSink writes normalized records to the ClickHouse movies table
type CHSink struct {
	ch store.Clickhouse
}

// NewCHSink constructs a domain.Sink over the store's clickhouse seam
func NewCHSink(ch store.Clickhouse) *CHSink { return &CHSink{ch: ch} }

var _ domain.Sink = (*CHSink)(nil)

// WriteMovies inserts recs as one batch; the whole batch lands or none of it.
// Failures surface as retryable so the batch writer's policy can re-send
func (s *CHSink) WriteMovies(ctx context.Context, recs []domain.Record) error {
	if len(recs) == 0 {
		return nil
	}
	if s == nil || s.ch == nil {
		return perr.Newf(perr.ErrorCodeDB, "movie sink not configured")
	}

	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{
			r.MovieID,
			r.IMDBID,
			r.Title,
			r.ReleaseDate,
			r.Language,
			r.Runtime,
			r.PosterPath,
			r.Adult,
			r.Video,
			r.Genres,
			r.Overview,
			r.Popularity,
			r.IngestDate,
		})
	}

	if err := s.ch.Insert(ctx, moviesTable, rows); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "movies batch insert failed")
	}
	return nil
}
