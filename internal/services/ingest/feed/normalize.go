package feed

import (
	"marquee/internal/core/normalize"
	"marquee/internal/services/ingest/domain"
)

// normalizer wraps the core field normalizer to satisfy domain.Normalizer
type normalizer struct {
	inner *normalize.Normalizer
}

// NewNormalizer constructs a domain.Normalizer over the core normalizer
func NewNormalizer(inner *normalize.Normalizer) domain.Normalizer {
	return normalizer{inner: inner}
}

// Normalize reshapes the raw detail record into the persisted schema.
// Optional fields default to empty rather than carrying catalog nulls through
func (n normalizer) Normalize(raw domain.RawRecord, ingestDate string) domain.Record {
	genres := make([]string, 0, len(raw.Genres))
	for _, g := range raw.Genres {
		if name := n.inner.Text(g.Name); name != "" {
			genres = append(genres, name)
		}
	}

	return domain.Record{
		MovieID:     raw.ID,
		IMDBID:      n.inner.Text(raw.IMDBID),
		Title:       n.inner.Title(raw.Title),
		ReleaseDate: n.inner.ReleaseDate(raw.ReleaseDate),
		Language:    n.inner.Language(raw.OriginalLanguage),
		Runtime:     int32(raw.Runtime),
		PosterPath:  n.inner.Text(raw.PosterPath),
		Adult:       raw.Adult,
		Video:       raw.Video,
		Genres:      genres,
		Overview:    n.inner.Text(raw.Overview),
		Popularity:  raw.Popularity,
		IngestDate:  ingestDate,
	}
}
