// Package feed holds adapter shims binding the catalog client and the core
// normalizer to the ingest domain ports
package feed

import (
	"context"

	"marquee/internal/adapters/catalog/tmdb"
	"marquee/internal/services/ingest/domain"
)

// catalog implements domain.Catalog on top of the tmdb client
type catalog struct {
	c *tmdb.Client
}

// NewCatalog wraps a tmdb client as a domain.Catalog
func NewCatalog(c *tmdb.Client) domain.Catalog {
	return &catalog{c: c}
}

func (a *catalog) Discover(date string) domain.CandidateIter {
	return &pagerIter{p: a.c.Discover(date)}
}

func (a *catalog) Detail(ctx context.Context, id int64) (domain.RawRecord, error) {
	return a.c.MovieDetail(ctx, id)
}

// pagerIter adapts tmdb.Pager to the domain.CandidateIter contract
type pagerIter struct {
	p *tmdb.Pager
}

func (it *pagerIter) Next(ctx context.Context) (domain.Candidate, error) {
	e, err := it.p.Next(ctx)
	if err != nil {
		return domain.Candidate{}, err
	}
	return domain.Candidate{ID: e.ID, Popularity: e.Popularity}, nil
}
