package tmdb

import (
	"context"
	"io"
)

// Pager walks the discover listing for one date as a finite sequence.
// It is not restartable; a fresh Pager re-pages from page 1
type Pager struct {
	c    *Client
	date string

	page  int // next page to request
	total int // 0 until the first page answers
	buf   []DiscoverEntry
	idx   int
	done  bool
}

// Discover returns a Pager over every listing entry for date
func (c *Client) Discover(date string) *Pager {
	return &Pager{c: c, date: date, page: 1}
}

// Next yields the next (id, popularity) entry in discovery order.
// It returns io.EOF once the last page is exhausted
func (p *Pager) Next(ctx context.Context) (DiscoverEntry, error) {
	for {
		if p.idx < len(p.buf) {
			e := p.buf[p.idx]
			p.idx++
			return e, nil
		}
		if p.done {
			return DiscoverEntry{}, io.EOF
		}

		pg, err := p.c.DiscoverByDate(ctx, p.date, p.page)
		if err != nil {
			return DiscoverEntry{}, err
		}
		p.buf = pg.Results
		p.idx = 0
		if p.total == 0 {
			p.total = pg.TotalPages
		}
		if p.page >= p.total || pg.TotalPages == 0 {
			p.done = true
		}
		p.page++

		// a page can legitimately be empty; loop to either the buffered
		// entries or EOF
		if len(p.buf) == 0 && p.done {
			return DiscoverEntry{}, io.EOF
		}
	}
}
