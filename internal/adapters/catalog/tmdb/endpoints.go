package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// DiscoverByDate fetches one page of movies whose primary release date equals
// date (YYYY-MM-DD). Page numbering starts at 1
func (c *Client) DiscoverByDate(ctx context.Context, date string, page int) (DiscoverPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("primary_release_date.gte", date)
	q.Set("primary_release_date.lte", date)
	q.Set("page", strconv.Itoa(page))

	var out DiscoverPage
	if err := c.get(ctx, "discover", "/discover/movie", q, &out); err != nil {
		return DiscoverPage{}, err
	}
	return out, nil
}

// MovieDetail fetches the full record for one id
func (c *Client) MovieDetail(ctx context.Context, id int64) (Movie, error) {
	path := fmt.Sprintf("/movie/%d", id)

	var out Movie
	if err := c.get(ctx, "detail", path, nil, &out); err != nil {
		return Movie{}, err
	}
	return out, nil
}
