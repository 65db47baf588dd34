package tmdb

// DiscoverEntry is one listing row: id plus the popularity used for filtering
type DiscoverEntry struct {
	ID         int64   `json:"id"`
	Popularity float64 `json:"popularity"`
}

// DiscoverPage is one page of the discover endpoint
type DiscoverPage struct {
	Page         int             `json:"page"`
	TotalPages   int             `json:"total_pages"`
	TotalResults int             `json:"total_results"`
	Results      []DiscoverEntry `json:"results"`
}

// Genre is a catalog genre tag
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Movie is the full detail record for one id
type Movie struct {
	ID               int64   `json:"id"`
	IMDBID           string  `json:"imdb_id"`
	Title            string  `json:"title"`
	OriginalLanguage string  `json:"original_language"`
	ReleaseDate      string  `json:"release_date"`
	Runtime          int     `json:"runtime"`
	PosterPath       string  `json:"poster_path"`
	Adult            bool    `json:"adult"`
	Video            bool    `json:"video"`
	Popularity       float64 `json:"popularity"`
	Overview         string  `json:"overview"`
	Genres           []Genre `json:"genres"`
}
