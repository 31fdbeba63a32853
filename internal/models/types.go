package models

// MovieType represents which list a movie is on
type MovieType string

const (
	MovieTypeWatched   MovieType = "watched"
	MovieTypeWatchlist MovieType = "watchlist"
)

// Valid reports whether t is a known movie type
func (t MovieType) Valid() bool {
	return t == MovieTypeWatched || t == MovieTypeWatchlist
}

const (
	// MinRating and MaxRating bound a movie rating (inclusive)
	MinRating = 1
	MaxRating = 10

	// DefaultTitle is shown for documents persisted without a title
	DefaultTitle = "Untitled"
)
