package controllers

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/amaumene/cinemaprompt/internal/models"
	"github.com/amaumene/cinemaprompt/internal/utils"
)

// FilterKind selects which movies a list shows
type FilterKind string

const (
	FilterAll       FilterKind = "all"
	FilterWatched   FilterKind = "watched"
	FilterWatchlist FilterKind = "watchlist"
	FilterFavorites FilterKind = "favorites"
	FilterYear      FilterKind = "year"
)

// Filter is the single active list predicate
type Filter struct {
	Kind FilterKind
	Year int // only for FilterYear
}

// ParseFilter accepts all, watched, watchlist, favorites or a four digit year.
// An empty value means all.
func ParseFilter(value string) (Filter, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch FilterKind(value) {
	case "", FilterAll:
		return Filter{Kind: FilterAll}, nil
	case FilterWatched, FilterWatchlist, FilterFavorites:
		return Filter{Kind: FilterKind(value)}, nil
	}

	value = strings.TrimPrefix(value, "year=")
	year, err := strconv.Atoi(value)
	if err != nil || len(value) != 4 {
		return Filter{}, fmt.Errorf("unknown filter %q", value)
	}
	return Filter{Kind: FilterYear, Year: year}, nil
}

func (f Filter) String() string {
	if f.Kind == FilterYear {
		return strconv.Itoa(f.Year)
	}
	return string(f.Kind)
}

// Match reports whether movie passes the filter. Movies with malformed
// watched dates never match a year filter.
func (f Filter) Match(movie models.Movie) bool {
	switch f.Kind {
	case FilterAll, "":
		return true
	case FilterWatched:
		return movie.Type == models.MovieTypeWatched
	case FilterWatchlist:
		return movie.Type == models.MovieTypeWatchlist
	case FilterFavorites:
		return movie.Favorite
	case FilterYear:
		year := utils.WatchedYear(movie.WatchedDate)
		return year != 0 && year == f.Year
	default:
		return false
	}
}

// FilterMovies returns the movies matching f, in their incoming order
func FilterMovies(movies []models.Movie, f Filter) []models.Movie {
	filtered := make([]models.Movie, 0, len(movies))
	for _, movie := range movies {
		if f.Match(movie) {
			filtered = append(filtered, movie)
		}
	}
	return filtered
}

// SortOrder orders a list by watched date
type SortOrder string

const (
	SortRecent SortOrder = "recent"
	SortOldest SortOrder = "oldest"
)

// ParseSortOrder accepts recent or oldest. An empty value means recent.
func ParseSortOrder(value string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(value))) {
	case "", SortRecent:
		return SortRecent, nil
	case SortOldest:
		return SortOldest, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", value)
	}
}

// SortMovies returns a sorted copy. The sort is stable: equal dates keep their
// incoming (feed, i.e. creation) order. Malformed dates go last in both orders.
func SortMovies(movies []models.Movie, order SortOrder) []models.Movie {
	sorted := make([]models.Movie, len(movies))
	copy(sorted, movies)

	sort.SliceStable(sorted, func(i, j int) bool {
		di, okI := utils.ParseWatchedDate(sorted[i].WatchedDate)
		dj, okJ := utils.ParseWatchedDate(sorted[j].WatchedDate)

		if okI != okJ {
			return okI
		}
		if !okI {
			return false
		}

		if order == SortOldest {
			return di.Before(dj)
		}
		return di.After(dj)
	})

	return sorted
}

// AvailableYears returns the distinct watched years, newest first
func AvailableYears(movies []models.Movie) []int {
	seen := make(map[int]bool)
	var years []int
	for _, movie := range movies {
		year := utils.WatchedYear(movie.WatchedDate)
		if year == 0 || seen[year] {
			continue
		}
		seen[year] = true
		years = append(years, year)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// MovieStats summarizes a collection
type MovieStats struct {
	Total     int `json:"total"`
	Watched   int `json:"watched"`
	Watchlist int `json:"watchlist"`
	Favorites int `json:"favorites"`
}

// Stats counts movies per list and favorites
func Stats(movies []models.Movie) MovieStats {
	stats := MovieStats{Total: len(movies)}
	for _, movie := range movies {
		switch movie.Type {
		case models.MovieTypeWatched:
			stats.Watched++
		case models.MovieTypeWatchlist:
			stats.Watchlist++
		}
		if movie.Favorite {
			stats.Favorites++
		}
	}
	return stats
}
