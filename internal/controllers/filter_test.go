package controllers

import (
	"testing"

	"github.com/amaumene/cinemaprompt/internal/models"
)

func sampleMovies() []models.Movie {
	watchlist := movie("w1", "Dune", "2024-02-01")
	watchlist.Type = models.MovieTypeWatchlist

	favorite := movie("f1", "Heat", "2023-05-10")
	favorite.Favorite = true

	return []models.Movie{
		watchlist,
		favorite,
		movie("a", "Alien", "2023-05-10"),
		movie("b", "Bad Date", "someday"),
		movie("c", "Casablanca", "2021-11-30"),
	}
}

func ids(movies []models.Movie) []string {
	out := make([]string, len(movies))
	for i, m := range movies {
		out[i] = m.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		input   string
		want    Filter
		wantErr bool
	}{
		{"", Filter{Kind: FilterAll}, false},
		{"all", Filter{Kind: FilterAll}, false},
		{"Watched", Filter{Kind: FilterWatched}, false},
		{"watchlist", Filter{Kind: FilterWatchlist}, false},
		{"favorites", Filter{Kind: FilterFavorites}, false},
		{"2023", Filter{Kind: FilterYear, Year: 2023}, false},
		{"year=1999", Filter{Kind: FilterYear, Year: 1999}, false},
		{"23", Filter{}, true},
		{"latest", Filter{}, true},
	}

	for _, tt := range tests {
		got, err := ParseFilter(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFilter(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFilter(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestFilterMovies(t *testing.T) {
	movies := sampleMovies()

	tests := []struct {
		filter Filter
		want   []string
	}{
		{Filter{Kind: FilterAll}, []string{"w1", "f1", "a", "b", "c"}},
		{Filter{Kind: FilterWatched}, []string{"f1", "a", "b", "c"}},
		{Filter{Kind: FilterWatchlist}, []string{"w1"}},
		{Filter{Kind: FilterFavorites}, []string{"f1"}},
		{Filter{Kind: FilterYear, Year: 2023}, []string{"f1", "a"}},
		{Filter{Kind: FilterYear, Year: 1990}, []string{}},
	}

	for _, tt := range tests {
		got := ids(FilterMovies(movies, tt.filter))
		if !equalIDs(got, tt.want) {
			t.Errorf("FilterMovies(%s) = %v, want %v", tt.filter, got, tt.want)
		}
	}
}

func TestSortMovies(t *testing.T) {
	movies := sampleMovies()

	recent := ids(SortMovies(movies, SortRecent))
	if want := []string{"w1", "f1", "a", "c", "b"}; !equalIDs(recent, want) {
		t.Errorf("recent = %v, want %v", recent, want)
	}

	oldest := ids(SortMovies(movies, SortOldest))
	if want := []string{"c", "f1", "a", "w1", "b"}; !equalIDs(oldest, want) {
		t.Errorf("oldest = %v, want %v", oldest, want)
	}

	if ids(movies)[0] != "w1" {
		t.Error("SortMovies must not reorder its input")
	}
}

func TestSortOrdersAreReverses(t *testing.T) {
	movies := []models.Movie{
		movie("1", "A", "2020-01-01"),
		movie("2", "B", "2022-01-01"),
		movie("3", "C", "2021-01-01"),
		movie("4", "D", "2019-07-14"),
	}

	recent := ids(SortMovies(movies, SortRecent))
	oldest := ids(SortMovies(movies, SortOldest))
	for i := range recent {
		if recent[i] != oldest[len(oldest)-1-i] {
			t.Fatalf("recent %v is not the reverse of oldest %v", recent, oldest)
		}
	}
}

func TestParseSortOrder(t *testing.T) {
	if got, err := ParseSortOrder(""); err != nil || got != SortRecent {
		t.Errorf("Expected default recent, got %s (%v)", got, err)
	}
	if got, err := ParseSortOrder("OLDEST"); err != nil || got != SortOldest {
		t.Errorf("Expected oldest, got %s (%v)", got, err)
	}
	if _, err := ParseSortOrder("random"); err == nil {
		t.Error("Expected error for unknown sort order")
	}
}

func TestAvailableYearsAndStats(t *testing.T) {
	movies := sampleMovies()

	years := AvailableYears(movies)
	if len(years) != 3 || years[0] != 2024 || years[1] != 2023 || years[2] != 2021 {
		t.Errorf("Unexpected years: %v", years)
	}

	stats := Stats(movies)
	want := MovieStats{Total: 5, Watched: 4, Watchlist: 1, Favorites: 1}
	if stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
}
