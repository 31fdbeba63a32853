package controllers

import (
	"fmt"
	"strings"

	"github.com/amaumene/cinemaprompt/internal/models"
)

// PromptError is returned when a prompt cannot be composed
type PromptError struct {
	Code    string
	Message string
}

func (e *PromptError) Error() string {
	return e.Code + ": " + e.Message
}

var (
	ErrNoMovies = &PromptError{
		Code:    "no-movies",
		Message: "You don't have any watched movies saved yet.",
	}
	ErrEmptyGenre = &PromptError{
		Code:    "empty-genre",
		Message: "Please enter a genre for recommendations.",
	}
)

const (
	promptIntro = "I want you to recommend some movies for me to watch. " +
		"Here is the list of movies I have already seen along with my ratings:\n"
	promptRequest = "\n\nPlease recommend movies in the \"%s\" genre that I haven't seen yet, " +
		"preferably highly rated and similar in style or theme to the movies listed."
)

// ComposePrompt renders movies and a genre into recommendation prompt text.
// It is pure: equal inputs give equal output.
func ComposePrompt(movies []models.Movie, genre string) (string, error) {
	if len(movies) == 0 {
		return "", ErrNoMovies
	}

	genre = strings.TrimSpace(genre)
	if genre == "" {
		return "", ErrEmptyGenre
	}

	lines := make([]string, 0, len(movies))
	for _, movie := range movies {
		lines = append(lines, promptLine(movie))
	}

	var b strings.Builder
	b.WriteString(promptIntro)
	b.WriteString(strings.Join(lines, "\n"))
	fmt.Fprintf(&b, promptRequest, genre)
	return b.String(), nil
}

func promptLine(movie models.Movie) string {
	favorite := ""
	if movie.Favorite {
		favorite = ", FAVORITED"
	}
	return fmt.Sprintf("- \"%s\" (rated %d/10%s)", movie.Title, movie.Rating, favorite)
}
