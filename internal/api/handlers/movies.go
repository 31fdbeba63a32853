package handlers

import (
	"net/http"

	"github.com/amaumene/cinemaprompt/internal/controllers"
	"github.com/sirupsen/logrus"
)

// MoviesHandler serves the signed-in user's movie list
type MoviesHandler struct {
	registry *controllers.SessionRegistry
	logger   *logrus.Logger
}

// NewMoviesHandler creates a new movies handler
func NewMoviesHandler(registry *controllers.SessionRegistry, logger *logrus.Logger) *MoviesHandler {
	return &MoviesHandler{
		registry: registry,
		logger:   logger,
	}
}

// FavoriteResponse is the result of a favorite toggle
type FavoriteResponse struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

// List handles GET /api/movies?filter=&sort=
func (h *MoviesHandler) List() http.HandlerFunc {
	return withClient(h.registry, func(w http.ResponseWriter, r *http.Request, client *controllers.ClientSession) {
		filter, order, ok := parseViewQuery(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, client.Movies.View(filter, order))
	})
}

// Add handles POST /api/movies
func (h *MoviesHandler) Add() http.HandlerFunc {
	return withClient(h.registry, func(w http.ResponseWriter, r *http.Request, client *controllers.ClientSession) {
		form := controllers.NewMovieForm()
		if err := decodeJSON(w, r, &form); err != nil {
			writeError(w, http.StatusBadRequest, "invalid-body", "Invalid request body")
			return
		}

		if err := client.AddMovie.Submit(r.Context(), form); err != nil {
			writeFailure(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
	})
}

// ToggleFavorite handles POST /api/movies/{id}/favorite
func (h *MoviesHandler) ToggleFavorite() http.HandlerFunc {
	return withClient(h.registry, func(w http.ResponseWriter, r *http.Request, client *controllers.ClientSession) {
		movieID := r.PathValue("id")

		favorite, err := client.Movies.ToggleFavorite(r.Context(), movieID)
		if err != nil {
			writeFailure(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, FavoriteResponse{ID: movieID, Favorite: favorite})
	})
}

// Delete handles DELETE /api/movies/{id}
func (h *MoviesHandler) Delete() http.HandlerFunc {
	return withClient(h.registry, func(w http.ResponseWriter, r *http.Request, client *controllers.ClientSession) {
		if err := client.Movies.Delete(r.Context(), r.PathValue("id")); err != nil {
			writeFailure(w, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// parseViewQuery reads the filter and sort query parameters, answering 400
// when either is unknown
func parseViewQuery(w http.ResponseWriter, r *http.Request) (controllers.Filter, controllers.SortOrder, bool) {
	query := r.URL.Query()

	filter, err := controllers.ParseFilter(query.Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid-filter", err.Error())
		return controllers.Filter{}, "", false
	}
	order, err := controllers.ParseSortOrder(query.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid-sort", err.Error())
		return controllers.Filter{}, "", false
	}
	return filter, order, true
}
