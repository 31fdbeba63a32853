package handlers

import (
	"net/http"

	"github.com/amaumene/cinemaprompt/internal/controllers"
	"github.com/sirupsen/logrus"
)

// StatsHandler handles collection statistics requests
type StatsHandler struct {
	registry *controllers.SessionRegistry
	logger   *logrus.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(registry *controllers.SessionRegistry, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{
		registry: registry,
		logger:   logger,
	}
}

// StatsResponse represents the stats response
type StatsResponse struct {
	State controllers.ListState `json:"state"`
	controllers.MovieStats
	Years []int `json:"years"`
}

// ServeHTTP handles GET /api/stats
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	withClient(h.registry, func(w http.ResponseWriter, r *http.Request, client *controllers.ClientSession) {
		snap := client.Movies.Snapshot()

		response := StatsResponse{
			State:      snap.State,
			MovieStats: controllers.Stats(snap.Movies),
			Years:      controllers.AvailableYears(snap.Movies),
		}
		if response.Years == nil {
			response.Years = []int{}
		}

		writeJSON(w, http.StatusOK, response)
	})(w, r)
}
