package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/amaumene/cinemaprompt/internal/controllers"
	"github.com/sirupsen/logrus"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	registry *controllers.SessionRegistry
	logger   *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(registry *controllers.SessionRegistry, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{registry: registry, logger: logger}
}

// ServeHTTP handles the health check endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":   "healthy",
		"sessions": h.registry.Count(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
