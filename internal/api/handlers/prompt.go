package handlers

import (
	"net/http"

	"github.com/amaumene/cinemaprompt/internal/controllers"
	"github.com/sirupsen/logrus"
)

// PromptHandler renders recommendation prompts
type PromptHandler struct {
	registry *controllers.SessionRegistry
	logger   *logrus.Logger
}

// NewPromptHandler creates a new prompt handler
func NewPromptHandler(registry *controllers.SessionRegistry, logger *logrus.Logger) *PromptHandler {
	return &PromptHandler{
		registry: registry,
		logger:   logger,
	}
}

// PromptRequest is the body of POST /api/prompt
type PromptRequest struct {
	Genre string `json:"genre"`
}

// PromptResponse carries the rendered prompt
type PromptResponse struct {
	Prompt string `json:"prompt"`
}

// ServeHTTP handles POST /api/prompt
func (h *PromptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	withClient(h.registry, h.compose)(w, r)
}

func (h *PromptHandler) compose(w http.ResponseWriter, r *http.Request, client *controllers.ClientSession) {
	var req PromptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-body", "Invalid request body")
		return
	}

	snap := client.Movies.Snapshot()
	switch snap.State {
	case controllers.StateReady:
	case controllers.StateError:
		writeFailure(w, h.logger, snap.Err)
		return
	default:
		writeError(w, http.StatusServiceUnavailable, string(snap.State), "Loading your movies...")
		return
	}

	prompt, err := controllers.ComposePrompt(snap.Movies, req.Genre)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"identity": snap.IdentityID,
		"movies":   len(snap.Movies),
	}).Debug("Prompt generated")

	writeJSON(w, http.StatusOK, PromptResponse{Prompt: prompt})
}
