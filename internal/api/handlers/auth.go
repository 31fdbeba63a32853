package handlers

import (
	"context"
	"net/http"

	"github.com/amaumene/cinemaprompt/internal/controllers"
	"github.com/amaumene/cinemaprompt/internal/services/identity"
	"github.com/sirupsen/logrus"
)

// ProfileReader loads the stored profile of an identity
type ProfileReader interface {
	Profile(ctx context.Context, id string) (identity.Identity, error)
}

// AuthHandler handles sign-up, login, logout and the caller's profile
type AuthHandler struct {
	registry *controllers.SessionRegistry
	profiles ProfileReader
	logger   *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(registry *controllers.SessionRegistry, profiles ProfileReader, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		registry: registry,
		profiles: profiles,
		logger:   logger,
	}
}

// SignUpRequest is the body of POST /api/auth/signup
type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Name            string `json:"name"`
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries the bearer token of a new client session
type SessionResponse struct {
	Token    string            `json:"token"`
	Identity identity.Identity `json:"identity"`
}

// SignUp registers a user and opens a session for them
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-body", "Invalid request body")
		return
	}

	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, string(identity.CodeInvalidInput), "Passwords don't match.")
		return
	}

	client, id, err := h.registry.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, SessionResponse{Token: client.Token, Identity: id})
}

// Login opens a session for an existing user
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid-body", "Invalid request body")
		return
	}

	client, id, err := h.registry.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeFailure(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{Token: client.Token, Identity: id})
}

// Logout closes the caller's session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if !h.registry.SignOut(bearerToken(r)) {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "Please log in to manage your movies.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in caller's profile as stored at users/{id}
func (h *AuthHandler) Me() http.HandlerFunc {
	return withClient(h.registry, func(w http.ResponseWriter, r *http.Request, client *controllers.ClientSession) {
		current, ok := client.Session.Current()
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "Please log in to manage your movies.")
			return
		}

		profile, err := h.profiles.Profile(r.Context(), current.ID)
		if err != nil {
			h.logger.WithError(err).WithField("identity", current.ID).Error("Failed to load profile")
			writeError(w, http.StatusServiceUnavailable, "unavailable", "Could not load your profile.")
			return
		}

		writeJSON(w, http.StatusOK, profile)
	})
}
