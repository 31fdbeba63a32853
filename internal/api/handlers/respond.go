package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/amaumene/cinemaprompt/internal/controllers"
	"github.com/amaumene/cinemaprompt/internal/services/identity"
	"github.com/amaumene/cinemaprompt/internal/services/moviestore"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error  string                   `json:"error"`
	Code   string                   `json:"code,omitempty"`
	Fields []controllers.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeFailure maps a domain error to a status code and user-facing message
func writeFailure(w http.ResponseWriter, logger *logrus.Logger, err error) {
	var (
		formErr   *controllers.FormError
		promptErr *controllers.PromptError
		authErr   *identity.AuthError
		storeErr  *moviestore.StoreError
	)

	switch {
	case errors.As(err, &formErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "Please fix the highlighted fields.",
			Code:   "invalid-form",
			Fields: formErr.Fields,
		})
	case errors.As(err, &promptErr):
		writeError(w, http.StatusUnprocessableEntity, promptErr.Code, promptErr.Message)
	case errors.As(err, &authErr):
		writeError(w, authStatus(authErr.Code), string(authErr.Code), authErr.Message())
	case errors.As(err, &storeErr):
		status := storeStatus(storeErr.Kind)
		if status >= http.StatusInternalServerError {
			logger.WithError(err).Error("Store request failed")
		}
		writeError(w, status, string(storeErr.Kind), storeErr.Message())
	default:
		logger.WithError(err).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error")
	}
}

func authStatus(code identity.ErrorCode) int {
	switch code {
	case identity.CodeUserNotFound, identity.CodeWrongPassword:
		return http.StatusUnauthorized
	case identity.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case identity.CodeEmailInUse:
		return http.StatusConflict
	case identity.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func storeStatus(kind moviestore.ErrorKind) int {
	switch kind {
	case moviestore.KindUnauthenticated:
		return http.StatusUnauthorized
	case moviestore.KindNotFound:
		return http.StatusNotFound
	case moviestore.KindPermissionDenied:
		return http.StatusForbidden
	case moviestore.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

// bearerToken extracts the token of an "Authorization: Bearer" header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// clientHandlerFunc serves a request on behalf of a signed-in client
type clientHandlerFunc func(w http.ResponseWriter, r *http.Request, client *controllers.ClientSession)

// withClient resolves the bearer token to a client session or answers 401
func withClient(registry *controllers.SessionRegistry, next clientHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, ok := registry.Get(bearerToken(r))
		if !ok {
			writeError(w, http.StatusUnauthorized, string(moviestore.KindUnauthenticated), "Please log in to manage your movies.")
			return
		}
		next(w, r, client)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
