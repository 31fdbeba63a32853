package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amaumene/cinemaprompt/internal/api/handlers"
	"github.com/amaumene/cinemaprompt/internal/config"
	"github.com/amaumene/cinemaprompt/internal/controllers"
	"github.com/amaumene/cinemaprompt/internal/models"
	"github.com/amaumene/cinemaprompt/internal/services/identity"
	"github.com/amaumene/cinemaprompt/internal/services/moviestore"
	"github.com/amaumene/cinemaprompt/internal/services/tmdb"
	"github.com/amaumene/cinemaprompt/internal/utils"
	"github.com/gorilla/websocket"
)

type testServer struct {
	url      string
	registry *controllers.SessionRegistry
}

// newTestServer wires the real stack over a temp database and a fake TMDB
// that knows one poster
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithIdle(t, time.Hour)
}

func newTestServerWithIdle(t *testing.T, idle time.Duration) *testServer {
	t.Helper()
	logger := utils.NewDiscardLogger()

	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("query") == "Heat" {
			fmt.Fprint(w, `{"results":[{"id":949,"title":"Heat","poster_path":"/heat.jpg"}]}`)
			return
		}
		fmt.Fprint(w, `{"results":[]}`)
	}))
	t.Cleanup(catalog.Close)

	cfg := &config.Config{
		TMDBAPIKey:              "test-key",
		TMDBBaseURL:             catalog.URL,
		TMDBImageBaseURL:        "https://images.test/w500",
		PosterCacheMinutes:      5,
		PosterLookupConcurrency: 2,
		SignInAttemptsPerMinute: 5,
		ServerPort:              "0",
	}

	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	store := moviestore.NewAdapter(db, logger)
	provider := identity.NewProvider(cfg, db, logger)
	posters := tmdb.NewClient(cfg, logger)
	registry := controllers.NewSessionRegistry(provider, store, posters, cfg.PosterLookupConcurrency, idle, logger)

	server := httptest.NewServer(NewServer(cfg, registry, provider, logger).Handler())
	t.Cleanup(func() {
		server.Close()
		registry.Close()
		db.Close()
	})

	return &testServer{url: server.URL, registry: registry}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.url+path, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("Failed to decode %s: %v", data, err)
	}
	return v
}

func (s *testServer) signUp(t *testing.T, email string) string {
	t.Helper()
	status, data := s.do(t, http.MethodPost, "/api/auth/signup", "", handlers.SignUpRequest{
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Name:            "Tester",
	})
	if status != http.StatusCreated {
		t.Fatalf("Sign-up failed with %d: %s", status, data)
	}
	return decode[handlers.SessionResponse](t, data).Token
}

// waitForView polls the movie list until match accepts it
func (s *testServer) waitForView(t *testing.T, token, query string, match func(controllers.ListView) bool) controllers.ListView {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		status, data := s.do(t, http.MethodGet, "/api/movies"+query, token, nil)
		if status != http.StatusOK {
			t.Fatalf("List failed with %d: %s", status, data)
		}
		view := decode[controllers.ListView](t, data)
		if match(view) {
			return view
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for list, last view: %s", data)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func isReady(view controllers.ListView) bool {
	return view.State == controllers.StateReady
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	status, data := s.do(t, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK || !strings.Contains(string(data), `"healthy"`) {
		t.Fatalf("Unexpected health response %d: %s", status, data)
	}

	status, _ = s.do(t, http.MethodPost, "/health", "", nil)
	if status != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for POST /health, got %d", status)
	}
}

func TestRequiresToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/movies", "/api/stats"} {
		status, data := s.do(t, http.MethodGet, path, "unknown-token", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", path, status)
		}
		if resp := decode[handlers.ErrorResponse](t, data); resp.Error == "" {
			t.Errorf("GET %s: expected an error message", path)
		}
	}
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "taken@example.com")

	status, data := s.do(t, http.MethodPost, "/api/auth/login", "", handlers.LoginRequest{
		Email:    "taken@example.com",
		Password: "wrong-password",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d: %s", status, data)
	}
	if resp := decode[handlers.ErrorResponse](t, data); resp.Error != "Incorrect password." {
		t.Errorf("Unexpected message %q", resp.Error)
	}

	status, data = s.do(t, http.MethodPost, "/api/auth/login", "", handlers.LoginRequest{
		Email:    "nobody@example.com",
		Password: "secret1",
	})
	if resp := decode[handlers.ErrorResponse](t, data); status != http.StatusUnauthorized || resp.Error != "No user found with this email." {
		t.Errorf("Unexpected unknown-user response %d: %s", status, data)
	}

	status, _ = s.do(t, http.MethodPost, "/api/auth/signup", "", handlers.SignUpRequest{
		Email: "new@example.com", Password: "secret1", ConfirmPassword: "secret2", Name: "New",
	})
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 for mismatched passwords, got %d", status)
	}

	status, _ = s.do(t, http.MethodPost, "/api/auth/signup", "", handlers.SignUpRequest{
		Email: "taken@example.com", Password: "secret1", ConfirmPassword: "secret1", Name: "Again",
	})
	if status != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate email, got %d", status)
	}
}

func TestMovieFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "flow@example.com")

	// An empty collection cannot produce a prompt
	s.waitForView(t, token, "", isReady)
	status, data := s.do(t, http.MethodPost, "/api/prompt", token, handlers.PromptRequest{Genre: "drama"})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422 for empty collection, got %d: %s", status, data)
	}
	if resp := decode[handlers.ErrorResponse](t, data); resp.Error != "You don't have any watched movies saved yet." {
		t.Errorf("Unexpected message %q", resp.Error)
	}

	status, data = s.do(t, http.MethodPost, "/api/movies", token, map[string]interface{}{
		"title":       "Heat",
		"rating":      9,
		"type":        "watched",
		"watchedDate": "2023-04-01",
	})
	if status != http.StatusCreated {
		t.Fatalf("Add failed with %d: %s", status, data)
	}

	// The poster is resolved and merged after the feed delivers the movie
	view := s.waitForView(t, token, "", func(v controllers.ListView) bool {
		return len(v.Movies) == 1 && v.Movies[0].Image != ""
	})
	heat := view.Movies[0]
	if heat.Image != "https://images.test/w500/heat.jpg" {
		t.Errorf("Unexpected poster %q", heat.Image)
	}

	status, data = s.do(t, http.MethodPost, "/api/movies/"+heat.ID+"/favorite", token, nil)
	if status != http.StatusOK || !decode[handlers.FavoriteResponse](t, data).Favorite {
		t.Fatalf("Toggle failed with %d: %s", status, data)
	}
	s.waitForView(t, token, "?filter=favorites", func(v controllers.ListView) bool {
		return len(v.Movies) == 1
	})

	status, data = s.do(t, http.MethodGet, "/api/stats", token, nil)
	stats := decode[handlers.StatsResponse](t, data)
	if status != http.StatusOK || stats.Total != 1 || stats.Favorites != 1 || len(stats.Years) != 1 || stats.Years[0] != 2023 {
		t.Errorf("Unexpected stats %d: %s", status, data)
	}

	status, data = s.do(t, http.MethodPost, "/api/prompt", token, handlers.PromptRequest{Genre: "thriller"})
	if status != http.StatusOK {
		t.Fatalf("Prompt failed with %d: %s", status, data)
	}
	prompt := decode[handlers.PromptResponse](t, data).Prompt
	if !strings.Contains(prompt, `- "Heat" (rated 9/10, FAVORITED)`) || !strings.Contains(prompt, `"thriller" genre`) {
		t.Errorf("Unexpected prompt: %s", prompt)
	}

	status, _ = s.do(t, http.MethodDelete, "/api/movies/"+heat.ID, token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("Delete failed with %d", status)
	}
	s.waitForView(t, token, "", func(v controllers.ListView) bool {
		return isReady(v) && len(v.Movies) == 0
	})
}

func TestAddMovieValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "form@example.com")

	status, data := s.do(t, http.MethodPost, "/api/movies", token, map[string]interface{}{
		"title":       "",
		"rating":      12,
		"type":        "watched",
		"watchedDate": "yesterday",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", status, data)
	}
	resp := decode[handlers.ErrorResponse](t, data)
	if len(resp.Fields) != 3 {
		t.Errorf("Expected 3 invalid fields, got %+v", resp.Fields)
	}
}

func TestListQueryValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "query@example.com")

	if status, _ := s.do(t, http.MethodGet, "/api/movies?filter=someday", token, nil); status != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown filter, got %d", status)
	}
	if status, _ := s.do(t, http.MethodGet, "/api/movies?sort=random", token, nil); status != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown sort, got %d", status)
	}
}

func TestMoviesArePrivate(t *testing.T) {
	s := newTestServer(t)
	owner := s.signUp(t, "owner@example.com")
	other := s.signUp(t, "other@example.com")

	s.do(t, http.MethodPost, "/api/movies", owner, map[string]interface{}{
		"title": "Ran", "rating": 8, "type": "watchlist", "watchedDate": "2022-01-01",
	})
	view := s.waitForView(t, owner, "", func(v controllers.ListView) bool { return len(v.Movies) == 1 })

	otherView := s.waitForView(t, other, "", isReady)
	if len(otherView.Movies) != 0 {
		t.Fatalf("Expected other user to see nothing, got %+v", otherView.Movies)
	}

	status, _ := s.do(t, http.MethodDelete, "/api/movies/"+view.Movies[0].ID, other, nil)
	if status != http.StatusNotFound {
		t.Errorf("Expected 404 deleting a movie outside the caller's list, got %d", status)
	}
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "bye@example.com")

	if status, _ := s.do(t, http.MethodPost, "/api/auth/logout", token, nil); status != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", status)
	}
	if status, _ := s.do(t, http.MethodGet, "/api/movies", token, nil); status != http.StatusUnauthorized {
		t.Errorf("Expected 401 after logout, got %d", status)
	}
	if status, _ := s.do(t, http.MethodPost, "/api/auth/logout", token, nil); status != http.StatusUnauthorized {
		t.Errorf("Expected 401 for second logout, got %d", status)
	}
}

func TestLiveUpdates(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "live@example.com")

	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/api/live?sort=oldest"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Dial failed: %v (response %+v)", err, resp)
	}
	defer conn.Close()

	read := func() handlers.LiveMessage {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var msg handlers.LiveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Failed to read live message: %v", err)
		}
		return msg
	}

	first := read()
	if first.Type != "state" || first.Payload.Sort != controllers.SortOldest {
		t.Fatalf("Unexpected first message: %+v", first)
	}

	s.do(t, http.MethodPost, "/api/movies", token, map[string]interface{}{
		"title": "Alien", "rating": 8, "type": "watched", "watchedDate": "1999-09-09",
	})

	for {
		msg := read()
		if len(msg.Payload.Movies) == 1 {
			if msg.Payload.Movies[0].Title != "Alien" {
				t.Fatalf("Unexpected movie pushed: %+v", msg.Payload.Movies[0])
			}
			return
		}
	}
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "Me@Example.com")

	status, data := s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", status, data)
	}
	profile := decode[identity.Identity](t, data)
	if profile.Email != "me@example.com" || profile.Name != "Tester" || profile.ID == "" {
		t.Errorf("Unexpected profile %+v", profile)
	}

	if status, _ := s.do(t, http.MethodGet, "/api/auth/me", "", nil); status != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", status)
	}
}

// dialLive opens /api/live for token
func (s *testServer) dialLive(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/api/live"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Dial failed: %v (response %+v)", err, resp)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestLiveClosesAfterLogout(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp(t, "leaving@example.com")
	conn := s.dialLive(t, token)

	if status, _ := s.do(t, http.MethodPost, "/api/auth/logout", token, nil); status != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", status)
	}

	sawSignedOut := false
	for {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var msg handlers.LiveMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("Expected a normal close, got %v", err)
			}
			break
		}
		if msg.Payload.State == controllers.StateUnauthenticated {
			sawSignedOut = true
		}
	}
	if !sawSignedOut {
		t.Error("Expected an unauthenticated push before the close")
	}
}

func TestLiveKeepsSessionAlive(t *testing.T) {
	s := newTestServerWithIdle(t, 400*time.Millisecond)
	token := s.signUp(t, "watcher@example.com")
	s.dialLive(t, token)

	// Only the socket is open for longer than the idle timeout
	time.Sleep(1200 * time.Millisecond)

	if status, data := s.do(t, http.MethodGet, "/api/movies", token, nil); status != http.StatusOK {
		t.Fatalf("Expected the watched session to stay signed in, got %d: %s", status, data)
	}
}

func TestLiveRequiresToken(t *testing.T) {
	s := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/api/live"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("Expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %+v", resp)
	}
}
