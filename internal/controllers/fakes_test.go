package controllers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/amaumene/cinemaprompt/internal/models"
	"github.com/amaumene/cinemaprompt/internal/services/identity"
	"github.com/amaumene/cinemaprompt/internal/utils"
)

// fakeProvider signs in any email whose password is "secret"
type fakeProvider struct{}

func (fakeProvider) SignIn(ctx context.Context, email, password string) (identity.Identity, error) {
	if password != "secret" {
		return identity.Identity{}, &identity.AuthError{Code: identity.CodeWrongPassword}
	}
	return identity.Identity{ID: "id-" + email, Email: email}, nil
}

func (fakeProvider) SignUp(ctx context.Context, email, password, displayName string) (identity.Identity, error) {
	return identity.Identity{ID: "id-" + email, Email: email, Name: displayName}, nil
}

func newTestSession() *SessionController {
	return NewSessionController(fakeProvider{}, utils.NewDiscardLogger())
}

func signIn(t testing.TB, s *SessionController, email string) {
	t.Helper()
	if _, err := s.SignIn(context.Background(), email, "secret"); err != nil {
		t.Fatalf("SignIn(%s) failed: %v", email, err)
	}
}

type fakeSub struct {
	identityID string
	onUpdate   func([]models.Movie, uint64)
	onError    func(error)
	disposed   int
}

// fakeStore delivers feed updates only when the test calls emit. Every
// successful write bumps its revision.
type fakeStore struct {
	mu       sync.Mutex
	revision uint64
	subs     []*fakeSub
	drafts   []models.MovieDraft
	patches  map[string][]models.MoviePatch
	removed  []string

	addErr     error
	updateErr  error
	removeErr  error
	updateHook func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{patches: make(map[string][]models.MoviePatch)}
}

func (f *fakeStore) Subscribe(identityID string, onUpdate func([]models.Movie, uint64), onError func(error)) func() {
	f.mu.Lock()
	sub := &fakeSub{identityID: identityID, onUpdate: onUpdate, onError: onError}
	f.subs = append(f.subs, sub)
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		sub.disposed++
	}
}

func (f *fakeStore) Add(ctx context.Context, identityID string, draft models.MovieDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.drafts = append(f.drafts, draft)
	f.revision++
	return nil
}

func (f *fakeStore) Update(ctx context.Context, identityID, movieID string, patch models.MoviePatch) error {
	f.mu.Lock()
	hook := f.updateHook
	err := f.updateErr
	if err == nil {
		f.patches[movieID] = append(f.patches[movieID], patch)
		f.revision++
	}
	f.mu.Unlock()

	// hook runs after the write committed but before Update returns
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeStore) Remove(ctx context.Context, identityID, movieID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, movieID)
	f.revision++
	return nil
}

func (f *fakeStore) Revision(identityID string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revision
}

// latest returns the newest subscription for identityID
func (f *fakeStore) latest(identityID string) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.subs) - 1; i >= 0; i-- {
		if f.subs[i].identityID == identityID {
			return f.subs[i]
		}
	}
	return nil
}

// emit delivers movies as read at the current revision
func (f *fakeStore) emit(identityID string, movies []models.Movie) {
	f.emitAt(identityID, movies, f.Revision(identityID))
}

// emitAt delivers movies as read at revision
func (f *fakeStore) emitAt(identityID string, movies []models.Movie, revision uint64) {
	sub := f.latest(identityID)
	if sub == nil {
		panic("no subscription for " + identityID)
	}
	sub.onUpdate(movies, revision)
}

func (f *fakeStore) fail(identityID string, err error) {
	f.latest(identityID).onError(err)
}

// active counts subscriptions that were never disposed
func (f *fakeStore) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sub := range f.subs {
		if sub.disposed == 0 {
			n++
		}
	}
	return n
}

func (f *fakeStore) all() []*fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSub(nil), f.subs...)
}

// fakePosters resolves titles from a map. When block is set, lookups wait
// for it to close or for their context to end.
type fakePosters struct {
	mu       sync.Mutex
	urls     map[string]string
	calls    []string
	canceled int
	block    chan struct{}
}

func (f *fakePosters) ResolvePoster(ctx context.Context, title string) (string, bool) {
	f.mu.Lock()
	f.calls = append(f.calls, title)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			f.mu.Lock()
			f.canceled++
			f.mu.Unlock()
			return "", false
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	url, ok := f.urls[title]
	return url, ok
}

func (f *fakePosters) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var errBoom = errors.New("boom")

func movie(id, title, date string) models.Movie {
	return models.Movie{
		ID:          id,
		Title:       title,
		Rating:      7,
		Image:       "https://img.example/" + id + ".jpg",
		Type:        models.MovieTypeWatched,
		WatchedDate: date,
	}
}
