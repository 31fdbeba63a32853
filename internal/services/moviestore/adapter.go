package moviestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/amaumene/cinemaprompt/internal/metrics"
	"github.com/amaumene/cinemaprompt/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Adapter exposes an identity's movie collection (users/{id}/movies) and
// publishes live feeds of it. Every write goes through the adapter so feeds
// observe it. The adapter never retries.
type Adapter struct {
	db     *models.Database
	feeds  *feedHub
	logger *logrus.Logger

	// serializes read-modify-write updates
	writeMu sync.Mutex
}

// NewAdapter creates a new store adapter
func NewAdapter(db *models.Database, logger *logrus.Logger) *Adapter {
	return &Adapter{
		db:     db,
		feeds:  newFeedHub(),
		logger: logger,
	}
}

// Subscribe opens a live feed of identityID's movies, newest first. onUpdate
// receives the full list right away and after every change, together with
// the revision the list was read at: it reflects every write whose Revision
// is at most that value. The returned disposer releases the feed; calling it
// more than once is harmless and no callback runs after it returns.
func (a *Adapter) Subscribe(identityID string, onUpdate func([]models.Movie, uint64), onError func(error)) func() {
	if identityID == "" {
		metrics.StoreOperations.WithLabelValues("subscribe", "error").Inc()
		if onError != nil {
			go onError(NewError("subscribe", KindUnauthenticated, nil))
		}
		return func() {}
	}

	sub := newSubscription(identityID, onUpdate, onError)
	a.feeds.add(sub)
	sub.poke()
	go sub.run(a.loadFeed)

	metrics.StoreOperations.WithLabelValues("subscribe", "ok").Inc()
	a.logger.WithField("identity", identityID).Debug("Live feed opened")

	return func() {
		if sub.dispose() {
			a.feeds.remove(sub)
			a.logger.WithField("identity", identityID).Debug("Live feed closed")
		}
	}
}

// Revision returns how many writes to identityID's collection have committed.
// A feed update read at this revision or later includes all of them.
func (a *Adapter) Revision(identityID string) uint64 {
	return a.feeds.revision(identityID)
}

// loadFeed takes the revision before reading, so the list is never older
// than the revision it reports
func (a *Adapter) loadFeed(identityID string) ([]models.Movie, uint64, error) {
	revision := a.feeds.revision(identityID)
	movies, err := a.load(identityID)
	return movies, revision, err
}

// load reads the ordered collection for a feed
func (a *Adapter) load(identityID string) ([]models.Movie, error) {
	docs, err := a.db.GetMoviesByOwner(identityID)
	if err != nil {
		return nil, NewError("subscribe", KindUnavailable, err)
	}

	movies := make([]models.Movie, 0, len(docs))
	for _, doc := range docs {
		movies = append(movies, doc.ToMovie())
	}
	return movies, nil
}

// Add persists a new movie. The store assigns id, createdAt and favorite=false.
func (a *Adapter) Add(ctx context.Context, identityID string, draft models.MovieDraft) (err error) {
	defer func() { metrics.StoreOperations.WithLabelValues("add", metrics.Outcome(err)).Inc() }()

	if identityID == "" {
		return NewError("add", KindUnauthenticated, nil)
	}
	if err := ctx.Err(); err != nil {
		return NewError("add", KindUnavailable, err)
	}
	if err := validateDraft(draft); err != nil {
		return NewError("add", KindInvalid, err)
	}

	doc := &models.MovieDocument{
		ID:          uuid.NewString(),
		OwnerID:     identityID,
		Title:       strings.TrimSpace(draft.Title),
		Rating:      draft.Rating,
		Image:       strings.TrimSpace(draft.Image),
		Type:        draft.Type,
		WatchedDate: draft.WatchedDate,
		Favorite:    false,
	}

	if err := a.db.InsertMovie(doc); err != nil {
		return NewError("add", KindUnavailable, err)
	}

	a.logger.WithFields(logrus.Fields{
		"identity": identityID,
		"path":     doc.Path(),
		"title":    doc.Title,
	}).Info("Movie added")

	a.feeds.notify(identityID)
	return nil
}

// Update applies a partial update to one of identityID's movies
func (a *Adapter) Update(ctx context.Context, identityID, movieID string, patch models.MoviePatch) (err error) {
	defer func() { metrics.StoreOperations.WithLabelValues("update", metrics.Outcome(err)).Inc() }()

	if identityID == "" {
		return NewError("update", KindUnauthenticated, nil)
	}
	if err := ctx.Err(); err != nil {
		return NewError("update", KindUnavailable, err)
	}
	if patch.IsEmpty() {
		return nil
	}

	a.writeMu.Lock()
	doc, err := a.owned("update", identityID, movieID)
	if err != nil {
		a.writeMu.Unlock()
		return err
	}

	doc.Apply(patch)
	if err := a.db.UpdateMovie(doc); err != nil {
		a.writeMu.Unlock()
		return NewError("update", KindUnavailable, err)
	}
	a.writeMu.Unlock()

	a.logger.WithFields(logrus.Fields{
		"identity": identityID,
		"movie_id": movieID,
	}).Debug("Movie updated")

	a.feeds.notify(identityID)
	return nil
}

// Remove permanently deletes one of identityID's movies
func (a *Adapter) Remove(ctx context.Context, identityID, movieID string) (err error) {
	defer func() { metrics.StoreOperations.WithLabelValues("remove", metrics.Outcome(err)).Inc() }()

	if identityID == "" {
		return NewError("remove", KindUnauthenticated, nil)
	}
	if err := ctx.Err(); err != nil {
		return NewError("remove", KindUnavailable, err)
	}

	a.writeMu.Lock()
	if _, err := a.owned("remove", identityID, movieID); err != nil {
		a.writeMu.Unlock()
		return err
	}
	if err := a.db.DeleteMovie(movieID); err != nil {
		a.writeMu.Unlock()
		return NewError("remove", KindUnavailable, err)
	}
	a.writeMu.Unlock()

	a.logger.WithFields(logrus.Fields{
		"identity": identityID,
		"movie_id": movieID,
	}).Info("Movie removed")

	a.feeds.notify(identityID)
	return nil
}

// Get reads one of identityID's movies
func (a *Adapter) Get(ctx context.Context, identityID, movieID string) (models.Movie, error) {
	if identityID == "" {
		return models.Movie{}, NewError("get", KindUnauthenticated, nil)
	}
	if err := ctx.Err(); err != nil {
		return models.Movie{}, NewError("get", KindUnavailable, err)
	}

	doc, err := a.owned("get", identityID, movieID)
	if err != nil {
		return models.Movie{}, err
	}
	return doc.ToMovie(), nil
}

// List reads identityID's movies once, newest first
func (a *Adapter) List(ctx context.Context, identityID string) ([]models.Movie, error) {
	if identityID == "" {
		return nil, NewError("list", KindUnauthenticated, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewError("list", KindUnavailable, err)
	}

	movies, err := a.load(identityID)
	if err != nil {
		var storeErr *StoreError
		if errors.As(err, &storeErr) {
			storeErr.Op = "list"
		}
		return nil, err
	}
	return movies, nil
}

// owned loads a movie and checks it belongs to identityID
func (a *Adapter) owned(op, identityID, movieID string) (*models.MovieDocument, error) {
	if movieID == "" {
		return nil, NewError(op, KindInvalid, errors.New("movie id is required"))
	}

	doc, err := a.db.GetMovie(movieID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, NewError(op, KindNotFound, err)
	}
	if err != nil {
		return nil, NewError(op, KindUnavailable, err)
	}
	if doc.OwnerID != identityID {
		a.logger.WithFields(logrus.Fields{
			"identity": identityID,
			"movie_id": movieID,
			"op":       op,
		}).Warn("Rejected access to another identity's movie")
		return nil, NewError(op, KindPermissionDenied, nil)
	}
	return doc, nil
}

// validateDraft rejects drafts that cannot be stored
func validateDraft(draft models.MovieDraft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return errors.New("title is required")
	}
	if draft.Rating < models.MinRating || draft.Rating > models.MaxRating {
		return fmt.Errorf("rating must be between %d and %d", models.MinRating, models.MaxRating)
	}
	if !draft.Type.Valid() {
		return fmt.Errorf("type must be %q or %q", models.MovieTypeWatched, models.MovieTypeWatchlist)
	}
	if strings.TrimSpace(draft.WatchedDate) == "" {
		return errors.New("watched date is required")
	}
	return nil
}
