package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amaumene/cinemaprompt/internal/models"
	"github.com/amaumene/cinemaprompt/internal/services/moviestore"
	"github.com/sirupsen/logrus"
)

// MovieStore is the persistence the movie list reads and writes through
type MovieStore interface {
	Subscribe(identityID string, onUpdate func([]models.Movie, uint64), onError func(error)) func()
	Add(ctx context.Context, identityID string, draft models.MovieDraft) error
	Update(ctx context.Context, identityID, movieID string, patch models.MoviePatch) error
	Remove(ctx context.Context, identityID, movieID string) error
	Revision(identityID string) uint64
}

// PosterResolver finds a poster URL for a title
type PosterResolver interface {
	ResolvePoster(ctx context.Context, title string) (string, bool)
}

// ListState is the lifecycle state of a movie list
type ListState string

const (
	StateUnauthenticated ListState = "unauthenticated"
	StateLoading         ListState = "loading"
	StateReady           ListState = "ready"
	StateError           ListState = "error"
)

// Snapshot is an immutable view of the list. Movies is nil unless the state
// is ready; Err is set only in the error state.
type Snapshot struct {
	State      ListState
	IdentityID string
	Movies     []models.Movie
	Err        error
}

// ListView is a filtered and sorted snapshot
type ListView struct {
	State  ListState      `json:"state"`
	Movies []models.Movie `json:"movies"`
	Years  []int          `json:"years"`
	Filter string         `json:"filter"`
	Sort   SortOrder      `json:"sort"`
	Error  string         `json:"error,omitempty"`
}

// pendingFavorite is a requested favorite value. writeRev is the store
// revision that includes the write, zero while the write is in flight.
type pendingFavorite struct {
	value    bool
	writeRev uint64
}

type listWatcher struct {
	id uint64
	fn func(Snapshot)
}

// MovieListController keeps the signed-in user's movies in sync with the
// store. It follows the session: every identity change disposes the previous
// feed, cancels poster lookups and starts over.
type MovieListController struct {
	session *SessionController
	store   MovieStore
	posters PosterResolver
	logger  *logrus.Logger

	lookups chan struct{}
	wg      sync.WaitGroup

	mu         sync.Mutex
	generation uint64
	state      ListState
	identityID string
	confirmed  []models.Movie
	revision   uint64
	cause      error
	dispose    func()
	ctx        context.Context
	cancel     context.CancelFunc

	pending   map[string]*pendingFavorite
	hidden    map[string]bool
	posterURL map[string]string
	attempted map[string]bool

	watchers  []listWatcher
	nextWatch uint64
	version   uint64

	// deliverMu orders watcher callbacks; delivered is the last version sent
	deliverMu sync.Mutex
	delivered uint64

	unlisten func()
	closed   bool
}

// NewMovieListController creates a list following session. At most
// concurrency poster lookups run at once.
func NewMovieListController(session *SessionController, store MovieStore, posters PosterResolver, concurrency int, logger *logrus.Logger) *MovieListController {
	if concurrency < 1 {
		concurrency = 1
	}

	m := &MovieListController{
		session: session,
		store:   store,
		posters: posters,
		logger:  logger,
		lookups: make(chan struct{}, concurrency),
		state:   StateUnauthenticated,
	}
	m.resetLocked()

	m.unlisten = session.OnChange(m.handleIdentityChange)

	// Pick up an identity that was signed in before the list existed
	if id, ok := session.Current(); ok {
		m.handleIdentityChange(IdentityChange{Identity: &id, Generation: session.Generation()})
	}

	return m
}

func (m *MovieListController) resetLocked() {
	m.confirmed = nil
	m.revision = 0
	m.cause = nil
	m.pending = make(map[string]*pendingFavorite)
	m.hidden = make(map[string]bool)
	m.posterURL = make(map[string]string)
	m.attempted = make(map[string]bool)
}

func (m *MovieListController) handleIdentityChange(change IdentityChange) {
	m.mu.Lock()
	if m.closed || change.Generation <= m.generation {
		m.mu.Unlock()
		return
	}
	m.generation = change.Generation
	dispose, cancel := m.dispose, m.cancel
	m.dispose, m.cancel = nil, nil
	m.mu.Unlock()

	// Release the old feed before its state goes away
	if cancel != nil {
		cancel()
	}
	if dispose != nil {
		dispose()
	}

	m.mu.Lock()
	if m.closed || m.generation != change.Generation {
		m.mu.Unlock()
		return
	}

	m.resetLocked()
	if change.Identity == nil {
		m.state = StateUnauthenticated
		m.identityID = ""
		m.ctx = nil
		update := m.publishLocked()
		m.mu.Unlock()

		m.logger.WithField("generation", change.Generation).Debug("Movie list cleared")
		m.deliver(update)
		return
	}

	identityID := change.Identity.ID
	generation := change.Generation
	m.state = StateLoading
	m.identityID = identityID
	m.ctx, m.cancel = context.WithCancel(context.Background())
	update := m.publishLocked()
	m.mu.Unlock()

	m.deliver(update)

	disposer := m.store.Subscribe(identityID,
		func(movies []models.Movie, revision uint64) { m.handleFeed(generation, movies, revision) },
		func(err error) { m.handleFeedError(generation, err) },
	)

	m.mu.Lock()
	if m.closed || m.generation != generation {
		m.mu.Unlock()
		disposer()
		return
	}
	m.dispose = disposer
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"identity":   identityID,
		"generation": generation,
	}).Debug("Movie list subscribed")
}

func (m *MovieListController) handleFeed(generation uint64, movies []models.Movie, revision uint64) {
	m.mu.Lock()
	if m.closed || m.generation != generation {
		m.mu.Unlock()
		return
	}

	m.confirmed = movies
	m.revision = revision
	m.state = StateReady
	m.cause = nil

	present := make(map[string]models.Movie, len(movies))
	for _, movie := range movies {
		present[movie.ID] = movie
	}

	for id, patch := range m.pending {
		movie, ok := present[id]
		// A list read after the write is authoritative
		written := patch.writeRev > 0 && revision >= patch.writeRev
		if !ok || written || movie.Favorite == patch.value {
			delete(m.pending, id)
		}
	}
	for id := range m.hidden {
		if _, ok := present[id]; !ok {
			delete(m.hidden, id)
		}
	}
	for id := range m.posterURL {
		if movie, ok := present[id]; !ok || movie.HasImage() {
			delete(m.posterURL, id)
		}
	}

	var missing []models.Movie
	for _, movie := range movies {
		if movie.HasImage() || m.attempted[movie.ID] {
			continue
		}
		m.attempted[movie.ID] = true
		missing = append(missing, movie)
	}
	m.wg.Add(len(missing))
	ctx := m.ctx

	update := m.publishLocked()
	m.mu.Unlock()

	m.deliver(update)

	for _, movie := range missing {
		go m.lookupPoster(ctx, generation, movie)
	}
}

func (m *MovieListController) handleFeedError(generation uint64, err error) {
	m.mu.Lock()
	if m.closed || m.generation != generation {
		m.mu.Unlock()
		return
	}

	m.state = StateError
	m.cause = err
	m.confirmed = nil
	identityID := m.identityID
	update := m.publishLocked()
	m.mu.Unlock()

	m.logger.WithError(err).WithField("identity", identityID).Error("Movie feed failed")
	m.deliver(update)
}

// lookupPoster resolves one missing poster and merges it if the result is
// still wanted
func (m *MovieListController) lookupPoster(ctx context.Context, generation uint64, movie models.Movie) {
	defer m.wg.Done()

	select {
	case m.lookups <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-m.lookups }()

	url, ok := m.posters.ResolvePoster(ctx, movie.Title)
	if !ok || ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	if m.closed || m.generation != generation {
		m.mu.Unlock()
		return
	}
	current, present := m.findLocked(movie.ID)
	if !present || current.HasImage() {
		m.mu.Unlock()
		return
	}
	m.posterURL[movie.ID] = url
	update := m.publishLocked()
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"movie": movie.ID,
		"title": movie.Title,
	}).Debug("Poster merged")
	m.deliver(update)
}

// ToggleFavorite flips a movie's favorite flag right away and persists it.
// It returns the new value. A failed write reverts the flag.
func (m *MovieListController) ToggleFavorite(ctx context.Context, movieID string) (bool, error) {
	m.mu.Lock()
	if m.state != StateReady {
		err := m.notReadyLocked("update")
		m.mu.Unlock()
		return false, err
	}
	movie, ok := m.findLocked(movieID)
	if !ok {
		m.mu.Unlock()
		return false, moviestore.NewError("update", moviestore.KindNotFound, fmt.Errorf("movie %s", movieID))
	}

	generation := m.generation
	identityID := m.identityID
	patch := &pendingFavorite{value: !m.displayLocked(movie).Favorite}
	m.pending[movieID] = patch
	update := m.publishLocked()
	m.mu.Unlock()

	m.deliver(update)

	value := patch.value
	err := m.store.Update(ctx, identityID, movieID, models.MoviePatch{Favorite: &value})
	var writeRev uint64
	if err == nil {
		writeRev = m.store.Revision(identityID)
	}

	m.mu.Lock()
	if m.closed || m.generation != generation || m.pending[movieID] != patch {
		// Superseded by a newer toggle or identity change
		m.mu.Unlock()
		if err != nil {
			return !value, err
		}
		return value, nil
	}
	if err != nil {
		delete(m.pending, movieID)
	} else if confirmed, ok := m.findLocked(movieID); !ok || confirmed.Favorite == value || m.revision >= writeRev {
		delete(m.pending, movieID)
	} else {
		patch.writeRev = writeRev
	}
	update = m.publishLocked()
	m.mu.Unlock()

	m.deliver(update)

	if err != nil {
		m.logger.WithError(err).WithField("movie", movieID).Warn("Favorite toggle reverted")
		return !value, err
	}
	return value, nil
}

// Delete removes a movie. It is hidden until the feed drops it and shown
// again if the removal fails.
func (m *MovieListController) Delete(ctx context.Context, movieID string) error {
	m.mu.Lock()
	if m.state != StateReady {
		err := m.notReadyLocked("remove")
		m.mu.Unlock()
		return err
	}
	if _, ok := m.findLocked(movieID); !ok {
		m.mu.Unlock()
		return moviestore.NewError("remove", moviestore.KindNotFound, fmt.Errorf("movie %s", movieID))
	}
	generation := m.generation
	identityID := m.identityID
	m.hidden[movieID] = true
	update := m.publishLocked()
	m.mu.Unlock()

	m.deliver(update)

	err := m.store.Remove(ctx, identityID, movieID)
	if err == nil {
		return nil
	}

	m.mu.Lock()
	if m.closed || m.generation != generation {
		m.mu.Unlock()
		return err
	}
	delete(m.hidden, movieID)
	update = m.publishLocked()
	m.mu.Unlock()

	m.deliver(update)
	return err
}

// Snapshot returns the current state
func (m *MovieListController) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// View returns the current movies filtered and sorted
func (m *MovieListController) View(filter Filter, order SortOrder) ListView {
	snap := m.Snapshot()

	view := ListView{
		State:  snap.State,
		Movies: SortMovies(FilterMovies(snap.Movies, filter), order),
		Years:  AvailableYears(snap.Movies),
		Filter: filter.String(),
		Sort:   order,
	}
	if view.Years == nil {
		view.Years = []int{}
	}
	if snap.Err != nil {
		view.Error = errorMessage(snap.Err)
	}
	return view
}

// Watch registers fn to receive every new snapshot. fn runs on the goroutine
// that caused the change and must not call back into the controller's
// mutating methods. The returned function stops delivery.
func (m *MovieListController) Watch(fn func(Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextWatch++
	id := m.nextWatch
	m.watchers = append(m.watchers, listWatcher{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, w := range m.watchers {
			if w.id == id {
				m.watchers = append(m.watchers[:i:i], m.watchers[i+1:]...)
				return
			}
		}
	}
}

// Close detaches from the session, disposes the feed and cancels lookups
func (m *MovieListController) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	dispose, cancel, unlisten := m.dispose, m.cancel, m.unlisten
	m.dispose, m.cancel = nil, nil
	m.watchers = nil
	m.mu.Unlock()

	if unlisten != nil {
		unlisten()
	}
	if cancel != nil {
		cancel()
	}
	if dispose != nil {
		dispose()
	}
}

// Wait blocks until every poster lookup started so far has finished
func (m *MovieListController) Wait() {
	m.wg.Wait()
}

func (m *MovieListController) notReadyLocked(op string) error {
	if m.identityID == "" {
		return moviestore.NewError(op, moviestore.KindUnauthenticated, nil)
	}
	return moviestore.NewError(op, moviestore.KindUnavailable, fmt.Errorf("movie list is %s", m.state))
}

func (m *MovieListController) findLocked(movieID string) (models.Movie, bool) {
	for _, movie := range m.confirmed {
		if movie.ID == movieID {
			return movie, true
		}
	}
	return models.Movie{}, false
}

// displayLocked overlays local state on a confirmed movie
func (m *MovieListController) displayLocked(movie models.Movie) models.Movie {
	if patch, ok := m.pending[movie.ID]; ok {
		movie.Favorite = patch.value
	}
	if url, ok := m.posterURL[movie.ID]; ok && !movie.HasImage() {
		movie.Image = url
	}
	return movie
}

func (m *MovieListController) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      m.state,
		IdentityID: m.identityID,
		Err:        m.cause,
	}
	if m.state != StateReady {
		return snap
	}

	snap.Movies = make([]models.Movie, 0, len(m.confirmed))
	for _, movie := range m.confirmed {
		if m.hidden[movie.ID] {
			continue
		}
		snap.Movies = append(snap.Movies, m.displayLocked(movie))
	}
	return snap
}

type listUpdate struct {
	version  uint64
	snap     Snapshot
	watchers []listWatcher
}

// publishLocked captures the state for delivery once the lock is released
func (m *MovieListController) publishLocked() listUpdate {
	m.version++
	watchers := make([]listWatcher, len(m.watchers))
	copy(watchers, m.watchers)
	return listUpdate{version: m.version, snap: m.snapshotLocked(), watchers: watchers}
}

// deliver sends an update to watchers unless a newer one already went out
func (m *MovieListController) deliver(update listUpdate) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	if update.version <= m.delivered {
		return
	}
	m.delivered = update.version
	for _, w := range update.watchers {
		w.fn(update.snap)
	}
}

func errorMessage(err error) string {
	var storeErr *moviestore.StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Message()
	}
	return err.Error()
}
