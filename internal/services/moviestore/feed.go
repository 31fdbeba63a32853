package moviestore

import (
	"sync"

	"github.com/amaumene/cinemaprompt/internal/metrics"
	"github.com/amaumene/cinemaprompt/internal/models"
)

// subscription is one live feed. Change signals are coalesced: the feed
// goroutine always reads the latest collection, in order, one at a time.
type subscription struct {
	ownerID  string
	onUpdate func([]models.Movie, uint64)
	onError  func(error)

	signal chan struct{}
	done   chan struct{}
	once   sync.Once

	// held across every callback so the disposer waits for one in progress
	callbackMu sync.Mutex
	disposed   bool
}

func newSubscription(ownerID string, onUpdate func([]models.Movie, uint64), onError func(error)) *subscription {
	return &subscription{
		ownerID:  ownerID,
		onUpdate: onUpdate,
		onError:  onError,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// poke schedules a re-read without blocking the writer
func (s *subscription) poke() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) run(load func(ownerID string) ([]models.Movie, uint64, error)) {
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		movies, revision, err := load(s.ownerID)
		if !s.deliver(movies, revision, err) {
			return
		}
	}
}

// deliver runs one callback unless the feed was disposed
func (s *subscription) deliver(movies []models.Movie, revision uint64, err error) bool {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()

	if s.disposed {
		return false
	}
	if err != nil {
		if s.onError != nil {
			s.onError(err)
		}
		return true
	}
	s.onUpdate(movies, revision)
	return true
}

// dispose stops the feed. It blocks while a callback is running, so it must
// not be called from inside one.
func (s *subscription) dispose() bool {
	first := false
	s.once.Do(func() {
		first = true
		close(s.done)
	})
	if !first {
		return false
	}

	s.callbackMu.Lock()
	s.disposed = true
	s.callbackMu.Unlock()
	return true
}

// feedHub tracks live feeds and the write revision per owner
type feedHub struct {
	mu        sync.Mutex
	subs      map[string]map[*subscription]struct{}
	revisions map[string]uint64
}

func newFeedHub() *feedHub {
	return &feedHub{
		subs:      make(map[string]map[*subscription]struct{}),
		revisions: make(map[string]uint64),
	}
}

func (h *feedHub) add(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	owned, ok := h.subs[sub.ownerID]
	if !ok {
		owned = make(map[*subscription]struct{})
		h.subs[sub.ownerID] = owned
	}
	owned[sub] = struct{}{}
	metrics.LiveFeeds.Inc()
}

func (h *feedHub) remove(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	owned, ok := h.subs[sub.ownerID]
	if !ok {
		return
	}
	if _, ok := owned[sub]; !ok {
		return
	}
	delete(owned, sub)
	if len(owned) == 0 {
		delete(h.subs, sub.ownerID)
	}
	metrics.LiveFeeds.Dec()
}

// notify records a committed write and wakes every feed of ownerID
func (h *feedHub) notify(ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.revisions[ownerID]++
	for sub := range h.subs[ownerID] {
		sub.poke()
	}
}

// revision returns the number of writes committed for ownerID
func (h *feedHub) revision(ownerID string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.revisions[ownerID]
}

// count returns the number of open feeds for ownerID
func (h *feedHub) count(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}
