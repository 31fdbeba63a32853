package controllers

import (
	"context"
	"sync"
	"time"

	"github.com/amaumene/cinemaprompt/internal/metrics"
	"github.com/amaumene/cinemaprompt/internal/services/identity"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// ClientSession is one signed-in client: its session boundary and the
// controllers that follow it
type ClientSession struct {
	Token    string
	Session  *SessionController
	Movies   *MovieListController
	AddMovie *AddMovieController
}

// Close signs the client out and releases its feed
func (c *ClientSession) Close() {
	c.Session.Close()
	c.Movies.Close()
}

// SessionRegistry hands out bearer tokens for client sessions. Sessions idle
// for longer than the configured time are closed.
type SessionRegistry struct {
	provider    IdentityProvider
	store       MovieStore
	posters     PosterResolver
	concurrency int
	idle        time.Duration
	logger      *logrus.Logger

	// mu keeps a lookup from reviving a session that is being removed
	mu       sync.Mutex
	sessions *cache.Cache
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry(provider IdentityProvider, store MovieStore, posters PosterResolver, concurrency int, idle time.Duration, logger *logrus.Logger) *SessionRegistry {
	r := &SessionRegistry{
		provider:    provider,
		store:       store,
		posters:     posters,
		concurrency: concurrency,
		idle:        idle,
		logger:      logger,
		sessions:    cache.New(idle, time.Minute),
	}

	r.sessions.OnEvicted(func(token string, value interface{}) {
		client := value.(*ClientSession)
		client.Close()
		metrics.ClientSessions.Dec()
		r.logger.WithField("session", shortToken(token)).Debug("Client session closed")
	})

	return r
}

func (r *SessionRegistry) newClient() *ClientSession {
	session := NewSessionController(r.provider, r.logger)
	return &ClientSession{
		Token:    uuid.NewString(),
		Session:  session,
		Movies:   NewMovieListController(session, r.store, r.posters, r.concurrency, r.logger),
		AddMovie: NewAddMovieController(session, r.store, r.logger),
	}
}

// SignIn authenticates and registers a new client session
func (r *SessionRegistry) SignIn(ctx context.Context, email, password string) (*ClientSession, identity.Identity, error) {
	client := r.newClient()

	id, err := client.Session.SignIn(ctx, email, password)
	if err != nil {
		client.Close()
		return nil, identity.Identity{}, err
	}

	r.register(client, id)
	return client, id, nil
}

// SignUp registers a user and a client session signed in as them
func (r *SessionRegistry) SignUp(ctx context.Context, email, password, displayName string) (*ClientSession, identity.Identity, error) {
	client := r.newClient()

	id, err := client.Session.SignUp(ctx, email, password, displayName)
	if err != nil {
		client.Close()
		return nil, identity.Identity{}, err
	}

	r.register(client, id)
	return client, id, nil
}

func (r *SessionRegistry) register(client *ClientSession, id identity.Identity) {
	r.mu.Lock()
	r.sessions.SetDefault(client.Token, client)
	r.mu.Unlock()

	metrics.ClientSessions.Inc()
	r.logger.WithFields(logrus.Fields{
		"session":  shortToken(client.Token),
		"identity": id.ID,
	}).Info("Client session opened")
}

// IdleTimeout is how long a session survives without a Get
func (r *SessionRegistry) IdleTimeout() time.Duration {
	return r.idle
}

// Get returns the session for token and extends its idle deadline
func (r *SessionRegistry) Get(token string) (*ClientSession, bool) {
	if token == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.sessions.Get(token)
	if !ok {
		return nil, false
	}
	r.sessions.SetDefault(token, value)
	return value.(*ClientSession), true
}

// SignOut closes and forgets the session for token
func (r *SessionRegistry) SignOut(token string) bool {
	r.mu.Lock()
	_, ok := r.sessions.Get(token)
	if ok {
		r.sessions.Delete(token)
	}
	r.mu.Unlock()
	return ok
}

// Count returns the number of live sessions
func (r *SessionRegistry) Count() int {
	return r.sessions.ItemCount()
}

// Close closes every session
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token := range r.sessions.Items() {
		r.sessions.Delete(token)
	}
}

func shortToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
