package controllers

import (
	"context"
	"sync"

	"github.com/amaumene/cinemaprompt/internal/services/identity"
	"github.com/sirupsen/logrus"
)

// IdentityProvider authenticates users
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (identity.Identity, error)
	SignUp(ctx context.Context, email, password, displayName string) (identity.Identity, error)
}

// IdentityChange is published on every sign-in or sign-out. Identity is nil
// after sign-out. Generation increases with every change.
type IdentityChange struct {
	Identity   *identity.Identity
	Generation uint64
}

type sessionListener struct {
	id uint64
	fn func(IdentityChange)
}

// SessionController is the single source of the signed-in identity for one
// client. Listeners are notified synchronously, in registration order, and
// must not sign in or out from inside the callback.
type SessionController struct {
	provider IdentityProvider
	logger   *logrus.Logger

	// changeMu serializes transitions so listeners see them in order
	changeMu sync.Mutex

	mu         sync.RWMutex
	current    *identity.Identity
	generation uint64
	listeners  []sessionListener
	nextID     uint64
	closed     bool
}

// NewSessionController creates a signed-out session
func NewSessionController(provider IdentityProvider, logger *logrus.Logger) *SessionController {
	return &SessionController{
		provider: provider,
		logger:   logger,
	}
}

// Current returns the signed-in identity, if any
func (s *SessionController) Current() (identity.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return identity.Identity{}, false
	}
	return *s.current, true
}

// Generation returns the number of identity changes so far
func (s *SessionController) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// OnChange registers a listener and returns a function removing it
func (s *SessionController) OnChange(fn func(IdentityChange)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, sessionListener{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// SignIn authenticates and makes the identity current
func (s *SessionController) SignIn(ctx context.Context, email, password string) (identity.Identity, error) {
	id, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return identity.Identity{}, err
	}
	s.publish(&id)
	return id, nil
}

// SignUp registers a new user and signs them in
func (s *SessionController) SignUp(ctx context.Context, email, password, displayName string) (identity.Identity, error) {
	id, err := s.provider.SignUp(ctx, email, password, displayName)
	if err != nil {
		return identity.Identity{}, err
	}
	s.publish(&id)
	return id, nil
}

// SignOut clears the current identity. Signing out while signed out is a no-op.
func (s *SessionController) SignOut() {
	s.publish(nil)
}

// Close signs out and drops every listener
func (s *SessionController) Close() {
	s.SignOut()

	s.mu.Lock()
	s.closed = true
	s.listeners = nil
	s.mu.Unlock()
}

func (s *SessionController) publish(id *identity.Identity) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	s.mu.Lock()
	if s.closed || (id == nil && s.current == nil) {
		s.mu.Unlock()
		return
	}
	s.current = id
	s.generation++
	change := IdentityChange{Identity: id, Generation: s.generation}
	listeners := make([]sessionListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	fields := logrus.Fields{"generation": change.Generation}
	if id != nil {
		fields["identity"] = id.ID
		s.logger.WithFields(fields).Info("Session signed in")
	} else {
		s.logger.WithFields(fields).Info("Session signed out")
	}

	for _, l := range listeners {
		l.fn(change)
	}
}
