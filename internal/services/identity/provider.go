package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/amaumene/cinemaprompt/internal/config"
	"github.com/amaumene/cinemaprompt/internal/metrics"
	"github.com/amaumene/cinemaprompt/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 6

// Identity is an authenticated user
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Provider authenticates users against the profiles stored at users/{id}
type Provider struct {
	db       *models.Database
	throttle *failureThrottle
	cost     int
	logger   *logrus.Logger
}

// NewProvider creates a new identity provider
func NewProvider(cfg *config.Config, db *models.Database, logger *logrus.Logger) *Provider {
	return &Provider{
		db:       db,
		throttle: newFailureThrottle(cfg.SignInAttemptsPerMinute, 10*time.Minute),
		cost:     bcrypt.DefaultCost,
		logger:   logger,
	}
}

// SignIn verifies an email/password pair
func (p *Provider) SignIn(ctx context.Context, email, password string) (identity Identity, err error) {
	defer func() { metrics.AuthAttempts.WithLabelValues("signin", outcome(err)).Inc() }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Identity{}, invalidInput("Email and password are required.")
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, &AuthError{Code: CodeOther, Err: err}
	}

	if p.throttle.Blocked(email) {
		p.logger.WithField("email", email).Warn("Sign-in throttled")
		return Identity{}, &AuthError{Code: CodeTooManyRequests}
	}

	profile, err := p.db.GetProfileByEmail(email)
	if errors.Is(err, models.ErrNotFound) {
		p.throttle.Fail(email)
		return Identity{}, &AuthError{Code: CodeUserNotFound}
	}
	if err != nil {
		return Identity{}, &AuthError{Code: CodeOther, Err: err}
	}

	if err := bcrypt.CompareHashAndPassword(profile.PasswordHash, []byte(password)); err != nil {
		p.throttle.Fail(email)
		p.logger.WithField("identity", profile.ID).Warn("Sign-in password mismatch")
		return Identity{}, &AuthError{Code: CodeWrongPassword}
	}

	p.throttle.Reset(email)
	p.logger.WithField("identity", profile.ID).Info("Signed in")
	return toIdentity(profile), nil
}

// SignUp registers a new user and writes the users/{id} profile
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (identity Identity, err error) {
	defer func() { metrics.AuthAttempts.WithLabelValues("signup", outcome(err)).Inc() }()

	email = normalizeEmail(email)
	displayName = strings.TrimSpace(displayName)

	if displayName == "" {
		return Identity{}, invalidInput("Please enter your name.")
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return Identity{}, invalidInput("Please enter a valid email address.")
	}
	if len(password) < MinPasswordLength {
		return Identity{}, invalidInput("Password should be at least 6 characters.")
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, &AuthError{Code: CodeOther, Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Identity{}, &AuthError{Code: CodeOther, Err: err}
	}

	profile := &models.UserProfile{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         displayName,
		PasswordHash: hash,
	}
	if err := p.db.CreateProfile(profile); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return Identity{}, &AuthError{Code: CodeEmailInUse}
		}
		return Identity{}, &AuthError{Code: CodeOther, Err: err}
	}

	p.logger.WithFields(logrus.Fields{
		"identity": profile.ID,
		"path":     profile.Path(),
	}).Info("Registered new user")
	return toIdentity(profile), nil
}

// Profile returns the identity stored at users/{id}
func (p *Provider) Profile(ctx context.Context, id string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	profile, err := p.db.GetProfile(id)
	if err != nil {
		return Identity{}, err
	}
	return toIdentity(profile), nil
}

// Identities lists every registered identity
func (p *Provider) Identities(ctx context.Context) ([]Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	profiles, err := p.db.GetAllProfiles()
	if err != nil {
		return nil, err
	}

	identities := make([]Identity, 0, len(profiles))
	for _, profile := range profiles {
		identities = append(identities, toIdentity(profile))
	}
	return identities, nil
}

func toIdentity(profile *models.UserProfile) Identity {
	return Identity{ID: profile.ID, Email: profile.Email, Name: profile.Name}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.TrimPrefix(string(CodeOf(err)), "auth/")
}
