package controllers

import (
	"context"
	"fmt"

	"github.com/amaumene/cinemaprompt/internal/models"
	"github.com/amaumene/cinemaprompt/internal/services/identity"
	"github.com/amaumene/cinemaprompt/internal/services/moviestore"
	"github.com/sirupsen/logrus"
)

// IdentityLister enumerates every registered identity
type IdentityLister interface {
	Identities(ctx context.Context) ([]identity.Identity, error)
}

// CollectionStore reads and patches whole collections
type CollectionStore interface {
	List(ctx context.Context, identityID string) ([]models.Movie, error)
	Get(ctx context.Context, identityID, movieID string) (models.Movie, error)
	Update(ctx context.Context, identityID, movieID string, patch models.MoviePatch) error
}

// BackfillResult counts the outcome of one sweep
type BackfillResult struct {
	Identities int
	Missing    int
	Resolved   int
	Skipped    int // changed or removed while the poster was looked up
	Failed     int
}

// PosterBackfillController stores posters for movies saved without one
type PosterBackfillController struct {
	identities IdentityLister
	store      CollectionStore
	posters    PosterResolver
	logger     *logrus.Logger
}

// NewPosterBackfillController creates a new poster backfill controller
func NewPosterBackfillController(identities IdentityLister, store CollectionStore, posters PosterResolver, logger *logrus.Logger) *PosterBackfillController {
	return &PosterBackfillController{
		identities: identities,
		store:      store,
		posters:    posters,
		logger:     logger,
	}
}

// BackfillAll sweeps every collection. Failures for one identity or movie are
// logged and skipped.
func (c *PosterBackfillController) BackfillAll(ctx context.Context) (BackfillResult, error) {
	c.logger.Info("Starting poster backfill")

	var result BackfillResult

	ids, err := c.identities.Identities(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list identities: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Identities++

		if err := c.backfillIdentity(ctx, id.ID, &result); err != nil {
			c.logger.WithError(err).WithField("identity", id.ID).Error("Failed to backfill posters")
		}
	}

	c.logger.WithFields(logrus.Fields{
		"identities": result.Identities,
		"missing":    result.Missing,
		"resolved":   result.Resolved,
		"skipped":    result.Skipped,
		"failed":     result.Failed,
	}).Info("Poster backfill completed")

	return result, nil
}

func (c *PosterBackfillController) backfillIdentity(ctx context.Context, identityID string, result *BackfillResult) error {
	movies, err := c.store.List(ctx, identityID)
	if err != nil {
		return err
	}

	for _, movie := range movies {
		if movie.HasImage() {
			continue
		}
		result.Missing++

		url, ok := c.posters.ResolvePoster(ctx, movie.Title)
		if !ok {
			continue
		}

		// Lookups are slow; re-read so a poster set meanwhile is kept
		current, err := c.store.Get(ctx, identityID, movie.ID)
		if moviestore.IsKind(err, moviestore.KindNotFound) || (err == nil && current.HasImage()) {
			result.Skipped++
			continue
		}
		if err != nil {
			result.Failed++
			c.logger.WithError(err).WithField("movie_id", movie.ID).Warn("Failed to re-read movie")
			continue
		}

		if err := c.store.Update(ctx, identityID, movie.ID, models.MoviePatch{Image: &url}); err != nil {
			result.Failed++
			c.logger.WithError(err).WithFields(logrus.Fields{
				"identity": identityID,
				"movie_id": movie.ID,
			}).Warn("Failed to store poster")
			continue
		}

		result.Resolved++
		c.logger.WithFields(logrus.Fields{
			"movie_id": movie.ID,
			"title":    movie.Title,
		}).Debug("Poster stored")
	}

	return nil
}
