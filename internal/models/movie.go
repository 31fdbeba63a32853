package models

import (
	"fmt"
	"time"
)

// Movie is a movie record as seen by clients
type Movie struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Rating      int       `json:"rating"`
	Image       string    `json:"image,omitempty"`
	Type        MovieType `json:"type"`
	WatchedDate string    `json:"watchedDate"`
	Favorite    bool      `json:"favorite"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasImage reports whether the movie already carries a poster
func (m Movie) HasImage() bool {
	return m.Image != ""
}

// MovieDraft holds the client-supplied fields of a new movie
type MovieDraft struct {
	Title       string
	Rating      int
	Image       string // optional
	Type        MovieType
	WatchedDate string
}

// MoviePatch is a partial update. Nil fields are left untouched.
type MoviePatch struct {
	Favorite *bool
	Image    *string
}

// IsEmpty reports whether the patch changes nothing
func (p MoviePatch) IsEmpty() bool {
	return p.Favorite == nil && p.Image == nil
}

// MovieDocument is the persisted shape of a movie at users/{OwnerID}/movies/{ID}
type MovieDocument struct {
	ID      string `boltholdKey:"ID"`
	OwnerID string `boltholdIndex:"OwnerID"`

	Title       string
	Rating      int
	Image       string
	Type        MovieType
	WatchedDate string
	Favorite    bool

	// Metadata (store assigned)
	CreatedAt time.Time
	Seq       uint64 // creation sequence, breaks CreatedAt ties
	UpdatedAt time.Time
}

// Path returns the logical document path
func (d *MovieDocument) Path() string {
	return fmt.Sprintf("users/%s/movies/%s", d.OwnerID, d.ID)
}

// ToMovie converts a stored document to the client entity, filling defaults
// for fields that were never written
func (d *MovieDocument) ToMovie() Movie {
	title := d.Title
	if title == "" {
		title = DefaultTitle
	}
	movieType := d.Type
	if !movieType.Valid() {
		movieType = MovieTypeWatched
	}

	return Movie{
		ID:          d.ID,
		Title:       title,
		Rating:      d.Rating,
		Image:       d.Image,
		Type:        movieType,
		WatchedDate: d.WatchedDate,
		Favorite:    d.Favorite,
		CreatedAt:   d.CreatedAt,
	}
}

// Apply writes the non-nil fields of the patch into the document
func (d *MovieDocument) Apply(patch MoviePatch) {
	if patch.Favorite != nil {
		d.Favorite = *patch.Favorite
	}
	if patch.Image != nil {
		d.Image = *patch.Image
	}
}
