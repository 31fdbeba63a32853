package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = bolthold.ErrNotFound
	// ErrEmailTaken is returned when a profile with the same email already exists
	ErrEmailTaken = errors.New("email already registered")
)

var sequenceBucket = []byte("_movie_sequence")

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
	now   func() time.Time
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store, now: time.Now}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Profile operations

// CreateProfile stores a new profile, rejecting duplicate emails
func (db *Database) CreateProfile(profile *UserProfile) error {
	profile.CreatedAt = db.now().UTC()

	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var existing []UserProfile
		query := bolthold.Where("Email").Eq(profile.Email).Index("Email")
		if err := db.store.TxFind(tx, &existing, query); err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrEmailTaken
		}
		return db.store.TxInsert(tx, profile.ID, profile)
	})
}

// GetProfile retrieves a profile by ID
func (db *Database) GetProfile(id string) (*UserProfile, error) {
	var profile UserProfile
	if err := db.store.Get(id, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfileByEmail retrieves a profile by its (lower-cased) email
func (db *Database) GetProfileByEmail(email string) (*UserProfile, error) {
	var profile UserProfile
	err := db.store.FindOne(&profile, bolthold.Where("Email").Eq(email).Index("Email"))
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetAllProfiles retrieves every profile
func (db *Database) GetAllProfiles() ([]*UserProfile, error) {
	var profiles []*UserProfile
	err := db.store.Find(&profiles, nil)
	return profiles, err
}

// Movie operations

// InsertMovie stores a new movie document, stamping CreatedAt and the creation sequence
func (db *Database) InsertMovie(doc *MovieDocument) error {
	now := db.now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(sequenceBucket)
		if err != nil {
			return err
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		doc.Seq = seq
		return db.store.TxInsert(tx, doc.ID, doc)
	})
}

// GetMovie retrieves a movie document by ID
func (db *Database) GetMovie(id string) (*MovieDocument, error) {
	var doc MovieDocument
	if err := db.store.Get(id, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetMoviesByOwner retrieves an owner's movies, newest first.
// Equal CreatedAt values are ordered by creation sequence, newest first.
func (db *Database) GetMoviesByOwner(ownerID string) ([]*MovieDocument, error) {
	var docs []*MovieDocument
	err := db.store.Find(&docs, bolthold.Where("OwnerID").Eq(ownerID).Index("OwnerID"))
	if err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].Seq > docs[j].Seq
	})

	return docs, nil
}

// UpdateMovie replaces an existing movie document
func (db *Database) UpdateMovie(doc *MovieDocument) error {
	doc.UpdatedAt = db.now().UTC()
	return db.store.Update(doc.ID, doc)
}

// DeleteMovie deletes a movie document by ID
func (db *Database) DeleteMovie(id string) error {
	return db.store.Delete(id, &MovieDocument{})
}
