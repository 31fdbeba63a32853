package controllers

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/amaumene/cinemaprompt/internal/models"
	"github.com/amaumene/cinemaprompt/internal/services/moviestore"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// DefaultFormRating is the rating a new form starts with
const DefaultFormRating = 5

// MovieForm is the input of the add-movie form
type MovieForm struct {
	Title       string           `json:"title" validate:"required"`
	Rating      int              `json:"rating" validate:"min=1,max=10"`
	Type        models.MovieType `json:"type" validate:"oneof=watched watchlist"`
	WatchedDate string           `json:"watchedDate" validate:"required,datetime=2006-01-02"`
	Image       string           `json:"image" validate:"omitempty,url"`
}

// NewMovieForm returns an empty form with the default rating and type
func NewMovieForm() MovieForm {
	return MovieForm{Rating: DefaultFormRating, Type: models.MovieTypeWatched}
}

// FieldError is one invalid form field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormError lists every invalid field of a rejected form
type FormError struct {
	Fields []FieldError
}

func (e *FormError) Error() string {
	messages := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		messages[i] = f.Message
	}
	return "invalid movie: " + strings.Join(messages, "; ")
}

var (
	formValidator     *validator.Validate
	formValidatorOnce sync.Once
)

func getFormValidator() *validator.Validate {
	formValidatorOnce.Do(func() {
		formValidator = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON names
		formValidator.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
	})
	return formValidator
}

// AddMovieController submits the add-movie form for the signed-in user
type AddMovieController struct {
	session *SessionController
	store   MovieStore
	logger  *logrus.Logger
}

// NewAddMovieController creates a new add-movie controller
func NewAddMovieController(session *SessionController, store MovieStore, logger *logrus.Logger) *AddMovieController {
	return &AddMovieController{
		session: session,
		store:   store,
		logger:  logger,
	}
}

// Submit validates the form and adds the movie. Invalid forms return a
// *FormError and never reach the store.
func (c *AddMovieController) Submit(ctx context.Context, form MovieForm) error {
	form.Title = strings.TrimSpace(form.Title)
	form.Image = strings.TrimSpace(form.Image)
	form.WatchedDate = strings.TrimSpace(form.WatchedDate)

	if err := ValidateMovieForm(form); err != nil {
		return err
	}

	// Identity is re-read at submit time, never cached by the form
	id, ok := c.session.Current()
	if !ok {
		return moviestore.NewError("add", moviestore.KindUnauthenticated, nil)
	}

	draft := models.MovieDraft{
		Title:       form.Title,
		Rating:      form.Rating,
		Image:       form.Image,
		Type:        form.Type,
		WatchedDate: form.WatchedDate,
	}
	if err := c.store.Add(ctx, id.ID, draft); err != nil {
		return fmt.Errorf("failed to add movie: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"identity": id.ID,
		"title":    form.Title,
		"type":     form.Type,
	}).Debug("Movie form submitted")

	return nil
}

// ValidateMovieForm checks a form without submitting it
func ValidateMovieForm(form MovieForm) error {
	err := getFormValidator().Struct(form)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &FormError{Fields: []FieldError{{Field: "form", Message: err.Error()}}}
	}

	fields := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		fields[i] = FieldError{Field: fe.Field(), Message: formMessage(fe)}
	}
	return &FormError{Fields: fields}
}

func formMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "title":
		return "Title is required."
	case "rating":
		return fmt.Sprintf("Rating must be between %d and %d.", models.MinRating, models.MaxRating)
	case "type":
		return "Type must be watched or watchlist."
	case "watchedDate":
		return "Date watched must be a date like 2024-01-31."
	case "image":
		return "Image must be a valid URL."
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
