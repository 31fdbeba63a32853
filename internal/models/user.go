package models

import (
	"fmt"
	"time"
)

// UserProfile is the persisted identity record at users/{ID}
type UserProfile struct {
	ID    string `boltholdKey:"ID"`
	Email string `boltholdIndex:"Email"` // lower-cased
	Name  string

	PasswordHash []byte

	CreatedAt time.Time
}

// Path returns the logical document path
func (p *UserProfile) Path() string {
	return fmt.Sprintf("users/%s", p.ID)
}
