package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a CRM user who signed in with Google
type User struct {
	ID          uuid.UUID `json:"id" db:"id"`
	GoogleID    string    `json:"google_id" db:"google_id"` // Google subject identifier
	Email       string    `json:"email" db:"email"`
	Name        string    `json:"name" db:"name"`
	Picture     string    `json:"picture" db:"picture"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	LastLoginAt time.Time `json:"last_login_at" db:"last_login_at"`
}

// NewUserFromIdentity creates a new User instance for a first sign-in
func NewUserFromIdentity(identity Identity) *User {
	now := time.Now().UTC()
	return &User{
		ID:          uuid.New(),
		GoogleID:    identity.ID,
		Email:       identity.Email,
		Name:        identity.Name,
		Picture:     identity.Picture,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: now,
	}
}

// Identity returns the provider identity view of the user
func (u *User) Identity() Identity {
	return Identity{
		ID:      u.GoogleID,
		Email:   u.Email,
		Name:    u.Name,
		Picture: u.Picture,
	}
}
