package repositories

import (
	"context"
	"errors"

	"github.com/MoAftaab/crm-xeno/backend/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// UserRepository handles user data operations
type UserRepository interface {
	// UpsertByGoogleID inserts the user or refreshes the profile and last
	// login of the existing row with the same Google subject. Returns the
	// stored row.
	UpsertByGoogleID(ctx context.Context, user *models.User) (*models.User, error)

	// GetByGoogleID retrieves a user by Google subject
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
}

// Repositories aggregates all repositories
type Repositories struct {
	Users UserRepository
}
