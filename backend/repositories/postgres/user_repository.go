package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MoAftaab/crm-xeno/backend/models"
	"github.com/MoAftaab/crm-xeno/backend/repositories"
	"go.uber.org/zap"
)

const userColumns = `id, google_id, email, name, picture, created_at, updated_at, last_login_at`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertByGoogleID inserts a user or, on a repeat sign-in, refreshes the
// profile fields and last_login_at. id and created_at of an existing row are kept.
func (r *UserRepository) UpsertByGoogleID(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (google_id) DO UPDATE
		SET email = EXCLUDED.email,
		    name = EXCLUDED.name,
		    picture = EXCLUDED.picture,
		    updated_at = EXCLUDED.updated_at,
		    last_login_at = EXCLUDED.last_login_at
		RETURNING ` + userColumns

	stored := &models.User{}
	err := scanUser(r.db.QueryRowContext(ctx, query,
		user.ID,
		user.GoogleID,
		user.Email,
		user.Name,
		user.Picture,
		user.CreatedAt,
		user.UpdatedAt,
		user.LastLoginAt,
	), stored)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	r.logger.Debug("user upserted",
		zap.String("id", stored.ID.String()),
		zap.String("google_id", stored.GoogleID))
	return stored, nil
}

// GetByGoogleID retrieves a user by Google subject
func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_id = $1`

	user := &models.User{}
	err := scanUser(r.db.QueryRowContext(ctx, query, googleID), user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: google_id %s", repositories.ErrNotFound, googleID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func scanUser(row *sql.Row, user *models.User) error {
	return row.Scan(
		&user.ID,
		&user.GoogleID,
		&user.Email,
		&user.Name,
		&user.Picture,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLoginAt,
	)
}
