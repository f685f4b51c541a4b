package postgres

import (
	"context"

	"github.com/MoAftaab/crm-xeno/backend/config"
	"github.com/MoAftaab/crm-xeno/backend/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory opens the connection pool and returns a factory over it
func NewRepositoryFactory(cfg config.DatabaseConfig, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, logger: logger}, nil
}

// InitSchema creates missing tables
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	return f.db.InitSchema(ctx)
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users: NewUserRepository(f.db, f.logger),
	}
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
