package app

import (
	"context"
	"fmt"

	"github.com/MoAftaab/crm-xeno/backend/auth"
	"github.com/MoAftaab/crm-xeno/backend/config"
	"github.com/MoAftaab/crm-xeno/backend/docs"
	"github.com/MoAftaab/crm-xeno/backend/google"
	"github.com/MoAftaab/crm-xeno/backend/handlers"
	"github.com/MoAftaab/crm-xeno/backend/middleware"
	"github.com/MoAftaab/crm-xeno/backend/repositories"
	"github.com/MoAftaab/crm-xeno/backend/repositories/postgres"
	"github.com/MoAftaab/crm-xeno/backend/services"
	"github.com/MoAftaab/crm-xeno/backend/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Version is published in the API docs
const Version = "0.1.0"

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB          // nil without a user store
	Redis  redis.UniversalClient // nil without a session denylist
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users repositories.UserRepository

	// Auth
	Verifier       google.IdentityVerifier
	Sessions       *session.Issuer
	AuthService    *services.AuthService
	AuthMiddleware *middleware.AuthMiddleware
	authHandler    *auth.Handler

	// HTTP surface
	Health *handlers.HealthHandler
	Docs   *docs.Publisher
}

// AuthHandler returns the auth handler for route wiring
func (d *Dependencies) AuthHandler() *auth.Handler {
	return d.authHandler
}

// NewDependencies creates and wires up all application dependencies.
// PostgreSQL and Redis are optional; each is connected only when configured.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Database != nil {
		if err := deps.initDatabase(ctx, *cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	} else {
		logger.Warn("no database configured, logins will not be persisted")
	}

	if cfg.Redis != nil {
		if err := deps.initRedis(ctx, *cfg.Redis); err != nil {
			deps.closeQuietly()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
	} else {
		logger.Warn("no redis configured, logout will not revoke sessions")
	}

	if err := deps.initAuth(ctx, cfg); err != nil {
		deps.closeQuietly()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	publisher, err := docs.NewPublisher(ctx, cfg.Server.BaseURL, Version, logger)
	if err != nil {
		deps.closeQuietly()
		return nil, err
	}
	deps.Docs = publisher

	var db handlers.DatabaseChecker
	if deps.DB != nil {
		db = deps.DB
	}
	deps.Health = handlers.NewHealthHandler(db, deps.Redis, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the user store and creates its schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg config.DatabaseConfig) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}
	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		d.RepoFactory, d.DB = nil, nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Users = factory.NewRepositories().Users
	d.Logger.Info("repositories initialized")
	return nil
}

// initRedis connects the session denylist backend
func (d *Dependencies) initRedis(ctx context.Context, cfg config.RedisConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	d.Redis = client
	d.Logger.Info("redis connection established", zap.String("addr", cfg.Addr))
	return nil
}

func (d *Dependencies) initAuth(ctx context.Context, cfg *config.Config) error {
	verifier, err := newVerifier(ctx, cfg.Google, d.Logger)
	if err != nil {
		return err
	}
	d.Verifier = verifier

	opts := []session.Option{
		session.WithIssuer(cfg.Auth.Issuer),
		session.WithLogger(d.Logger),
	}
	if d.Redis != nil {
		opts = append(opts, session.WithDenylist(session.NewRedisDenylist(d.Redis)))
	}
	issuer, err := session.NewIssuer(cfg.Auth.JWTSecret, opts...)
	if err != nil {
		return err
	}
	d.Sessions = issuer

	d.AuthService = services.NewAuthService(verifier, issuer, d.Users, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(issuer, d.Logger)
	d.authHandler = auth.NewHandler(d.AuthService, d.Logger)

	d.Logger.Info("auth initialized",
		zap.String("verifier", cfg.Google.Verifier),
		zap.Bool("audience_pinned", cfg.Google.ClientID != ""),
		zap.Bool("revocation", d.Redis != nil))
	return nil
}

// newVerifier selects the identity token verifier
func newVerifier(ctx context.Context, cfg config.GoogleConfig, logger *zap.Logger) (google.IdentityVerifier, error) {
	gcfg := google.Config{
		TokenInfoURL: cfg.TokenInfoURL,
		IssuerURL:    cfg.IssuerURL,
		ClientID:     cfg.ClientID,
		HTTPTimeout:  cfg.HTTPTimeout,
	}

	switch cfg.Verifier {
	case config.VerifierOIDC:
		return google.NewOIDCVerifier(ctx, gcfg, logger)
	case config.VerifierTokenInfo, "":
		return google.NewTokenInfoClient(gcfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown google verifier %q", cfg.Verifier)
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		} else {
			d.Logger.Info("redis connection closed")
		}
	}

	// Sync logger
	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// closeQuietly releases partially initialized connections
func (d *Dependencies) closeQuietly() {
	if d.RepoFactory != nil {
		_ = d.RepoFactory.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}
