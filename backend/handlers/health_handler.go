package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MoAftaab/crm-xeno/backend/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	checkHealthy       = "healthy"
	checkUnhealthy     = "unhealthy"
	checkNotConfigured = "not_configured"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// DatabaseChecker verifies the user store is reachable and answering queries
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     DatabaseChecker       // Optional user store
	redis  redis.UniversalClient // Optional session denylist
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and rdb may be nil when
// the corresponding backend is not configured.
func NewHealthHandler(db DatabaseChecker, rdb redis.UniversalClient, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  rdb,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only: returns 200 while the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    checkHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := utils.WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("failed to write health response", zap.Error(err))
	}
}

// HandleReadiness handles GET /readyz
// Validates that every configured backend is reachable
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": h.check(ctx, "database", h.db != nil, h.checkDatabase),
		"redis":    h.check(ctx, "redis", h.redis != nil, h.checkRedis),
	}

	status := checkHealthy
	httpStatus := http.StatusOK
	for _, result := range checks {
		if result == checkUnhealthy {
			status = checkUnhealthy
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

func (h *HealthHandler) check(ctx context.Context, name string, configured bool, run func(context.Context) error) string {
	if !configured {
		return checkNotConfigured
	}
	if err := run(ctx); err != nil {
		h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
		return checkUnhealthy
	}
	return checkHealthy
}

func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	return h.db.HealthCheck(ctx)
}

func (h *HealthHandler) checkRedis(ctx context.Context) error {
	return h.redis.Ping(ctx).Err()
}
