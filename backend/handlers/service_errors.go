package handlers

import (
	"net/http"

	"github.com/MoAftaab/crm-xeno/backend/middleware"
	"github.com/MoAftaab/crm-xeno/backend/services"
	"github.com/MoAftaab/crm-xeno/backend/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsNotFoundError(err):
		if err := utils.WriteNotFound(w, err.Error()); err != nil {
			logger.Error("failed to write not found response", zap.Error(err))
		}

	case services.IsValidationError(err):
		if err := utils.WriteBadRequest(w, err.Error(), details); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	case services.IsUnauthorizedError(err):
		// The cause stays in the logs
		logger.Debug("request not authenticated", zap.Error(err))
		if err := utils.WriteUnauthorized(w, middleware.UnauthenticatedMessage); err != nil {
			logger.Error("failed to write unauthorized response", zap.Error(err))
		}

	case services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		if err := utils.WriteInternalServerError(w, "An internal error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if err := utils.WriteInternalServerError(w, "An unexpected error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
