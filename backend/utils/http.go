package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes bounds request bodies decoded by DecodeJSON
const maxBodyBytes = 1 << 20

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest writes a 400 Bad Request response with error details
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request",
		Message: message,
		Details: details,
	})
}

// WriteUnauthorized writes a 401 Unauthorized response
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Authentication required"
	}
	return WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:   "unauthorized",
		Message: message,
	})
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Resource not found"
	}
	return WriteJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: message,
	})
}

// WriteInternalServerError writes a 500 Internal Server Error response
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Internal server error"
	}
	return WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: message,
	})
}

// WriteError writes an error response based on the status code
func WriteError(w http.ResponseWriter, status int, message string, details map[string]interface{}) error {
	var errorType string
	switch status {
	case http.StatusBadRequest:
		errorType = "bad_request"
	case http.StatusUnauthorized:
		errorType = "unauthorized"
	case http.StatusNotFound:
		errorType = "not_found"
	case http.StatusMethodNotAllowed:
		errorType = "method_not_allowed"
	case http.StatusServiceUnavailable:
		errorType = "service_unavailable"
	default:
		errorType = "internal_error"
	}

	return WriteJSON(w, status, ErrorResponse{
		Error:   errorType,
		Message: message,
		Details: details,
	})
}

// DecodeJSON decodes a bounded JSON request body into dst and validates it.
// Returns a *ValidationError when the body decodes but fails validation.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	return ValidateStruct(dst)
}
