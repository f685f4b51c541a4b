package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string)
	for _, err := range errs {
		field := err.Field()

		switch err.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "email":
			fields[field] = fmt.Sprintf("%s must be a valid email", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s", field, err.Param())
		default:
			fields[field] = fmt.Sprintf("%s validation failed on '%s' tag", field, err.Tag())
		}
	}

	return &ValidationError{
		Message: "Validation failed",
		Fields:  fields,
	}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// GetValidationFields extracts field errors from a ValidationError
func GetValidationFields(err error) map[string]string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields
	}
	return nil
}
