package db

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/solatis/approvalgate/internal/types"
)

// validate is the singleton validator instance
var validate = validator.New()

// ValidationError lists the fields of a rule that failed validation.
// It matches types.ErrInvalidRule under errors.Is.
type ValidationError struct {
	Fields map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, len(names))
	for i, name := range names {
		msgs[i] = e.Fields[name]
	}
	return fmt.Sprintf("%s: %s", types.ErrInvalidRule, strings.Join(msgs, "; "))
}

// Unwrap exposes types.ErrInvalidRule.
func (e *ValidationError) Unwrap() error {
	return types.ErrInvalidRule
}

// ValidateRule checks a rule before it is stored.
func ValidateRule(rule types.Rule) error {
	if err := validate.Struct(rule); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return newValidationError(validationErrors)
		}
		return err
	}
	return nil
}

func newValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string)
	for _, err := range errs {
		field := err.Field()
		switch err.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s characters", field, err.Param())
		case "gte":
			fields[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, err.Param())
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		default:
			fields[field] = fmt.Sprintf("%s validation failed on '%s' tag", field, err.Tag())
		}
	}
	return &ValidationError{Fields: fields}
}
