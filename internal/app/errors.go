package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/checkpoint"
	"github.com/okian/tally/internal/domain/grace"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/reveal"
)

// Error kinds. Every error returned by Service matches exactly one of them
// with errors.Is, or none for infrastructure failures.
var (
	ErrValidation    = errors.New("validation failed")
	ErrForbidden     = errors.New("forbidden")
	ErrConsistency   = errors.New("consistency violation")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrNotConfigured = errors.New("service is not configured")
)

// ValidationError lists the problems found in one input.
type ValidationError struct {
	Entity string
	Errors []string
}

// NewValidationError creates an empty ValidationError for entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{Entity: entity}
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %s", e.Entity, strings.Join(e.Errors, "; "))
}

// Unwrap makes ValidationError match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// AddError appends a message.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors reports whether any message was added.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// validationError converts validator field errors into a ValidationError.
func validationError(entity string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	ve := NewValidationError(entity)
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			ve.AddError(fmt.Sprintf("%s is required", fe.Namespace()))
		case "min", "max", "gte", "lte":
			ve.AddError(fmt.Sprintf("%s must satisfy %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		default:
			ve.AddError(fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return ve
}

// classify maps store and domain errors onto the service error kinds.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrStaleVersion),
		errors.Is(err, checkpoint.ErrAlreadyPaused),
		errors.Is(err, checkpoint.ErrNotPaused),
		errors.Is(err, checkpoint.ErrDeadlinePassed),
		errors.Is(err, reveal.ErrAllRevealed),
		errors.Is(err, reveal.ErrNoActiveCeremony),
		errors.Is(err, reveal.ErrNoWinners):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, checkpoint.ErrInvalidExtension),
		errors.Is(err, checkpoint.ErrInvalidDeadline),
		errors.Is(err, reveal.ErrInvalidMode),
		errors.Is(err, reveal.ErrInvalidLimit),
		errors.Is(err, model.ErrUnknownRevealMode):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	case errors.Is(err, grace.ErrStageClosed):
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	case errors.Is(err, repository.ErrNotConfigured):
		return fmt.Errorf("%w: %w", ErrNotConfigured, err)
	}
	return err
}

// Kind returns a short label of the error kind for metrics and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConsistency):
		return "consistency"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "infrastructure"
}
