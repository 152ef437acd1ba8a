/*
errors.go - Error taxonomy of the shop engine

ERROR CATEGORIES:
  1. ErrValidation       - malformed or empty input, rejected before mutation
  2. ErrNotFound         - referenced entity absent
  3. ErrUnauthorized     - caller role insufficient
  4. ErrInvalidCredential - reauthentication password mismatch
  5. ErrQuorumViolation  - action would leave fewer than two active admins

Structured errors carry context and unwrap to the sentinel, so callers can
use errors.Is for classification and errors.As for details.

Storage failures are wrapped with %w and surfaced as-is. Nothing in this
package retries.
*/
package shop

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")

	ErrNotFound = errors.New("not found")

	ErrUnauthorized = errors.New("unauthorized")

	ErrInvalidCredential = errors.New("invalid credential")

	// ErrQuorumViolation is returned when fewer than MinActiveAdmins active
	// admin accounts exist for a guarded operation.
	ErrQuorumViolation = errors.New("admin quorum violation")
)

// MinActiveAdmins is the quorum required by destructive admin operations.
const MinActiveAdmins = 2

// ErrEmptyCart is the validation failure for a cart with no rows.
var ErrEmptyCart = &ValidationError{Field: "items", Message: "empty cart"}

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "product", "sale", "user"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// QuorumError reports the active admin count that failed the check.
type QuorumError struct {
	ActiveAdmins int
	Required     int
}

func (e *QuorumError) Error() string {
	return fmt.Sprintf("admin quorum violation: %d active admins, need at least %d",
		e.ActiveAdmins, e.Required)
}

func (e *QuorumError) Unwrap() error { return ErrQuorumViolation }

// ProductNotFound builds the error stores return for a missing product.
func ProductNotFound(id ProductID) error { return &NotFoundError{Kind: "product", ID: int64(id)} }

// SaleNotFound builds the error stores return for a missing sale.
func SaleNotFound(id SaleID) error { return &NotFoundError{Kind: "sale", ID: int64(id)} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to caller input or rights.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrQuorumViolation)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
