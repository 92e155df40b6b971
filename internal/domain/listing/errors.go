package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reseller/crosslist/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrListingNotFound       = shared.NewDomainError("LISTING_NOT_FOUND", "Listing not found")
	ErrLinkNotFound          = shared.NewDomainError("LINK_NOT_FOUND", "Platform listing link not found")
	ErrListingSold           = shared.NewDomainError("LISTING_SOLD", "Listing has already sold")
	ErrAlreadyPublished      = shared.NewDomainError("ALREADY_PUBLISHED", "Listing is already live on this platform; update it instead")
	ErrInvalidTransition     = shared.NewDomainError("INVALID_TRANSITION", "Link status transition is not allowed")
	ErrTransitionConflict    = shared.NewDomainError("TRANSITION_CONFLICT", "Link status was changed by another process")
	ErrInsufficientQuantity  = shared.NewDomainError("INSUFFICIENT_QUANTITY", "Sale quantity exceeds the quantity on hand")
	ErrInvalidSaleQuantity   = shared.NewDomainError("INVALID_SALE_QUANTITY", "Sale quantity must be positive")
	ErrUnknownPlatform       = shared.NewDomainError("UNKNOWN_PLATFORM", "Unknown platform")
	ErrPlatformNotConfigured = shared.NewDomainError("PLATFORM_NOT_CONFIGURED", "Platform is not configured")
	ErrPlatformNotLinked     = shared.NewDomainError("PLATFORM_NOT_LINKED", "Listing is not published on this platform")
	ErrDuplicateSKU          = shared.NewDomainError("DUPLICATE_SKU", "A listing with this SKU already exists")
	ErrNotificationNotFound  = shared.NewDomainError("NOTIFICATION_NOT_FOUND", "Notification not found")
	ErrDuplicateSaleSignal   = shared.NewDomainError("DUPLICATE_SALE_SIGNAL", "This sale signal was already processed")
	ErrInvalidSalePrice      = shared.NewDomainError("INVALID_SALE_PRICE", "Sale price and fees must not be negative")

	// Adapter-level causes, wrapped inside Transient/PermanentAdapterError
	ErrPlatformUnavailable   = errors.New("listing: platform temporarily unavailable")
	ErrPlatformRequestFailed = errors.New("listing: platform request failed")
	ErrPlatformAuthFailed    = errors.New("listing: platform authentication failed")
	ErrPlatformRateLimited   = errors.New("listing: platform rate limited")
	ErrPlatformRejected      = errors.New("listing: platform rejected the listing")
	ErrOutputWriteFailed     = errors.New("listing: writing export file failed")
	ErrSecretNotFound        = errors.New("listing: secret not found")
)

// ---------------------------------------------------------------------------
// ValidationError
// ---------------------------------------------------------------------------

// ViolationCode classifies a field-level violation
type ViolationCode string

const (
	ViolationRequired     ViolationCode = "required"
	ViolationTooLong      ViolationCode = "too_long"
	ViolationTooShort     ViolationCode = "too_short"
	ViolationOutOfRange   ViolationCode = "out_of_range"
	ViolationInvalidValue ViolationCode = "invalid_value"
)

// FieldViolation is one broken constraint on one field
type FieldViolation struct {
	Field   string        `json:"field"`
	Code    ViolationCode `json:"code"`
	Message string        `json:"message"`
}

// ValidationError reports a listing that fails required-field, type or length
// constraints. It is raised before any network call and never retried.
type ValidationError struct {
	Platform   Platform
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	if e.Platform != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Platform, strings.Join(parts, "; "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ---------------------------------------------------------------------------
// Adapter errors
// ---------------------------------------------------------------------------

// TransientAdapterError is a timeout, rate limit, 5xx or network failure that
// may succeed on retry.
type TransientAdapterError struct {
	Platform   Platform
	Op         string
	RetryAfter time.Duration
	Err        error
}

func (e *TransientAdapterError) Error() string {
	return fmt.Sprintf("%s %s: transient failure: %v", e.Platform, e.Op, e.Err)
}

func (e *TransientAdapterError) Unwrap() error { return e.Err }

// PermanentAdapterError is an auth failure, content rejection or account
// restriction. Message is the platform's own text, passed through verbatim.
type PermanentAdapterError struct {
	Platform    Platform
	Op          string
	Code        string
	Message     string
	Remediation string
	Err         error
}

func (e *PermanentAdapterError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %s (%s)", e.Platform, e.Op, msg, e.Code)
	}
	return fmt.Sprintf("%s %s: %s", e.Platform, e.Op, msg)
}

func (e *PermanentAdapterError) Unwrap() error { return e.Err }

// ReconciliationConflict is returned to the loser of a concurrent sale. It is
// informational: the item was already marked sold elsewhere.
type ReconciliationConflict struct {
	ListingID       uuid.UUID
	Platform        Platform
	WinningPlatform Platform
}

func (e *ReconciliationConflict) Error() string {
	if e.WinningPlatform != "" {
		return fmt.Sprintf("listing %s already marked sold on %s", e.ListingID, e.WinningPlatform)
	}
	return fmt.Sprintf("listing %s on %s is no longer active", e.ListingID, e.Platform)
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

// ErrorKind is the coarse category of a failure
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindTransient  ErrorKind = "transient"
	ErrorKindPermanent  ErrorKind = "permanent"
	ErrorKindConflict   ErrorKind = "conflict"
)

// ClassifyError maps any error to an ErrorKind. Unknown errors are treated as
// permanent so they are never retried blindly.
func ClassifyError(err error) ErrorKind {
	var (
		validationErr *ValidationError
		transientErr  *TransientAdapterError
		permanentErr  *PermanentAdapterError
		conflictErr   *ReconciliationConflict
	)
	switch {
	case errors.As(err, &validationErr):
		return ErrorKindValidation
	case errors.As(err, &transientErr):
		return ErrorKindTransient
	case errors.As(err, &permanentErr):
		return ErrorKindPermanent
	case errors.As(err, &conflictErr):
		return ErrorKindConflict
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrPlatformUnavailable),
		errors.Is(err, ErrPlatformRateLimited):
		return ErrorKindTransient
	default:
		return ErrorKindPermanent
	}
}

// IsTransient reports whether err is eligible for retry
func IsTransient(err error) bool {
	return err != nil && ClassifyError(err) == ErrorKindTransient
}

// IsPermanent reports whether err must not be retried
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	kind := ClassifyError(err)
	return kind == ErrorKindPermanent || kind == ErrorKindValidation
}

// ResultError is the serializable failure carried in a PlatformResult
type ResultError struct {
	Kind        ErrorKind        `json:"kind"`
	Message     string           `json:"message"`
	Remediation string           `json:"remediation,omitempty"`
	RetryAfter  time.Duration    `json:"retry_after,omitempty"`
	Violations  []FieldViolation `json:"violations,omitempty"`
}

func (e *ResultError) Error() string {
	return e.Message
}

// NewResultError converts an adapter error into the result form
func NewResultError(err error) *ResultError {
	if err == nil {
		return nil
	}
	re := &ResultError{Kind: ClassifyError(err), Message: err.Error()}

	var (
		validationErr *ValidationError
		transientErr  *TransientAdapterError
		permanentErr  *PermanentAdapterError
	)
	switch {
	case errors.As(err, &validationErr):
		re.Violations = validationErr.Violations
		re.Remediation = "fix the listing fields and publish again"
	case errors.As(err, &transientErr):
		re.RetryAfter = transientErr.RetryAfter
	case errors.As(err, &permanentErr):
		re.Remediation = permanentErr.Remediation
	}
	return re
}
