package dto

import (
	"errors"
	"net/http"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeValidation is a listing that breaks field constraints
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	ErrCodeTooLarge     = "ERR_REQUEST_TOO_LARGE"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	ErrCodeInvalidState          = "ERR_INVALID_STATE"
	ErrCodeInsufficientQuantity  = "ERR_INSUFFICIENT_QUANTITY"
	ErrCodePlatformNotConfigured = "ERR_PLATFORM_NOT_CONFIGURED"
)

// Marketplace error codes
const (
	// ErrCodeSaleConflict is returned to the losing side of a concurrent sale
	ErrCodeSaleConflict      = "ERR_SALE_CONFLICT"
	ErrCodePlatformTransient = "ERR_PLATFORM_UNAVAILABLE"
	ErrCodePlatformRejected  = "ERR_PLATFORM_REJECTED"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeSaleConflict:        http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:          http.StatusUnprocessableEntity,
	ErrCodeInsufficientQuantity:  http.StatusUnprocessableEntity,
	ErrCodePlatformNotConfigured: http.StatusUnprocessableEntity,

	// Marketplace failures surface as gateway errors
	ErrCodePlatformTransient: http.StatusServiceUnavailable,
	ErrCodePlatformRejected:  http.StatusBadGateway,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,

	"LISTING_NOT_FOUND":       ErrCodeNotFound,
	"LINK_NOT_FOUND":          ErrCodeNotFound,
	"NOTIFICATION_NOT_FOUND":  ErrCodeNotFound,
	"DUPLICATE_SKU":           ErrCodeAlreadyExists,
	"ALREADY_PUBLISHED":       ErrCodeAlreadyExists,
	"DUPLICATE_SALE_SIGNAL":   ErrCodeAlreadyExists,
	"TRANSITION_CONFLICT":     ErrCodeConcurrencyConflict,
	"LISTING_SOLD":            ErrCodeInvalidState,
	"INVALID_TRANSITION":      ErrCodeInvalidState,
	"PLATFORM_NOT_LINKED":     ErrCodeInvalidState,
	"INSUFFICIENT_QUANTITY":   ErrCodeInsufficientQuantity,
	"PLATFORM_NOT_CONFIGURED": ErrCodePlatformNotConfigured,
	"UNKNOWN_PLATFORM":        ErrCodeInvalidInput,
	"INVALID_SALE_QUANTITY":   ErrCodeInvalidInput,
	"INVALID_SALE_PRICE":      ErrCodeInvalidInput,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}

// ErrorFromDomain converts err into a status code and response body.
// Errors that are not part of the domain vocabulary become a generic 500
// so internal details never reach the caller.
func ErrorFromDomain(err error, requestID string) (int, Response) {
	var (
		validationErr *listing.ValidationError
		conflictErr   *listing.ReconciliationConflict
		transientErr  *listing.TransientAdapterError
		permanentErr  *listing.PermanentAdapterError
		domainErr     *shared.DomainError
	)

	switch {
	case errors.As(err, &validationErr):
		details := make([]ValidationDetail, 0, len(validationErr.Violations))
		for _, v := range validationErr.Violations {
			details = append(details, ValidationDetail{Field: v.Field, Code: string(v.Code), Message: v.Message})
		}
		return http.StatusBadRequest, NewValidationErrorResponse(validationErr.Error(), requestID, details)

	case errors.As(err, &conflictErr):
		return http.StatusConflict, NewErrorResponseWithRequestID(ErrCodeSaleConflict, conflictErr.Error(), requestID)

	case errors.As(err, &domainErr):
		code := NormalizeErrorCode(domainErr.Code)
		return GetHTTPStatus(code), NewErrorResponseWithRequestID(code, domainErr.Message, requestID)

	case errors.As(err, &transientErr):
		return GetHTTPStatus(ErrCodePlatformTransient),
			NewErrorResponseWithRequestID(ErrCodePlatformTransient, transientErr.Error(), requestID)

	case errors.As(err, &permanentErr):
		return GetHTTPStatus(ErrCodePlatformRejected),
			NewErrorResponseWithRequestID(ErrCodePlatformRejected, permanentErr.Error(), requestID)
	}

	return http.StatusInternalServerError,
		NewErrorResponseWithRequestID(ErrCodeInternal, "An unexpected error occurred", requestID)
}
