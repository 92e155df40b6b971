package middleware

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/interfaces/http/dto"
)

var setupOnce sync.Once

// SetupValidator makes binding errors report json field names and registers
// the "platform" tag. Request DTOs use the tag, so it must run before the
// first bind; repeated calls are no-ops.
func SetupValidator() {
	setupOnce.Do(setupValidator)
}

func setupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	_ = v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		_, err := listing.ParsePlatform(fl.Field().String())
		return err == nil
	})
}

// FormatValidationErrors converts a binding error into the standard 400 body.
// Errors that are not field validations (bad JSON, wrong types) are reported
// as a single invalid-input message.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON, "Request body is not valid JSON for this endpoint", requestID)
	}

	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Code:    e.Tag(),
			Message: validationMessage(e),
		})
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes the 400 response for a binding error
func HandleValidationError(c *gin.Context, err error) {
	resp := FormatValidationErrors(err, GetRequestID(c))
	c.AbortWithStatusJSON(dto.GetHTTPStatus(resp.Error.Code), resp)
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String || e.Kind() == reflect.Slice {
			return "Must have at least " + e.Param() + " items or characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must have at most " + e.Param() + " items"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "platform":
		return "Unknown platform"
	default:
		return "Invalid value"
	}
}
