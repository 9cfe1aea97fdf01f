package httpx

import (
	"net/http"

	"github.com/go-playground/validator/v10"
)

type ErrorCode string

const (
	ErrInvalidJSON      ErrorCode = "invalid_json"
	ErrUnsupportedMedia ErrorCode = "unsupported_media_type"
	ErrValidationFailed ErrorCode = "validation_failed"
	ErrUnauthorized     ErrorCode = "unauthorized"
	ErrForbidden        ErrorCode = "forbidden"
	ErrNotFound         ErrorCode = "not_found"
	ErrMethodNotAllowed ErrorCode = "method_not_allowed"
	ErrConflict         ErrorCode = "conflict"
	ErrTooManyRequests  ErrorCode = "too_many_requests"
	ErrInternal         ErrorCode = "internal_error"
)

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

type ErrorResponse[T any] struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details T         `json:"details,omitempty"`
}

func ValidationDetails(err error) []FieldError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "", Rule: "invalid", Param: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, FieldError{
			Field: e.Field(),
			Rule:  e.Tag(),
			Param: e.Param(),
		})
	}
	return out
}

// NotFound is the single 404 body of the application. Guarded pages reuse
// it so a hidden page looks exactly like a missing one.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, ErrorResponse[any]{
		Code:    ErrNotFound,
		Message: "not found",
	})
}
