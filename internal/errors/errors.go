// Package errors defines the typed application errors and the JSON
// error envelope the HTTP layer returns.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/observability"
	"github.com/sitelens/sitelens/internal/server/middleware"
)

// AppError carries a machine-readable code alongside the message.
type AppError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches structured detail fields for the response body.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// User errors (400-level).

func NewInvalidInputError(message string) *AppError {
	return &AppError{Code: "INVALID_INPUT", Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message}
}

func NewMethodNotAllowedError(message string) *AppError {
	return &AppError{Code: "METHOD_NOT_ALLOWED", Message: message}
}

func NewConflictError(message string) *AppError {
	return &AppError{Code: "CONFLICT", Message: message}
}

func NewValidationError(message string) *AppError {
	return &AppError{Code: "VALIDATION_FAILED", Message: message}
}

// Server errors (500-level).

func NewInternalError(message string) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message}
}

func NewDatabaseError(message string) *AppError {
	return &AppError{Code: "DATABASE_ERROR", Message: message}
}

func NewExternalServiceError(message string) *AppError {
	return &AppError{Code: "EXTERNAL_SERVICE_ERROR", Message: message}
}

// Wrap helpers for existing errors.

func WrapInvalidInput(err error, message string) *AppError {
	return &AppError{Code: "INVALID_INPUT", Message: message, Err: err}
}

func WrapNotFound(err error, message string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: message, Err: err}
}

func WrapConflict(err error, message string) *AppError {
	return &AppError{Code: "CONFLICT", Message: message, Err: err}
}

func WrapValidation(err error, message string) *AppError {
	return &AppError{Code: "VALIDATION_FAILED", Message: message, Err: err}
}

func WrapInternal(err error, message string) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message, Err: err}
}

func WrapDatabase(err error, message string) *AppError {
	return &AppError{Code: "DATABASE_ERROR", Message: message, Err: err}
}

func WrapExternalService(err error, message string) *AppError {
	return &AppError{Code: "EXTERNAL_SERVICE_ERROR", Message: message, Err: err}
}

// Ensure normalizes any error into an AppError.
func Ensure(err error) *AppError {
	if err == nil {
		return NewInternalError("unexpected nil error")
	}

	var app *AppError
	if errors.As(err, &app) {
		return app
	}
	return &AppError{Code: "INTERNAL_ERROR", Message: "unexpected error", Err: err}
}

// HTTPStatusFromCode resolves the HTTP status for an error code.
func HTTPStatusFromCode(code string) int {
	switch code {
	case "INVALID_INPUT", "VALIDATION_FAILED":
		return http.StatusBadRequest
	case "NOT_FOUND":
		return http.StatusNotFound
	case "METHOD_NOT_ALLOWED":
		return http.StatusMethodNotAllowed
	case "CONFLICT":
		return http.StatusConflict
	case "EXTERNAL_SERVICE_ERROR":
		return http.StatusBadGateway
	case "SERVICE_UNAVAILABLE":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorDetail captures the error body returned to callers.
type HTTPErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// HTTPErrorResponse wraps HTTPErrorDetail in the standard envelope.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// RespondWithError normalizes the supplied error and writes a JSON
// response, logging server-side failures.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if w == nil {
		return
	}

	app := Ensure(err)
	statusCode := HTTPStatusFromCode(app.Code)

	var requestID string
	if r != nil {
		requestID = middleware.GetRequestID(r.Context())
	}

	response := HTTPErrorResponse{
		Error: HTTPErrorDetail{
			Code:      app.Code,
			Message:   app.Message,
			Details:   app.Details,
			RequestID: requestID,
		},
	}

	logger := observability.Logger()
	fields := []zap.Field{
		zap.String("error_code", app.Code),
		zap.Int("http_status", statusCode),
	}
	if requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if app.Err != nil {
		fields = append(fields, zap.Error(app.Err))
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error(app.Message, fields...)
	} else {
		logger.Info(app.Message, fields...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
