package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/observability"
)

// Recovery middleware recovers from handler panics and returns the
// standard error envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				observability.Logger().Error("handler panicked",
					zap.Any("panic", recovered),
					zap.String("path", r.URL.Path),
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("stack", string(debug.Stack())))

				writeErrorResponse(w, "INTERNAL_ERROR",
					fmt.Sprintf("panic: %v", recovered),
					GetRequestID(r.Context()), http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// errorResponse mirrors the envelope in internal/errors; duplicated here
// to avoid a circular import with the error responder.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeErrorResponse(w http.ResponseWriter, code, message, requestID string, statusCode int) {
	response := errorResponse{
		Error: errorDetail{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
