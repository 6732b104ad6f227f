package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/accounts"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// JSONResponse is a fluent builder for the API's JSON envelope. Every body
// carries "success"; other keys are added per endpoint.
type JSONResponse struct {
	statusCode int
	fields     map[string]any
	headers    map[string]string
}

// NewJSONResponse starts a 200 response with success=true.
func NewJSONResponse() *JSONResponse {
	return &JSONResponse{
		statusCode: http.StatusOK,
		fields:     map[string]any{"success": true},
		headers:    make(map[string]string),
	}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

// Field sets a top-level key in the body.
func (b *JSONResponse) Field(key string, value any) *JSONResponse {
	b.fields[key] = value
	return b
}

func (b *JSONResponse) Message(msg string) *JSONResponse {
	return b.Field("message", msg)
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Write sends the built response.
func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.fields)
}

// ErrorResponse builds a failure body: success=false and a client-safe
// message.
func ErrorResponse(statusCode int, message string) *JSONResponse {
	return NewJSONResponse().
		Status(statusCode).
		Field("success", false).
		Field("error", message)
}

// writeError maps an error kind to its status and message. Datastore and
// other internal failures are logged here and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fields core.FieldErrors
	var verr *core.ValidationError

	switch {
	case errors.As(err, &fields):
		ErrorResponse(http.StatusBadRequest, fields.Error()).Field("details", fields).Write(w)
	case errors.As(err, &verr):
		ErrorResponse(http.StatusBadRequest, verr.Msg).Write(w)
	case errors.Is(err, core.ErrInvalidOrExpiredToken):
		ErrorResponse(http.StatusBadRequest, "Invalid or expired token").Write(w)
	case errors.Is(err, core.ErrNotFound):
		ErrorResponse(http.StatusNotFound, "Transaction not found").Write(w)
	case errors.Is(err, accounts.ErrInvalidCredentials):
		ErrorResponse(http.StatusUnauthorized, "Invalid email or password").Write(w)
	case errors.Is(err, accounts.ErrEmailTaken):
		ErrorResponse(http.StatusConflict, "User already exists").Write(w)
	default:
		errorType := log.ErrorTypeInternal
		if errors.Is(err, core.ErrPersistence) {
			errorType = log.ErrorTypeDatabase
		}
		logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldErrorType, errorType,
			log.FieldPath, r.URL.Path,
			log.FieldError, err.Error())
		ErrorResponse(http.StatusInternalServerError, "Internal server error").Write(w)
	}
}
