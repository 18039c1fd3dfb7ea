package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"budget/internal/assistant"
	"budget/internal/auth"
	"budget/internal/core"
	"budget/internal/log"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Client-facing messages.
const (
	msgMissingCredentials = "Username and password are required"
	msgPasswordTooLong    = "Password is too long"
	msgUsernameTaken      = "Username already taken"
	msgInvalidCredentials = "Invalid credentials"
	msgUnauthorized       = "Unauthorized"
	msgInvalidToken       = "Invalid or expired token"
	msgEntriesNotArray    = "Entries should be an array"
	msgPromptRequired     = "Prompt is required"
	msgAIFailed           = "AI request failed"
	msgServerError        = "Server error"
	msgInvalidBody        = "Invalid request body"
	msgTooManyRequests    = "Too many requests"

	msgUserRegistered = "User registered"
	msgEntriesUpdated = "Entries updated"
)

var errorTypes = map[error]string{
	auth.ErrMissingCredentials: log.ErrorTypeValidation,
	auth.ErrPasswordTooLong:    log.ErrorTypeValidation,
	core.ErrInvalidEntry:       log.ErrorTypeValidation,
	assistant.ErrEmptyPrompt:   log.ErrorTypeValidation,
	core.ErrUsernameTaken:      log.ErrorTypeConflict,
	auth.ErrInvalidCredentials: log.ErrorTypeAuth,
	auth.ErrMissingToken:       log.ErrorTypeAuth,
	auth.ErrInvalidToken:       log.ErrorTypeAuth,
	assistant.ErrUpstream:      log.ErrorTypeUpstream,
}

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

// errBadRequest carries a client-visible message for malformed input.
type errBadRequest struct{ msg string }

func (e errBadRequest) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return errBadRequest{msg: fmt.Sprintf(format, args...)}
}

// statusFor maps a service error to a status code and public message.
// Only validation errors expose their text.
func statusFor(err error) (int, string) {
	var br errBadRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, br.msg
	case errors.Is(err, auth.ErrMissingCredentials):
		return http.StatusBadRequest, msgMissingCredentials
	case errors.Is(err, auth.ErrPasswordTooLong):
		return http.StatusBadRequest, msgPasswordTooLong
	case errors.Is(err, core.ErrInvalidEntry):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, assistant.ErrEmptyPrompt):
		return http.StatusBadRequest, msgPromptRequired
	case errors.Is(err, core.ErrUsernameTaken):
		return http.StatusConflict, msgUsernameTaken
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials
	case errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, msgInvalidToken
	case errors.Is(err, assistant.ErrUpstream):
		return http.StatusInternalServerError, msgAIFailed
	default:
		return http.StatusInternalServerError, msgServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// writeError logs err at a level matching its status and sends the public
// message. 5xx details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithOperation(op).WithError(err, log.ErrorType(err, errorTypes))
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// decodeJSON reads a single JSON value into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("Request body too large")
		}
		return badRequest(msgInvalidBody)
	}
	return nil
}
