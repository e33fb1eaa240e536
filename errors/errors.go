package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated    = fmt.Errorf("no authenticated user")
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrUsernameTaken      = fmt.Errorf("username is already taken")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrNotAMember         = fmt.Errorf("user is not a member of the chat")
	ErrOwnMessageRead     = fmt.Errorf("sender cannot mark its own message as read")
	ErrTooFewParticipants = fmt.Errorf("chat must have at least 2 participants")

	ErrUserNotFound    = fmt.Errorf("user not found")
	ErrChatNotFound    = fmt.Errorf("chat not found")
	ErrMessageNotFound = fmt.Errorf("message not found")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// MapToHTTPStatus translates domain errors at the API boundary.
// Anything unknown is treated as an infrastructure failure: those must be
// surfaced to the caller, never swallowed as a silent no-op.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotAMember),
		errors.Is(err, ErrOwnMessageRead):
		return http.StatusForbidden
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrChatNotFound),
		errors.Is(err, ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrTooFewParticipants):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
