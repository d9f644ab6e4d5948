// Package gameerr defines the typed error taxonomy that use cases raise
// and the HTTP boundary translates to status codes.
package gameerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure independent of transport.
type Code string

const (
	CodeInvalidInput          Code = "INVALID_INPUT"
	CodeValidationError       Code = "VALIDATION_ERROR"
	CodeUnauthorized          Code = "UNAUTHORIZED"
	CodeWrongPlayer           Code = "WRONG_PLAYER"
	CodeGameNotFound          Code = "GAME_NOT_FOUND"
	CodePlayerNotInGame       Code = "PLAYER_NOT_IN_GAME"
	CodeGameExpired           Code = "GAME_EXPIRED"
	CodeGameAlreadyFinished   Code = "GAME_ALREADY_FINISHED"
	CodeInvalidState          Code = "INVALID_STATE"
	CodeInvalidSelection      Code = "INVALID_SELECTION"
	CodeConfirmationNotNeeded Code = "CONFIRMATION_NOT_REQUIRED"
	CodeInternal              Code = "INTERNAL_ERROR"
)

// httpStatus maps each code to the status the HTTP boundary returns for it.
var httpStatus = map[Code]int{
	CodeInvalidInput:          http.StatusBadRequest,
	CodeValidationError:       http.StatusBadRequest,
	CodeUnauthorized:          http.StatusUnauthorized,
	CodeWrongPlayer:           http.StatusConflict,
	CodeGameNotFound:          http.StatusNotFound,
	CodePlayerNotInGame:       http.StatusNotFound,
	CodeGameExpired:           http.StatusGone,
	CodeGameAlreadyFinished:   http.StatusConflict,
	CodeInvalidState:          http.StatusConflict,
	CodeInvalidSelection:      http.StatusConflict,
	CodeConfirmationNotNeeded: http.StatusConflict,
	CodeInternal:              http.StatusInternalServerError,
}

// GameError is the error type every use case returns on a validation or
// state failure. It carries enough to build the HTTP error envelope
// directly, without re-deriving a status code from a string message.
type GameError struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *GameError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GameError) Unwrap() error { return e.cause }

// HTTPStatus returns the status code this error maps to, defaulting to 500
// for an unrecognized code (there shouldn't be one, but a typo here must
// never silently become a 200).
func (e *GameError) HTTPStatus() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New builds a GameError with no wrapped cause.
func New(code Code, message string) *GameError {
	return &GameError{Code: code, Message: message}
}

// Newf builds a GameError with a formatted message.
func Newf(code Code, format string, args ...any) *GameError {
	return &GameError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a GameError carrying an underlying cause, typically used for
// CodeInternal so the correlation stays in the log but never reaches the
// client message.
func Wrap(code Code, message string, cause error) *GameError {
	return &GameError{Code: code, Message: message, cause: cause}
}

// WithDetails attaches structured detail fields to the error's {error:{...}}
// envelope (e.g. {"field": "cardId"}).
func (e *GameError) WithDetails(details map[string]any) *GameError {
	e.Details = details
	return e
}

// As is a convenience wrapper over errors.As for callers translating err
// into an HTTP response.
func As(err error) (*GameError, bool) {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
