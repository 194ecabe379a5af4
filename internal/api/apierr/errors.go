package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/services/keyexchange"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeUserAlreadyExists  = "USER_ALREADY_EXISTS"
	CodeInvalidUsername    = "INVALID_USERNAME"
	CodeInvalidPassword    = "INVALID_PASSWORD"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeInvalidFriend      = "INVALID_FRIEND"
	CodeInvalidUserCookie  = "INVALID_USER_COOKIE"
	CodeGameNotFound       = "GAME_NOT_FOUND"
	CodeInvalidGameCookie  = "INVALID_GAME_COOKIE"
	CodeSamePlayer         = "SAME_PLAYER"
	CodeNotInGame          = "NOT_IN_GAME"
	CodeGameOver           = "GAME_OVER"
	CodeMoveNotPending     = "MOVE_NOT_PENDING"
	CodeGameError          = "GAME_ERROR"
	CodeKeyExchangeRequired = "KEY_EXCHANGE_REQUIRED"
	CodeInvalidKeyExchange = "INVALID_KEY_EXCHANGE"
	CodeInvalidCiphertext  = "INVALID_CIPHERTEXT"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Key exchange errors; the missing-state ones also wrap ErrUserNotFound
	case errors.Is(err, keyexchange.ErrNoExponent), errors.Is(err, keyexchange.ErrNoSharedKey):
		return &httpError{http.StatusNotFound, APIError{CodeKeyExchangeRequired, err.Error()}}
	case errors.Is(err, keyexchange.ErrInvalidKeyExchange):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidKeyExchange, "Invalid key exchange parameters"}}
	case errors.Is(err, keyexchange.ErrInvalidCiphertext):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidCiphertext, "Password could not be decrypted"}}

	// User errors
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeUserNotFound, "User not found"}}
	case errors.Is(err, model.ErrUserAlreadyExists):
		return &httpError{http.StatusConflict, APIError{CodeUserAlreadyExists, "User already exists"}}
	case errors.Is(err, model.ErrInvalidUsername):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidUsername, "Username must be non-empty and not contain ':'"}}
	case errors.Is(err, model.ErrInvalidPassword):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidPassword, "Invalid password"}}
	case errors.Is(err, model.ErrInvalidEmail):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidEmail, "Invalid email"}}
	case errors.Is(err, model.ErrInvalidFriend):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidFriend, "Invalid friend"}}
	case errors.Is(err, model.ErrInvalidUserCookie):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidUserCookie, "Invalid user cookie"}}

	// Game errors
	case errors.Is(err, model.ErrGameNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeGameNotFound, "Game not found"}}
	case errors.Is(err, model.ErrInvalidGameCookie):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidGameCookie, "Invalid game cookie"}}
	case errors.Is(err, model.ErrSamePlayer):
		return &httpError{http.StatusBadRequest, APIError{CodeSamePlayer, "Can't have a game with the same player twice"}}
	case errors.Is(err, model.ErrNotInGame):
		return &httpError{http.StatusForbidden, APIError{CodeNotInGame, "Player is not in this game"}}
	case errors.Is(err, model.ErrGameOver):
		return &httpError{http.StatusConflict, APIError{CodeGameOver, "Game is already finished"}}
	case errors.Is(err, model.ErrMoveNotPending):
		return &httpError{http.StatusConflict, APIError{CodeMoveNotPending, "Move not meant to be validated"}}
	case errors.Is(err, model.ErrGame):
		return &httpError{http.StatusBadRequest, APIError{CodeGameError, err.Error()}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) error {
	return &httpError{http.StatusForbidden, APIError{CodeForbidden, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
