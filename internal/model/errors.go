package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// User errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidFriend     = errors.New("invalid friend")
	ErrInvalidUserCookie = errors.New("invalid user cookie")

	// Game errors
	ErrGameNotFound      = errors.New("game not found")
	ErrInvalidGameCookie = errors.New("invalid game cookie")

	// ErrGame is the general game rule violation; the errors below wrap it
	ErrGame           = errors.New("game error")
	ErrSamePlayer     = fmt.Errorf("%w: can't have a game with the same player twice", ErrGame)
	ErrNotInGame      = fmt.Errorf("%w: player is not in this game", ErrGame)
	ErrGameOver       = fmt.Errorf("%w: game is already finished", ErrGame)
	ErrMoveNotPending = fmt.Errorf("%w: move not meant to be validated", ErrGame)
)
