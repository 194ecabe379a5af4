package storage

import (
	"context"
	"time"

	"github.com/mcoot/pairplay/internal/model"
)

// UserUpdateFunc mutates a user inside an atomic read-modify-write
type UserUpdateFunc func(user *model.User) error

// GameUpdateFunc mutates a game inside an atomic read-modify-write
type GameUpdateFunc func(game *model.Game) error

// Storage defines the interface for data persistence.
// Backends return copies; callers mutate only through the Update methods.
type Storage interface {
	// User directory
	AddUser(ctx context.Context, user *model.User) error // ErrUserAlreadyExists if taken
	GetUser(ctx context.Context, username string) (*model.User, error)
	UserExists(ctx context.Context, username string) (bool, error)
	UpdateUser(ctx context.Context, username string, fn UserUpdateFunc) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)

	// Game registry
	CreateGame(ctx context.Context, player1, player2 string, createdAt time.Time) (*model.Game, error)
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)
	UpdateGame(ctx context.Context, id model.GameID, fn GameUpdateFunc) (*model.Game, error)
	GetGamesForUser(ctx context.Context, username string) ([]*model.Game, error)

	// Move ledger
	AppendMove(ctx context.Context, move *model.Move) (*model.Move, error)
	GetMovesForGame(ctx context.Context, id model.GameID) ([]*model.Move, error)
}
