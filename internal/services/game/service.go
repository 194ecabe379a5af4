package game

import (
	"context"
	"log/slog"

	"github.com/mcoot/pairplay/internal/dependencies/clock"
	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/services/session"
	"github.com/mcoot/pairplay/internal/storage"
)

// ResultRecorder updates player counters once a game is decided
type ResultRecorder interface {
	RecordResult(ctx context.Context, game *model.Game) error
}

// Service manages the game registry
type Service struct {
	storage storage.Storage
	results ResultRecorder
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new game Service
func New(
	storage storage.Storage,
	results ResultRecorder,
	clock clock.Clock,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage: storage,
		results: results,
		clock:   clock,
		logger:  logger,
	}
}

// CreateGame registers a new game between two existing users. The registry
// assigns the next dense ID.
func (s *Service) CreateGame(ctx context.Context, player1, player2 string) (*model.Game, error) {
	if player1 == player2 {
		return nil, model.ErrSamePlayer
	}
	for _, username := range []string{player1, player2} {
		exists, err := s.storage.UserExists(ctx, username)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, model.ErrUserNotFound
		}
	}

	game, err := s.storage.CreateGame(ctx, player1, player2, s.clock.Now())
	if err != nil {
		s.logger.Error("failed to create game",
			slog.String("player1", player1),
			slog.String("player2", player2),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("game created",
		slog.Int("game_id", int(game.ID)),
		slog.String("player1", player1),
		slog.String("player2", player2),
	)

	return game, nil
}

// GetGame retrieves a game by ID
func (s *Service) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	return s.storage.GetGame(ctx, id)
}

// GamesForUser lists every game the user plays in, oldest first
func (s *Service) GamesForUser(ctx context.Context, username string) ([]*model.Game, error) {
	return s.storage.GetGamesForUser(ctx, username)
}

// GameCookieFor returns a game and its cookie to one of its players
func (s *Service) GameCookieFor(ctx context.Context, id model.GameID, username string) (*model.Game, string, error) {
	game, err := s.storage.GetGame(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !game.HasPlayer(username) {
		return nil, "", model.ErrNotInGame
	}
	return game, session.GameCookie(game), nil
}

// UpdateStatus moves a game to a new status. A decided game never changes
// again; reaching a decided status records the result for both players.
func (s *Service) UpdateStatus(ctx context.Context, id model.GameID, status model.GameStatus) (*model.Game, error) {
	game, err := s.storage.UpdateGame(ctx, id, func(g *model.Game) error {
		if g.Status.IsTerminal() {
			return model.ErrGameOver
		}
		g.Status = status
		g.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if status.IsTerminal() {
		s.logger.Info("game finished",
			slog.Int("game_id", int(id)),
			slog.String("status", string(status)),
		)
		if err := s.results.RecordResult(ctx, game); err != nil {
			return nil, err
		}
	}

	return game, nil
}
