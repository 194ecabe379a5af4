package matchmaker

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/services/session"
)

// GameCreator registers new games
type GameCreator interface {
	CreateGame(ctx context.Context, player1, player2 string) (*model.Game, error)
}

// Notifier pushes events to players
type Notifier interface {
	Send(ctx context.Context, username string, eventType model.EventType, payload any) error
}

// Matchmaker pairs players from a FIFO queue
type Matchmaker struct {
	games    GameCreator
	notifier Notifier
	logger   *slog.Logger

	// mu is held for a whole join so that check-and-pair is atomic
	mu    sync.Mutex
	queue []string
}

// New creates a new Matchmaker
func New(games GameCreator, notifier Notifier, logger *slog.Logger) *Matchmaker {
	return &Matchmaker{
		games:    games,
		notifier: notifier,
		logger:   logger,
	}
}

// JoinRandomQueue pairs the caller with the longest-waiting player, or
// queues the caller if nobody is waiting. The waiting player becomes
// player 1. A nil game means the caller is (still) queued.
func (m *Matchmaker) JoinRandomQueue(ctx context.Context, username string) (*model.Game, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.Contains(m.queue, username) {
		return nil, "", nil
	}

	if len(m.queue) == 0 {
		m.queue = append(m.queue, username)
		m.logger.Info("player queued", slog.String("username", username))
		return nil, "", nil
	}

	opponent := m.queue[0]
	m.queue = m.queue[1:]

	game, cookie, err := m.CreateGameWithOpponent(ctx, opponent, username)
	if err != nil {
		// Put the opponent back at the front so they keep their place
		m.queue = append([]string{opponent}, m.queue...)
		return nil, "", err
	}
	return game, cookie, nil
}

// LeaveQueue removes a player from the queue, reporting whether they were in it
func (m *Matchmaker) LeaveQueue(username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.Index(m.queue, username)
	if i < 0 {
		return false
	}
	m.queue = slices.Delete(m.queue, i, i+1)
	return true
}

// QueueLength returns the number of waiting players
func (m *Matchmaker) QueueLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// CreateGameWithOpponent creates a game between two players and tells both
// of them about it. Notification is best effort.
func (m *Matchmaker) CreateGameWithOpponent(ctx context.Context, playerA, playerB string) (*model.Game, string, error) {
	if playerA == playerB {
		return nil, "", model.ErrSamePlayer
	}

	game, err := m.games.CreateGame(ctx, playerA, playerB)
	if err != nil {
		return nil, "", err
	}
	cookie := session.GameCookie(game)

	payload := model.GameCreatedPayload{
		GameID:     game.ID,
		Player1:    game.Player1,
		Player2:    game.Player2,
		Status:     game.Status,
		GameCookie: session.EncodeCookie(cookie),
	}
	for _, username := range []string{game.Player1, game.Player2} {
		if err := m.notifier.Send(ctx, username, model.EventGameCreated, payload); err != nil {
			m.logger.Warn("failed to notify player of new game",
				slog.String("username", username),
				slog.Int("game_id", int(game.ID)),
				slog.String("error", err.Error()),
			)
		}
	}

	return game, cookie, nil
}
