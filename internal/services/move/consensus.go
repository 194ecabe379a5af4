package move

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/mcoot/pairplay/internal/dependencies/clock"
	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/services/session"
	"github.com/mcoot/pairplay/internal/storage"
)

// StatusUpdater applies a game's new status once a deciding move commits
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id model.GameID, status model.GameStatus) (*model.Game, error)
}

// Notifier pushes events to players
type Notifier interface {
	Send(ctx context.Context, username string, eventType model.EventType, payload any) error
}

// Consensus runs the two-phase move protocol. A proposal is held for the
// opponent, who must verify an identical move before it is committed.
//
// Each verifier has a single pending slot: a newer proposal replaces an
// unverified one.
type Consensus struct {
	authority *session.Authority
	storage   storage.Storage
	games     StatusUpdater
	notifier  Notifier
	clock     clock.Clock
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]model.Move

	// Striped so lock memory stays fixed however many users play. Verify
	// takes a verifier stripe and then a game stripe, never the reverse.
	verifierLocks [lockStripes]sync.Mutex
	gameLocks     [lockStripes]sync.Mutex
}

const lockStripes = 64

// New creates a new move Consensus
func New(
	authority *session.Authority,
	storage storage.Storage,
	games StatusUpdater,
	notifier Notifier,
	clock clock.Clock,
	logger *slog.Logger,
) *Consensus {
	return &Consensus{
		authority: authority,
		storage:   storage,
		games:     games,
		notifier:  notifier,
		clock:     clock,
		logger:    logger,
		pending:   make(map[string]model.Move),
	}
}

// ListMoves returns the committed moves of a game. Pending proposals are
// not included.
func (c *Consensus) ListMoves(ctx context.Context, gameID model.GameID, userCookie, gameCookie string) ([]*model.Move, error) {
	if _, err := c.authorize(ctx, gameID, userCookie, gameCookie); err != nil {
		return nil, err
	}
	return c.storage.GetMovesForGame(ctx, gameID)
}

// ProposeMove holds a move for the requester's opponent to verify and tells
// them about it. The game comes from the game cookie.
func (c *Consensus) ProposeMove(ctx context.Context, move model.Move, userCookie, gameCookie string) error {
	requester, game, err := c.resolve(ctx, userCookie, gameCookie)
	if err != nil {
		return err
	}
	if !game.HasPlayer(requester) {
		return model.ErrNotInGame
	}
	if game.Status.IsTerminal() {
		return model.ErrGameOver
	}

	verifier := game.Opponent(requester)
	proposal := model.Move{
		GameID:        game.ID,
		StartLocation: move.StartLocation,
		EndLocation:   move.EndLocation,
		Result:        move.Result,
	}

	unlock := c.lock(verifier)
	_, replaced := c.getPending(verifier)
	c.setPending(verifier, proposal)
	unlock()

	if replaced {
		c.logger.Warn("unverified move replaced",
			slog.String("username", verifier),
			slog.Int("game_id", int(game.ID)))
	}

	payload := model.MoveProposedPayload{
		GameID:        game.ID,
		Proposer:      requester,
		StartLocation: proposal.StartLocation,
		EndLocation:   proposal.EndLocation,
		Result:        proposal.Result,
	}
	if err := c.notifier.Send(ctx, verifier, model.EventMoveProposed, payload); err != nil {
		c.logger.Warn("failed to notify verifier",
			slog.String("username", verifier),
			slog.Int("game_id", int(game.ID)),
			slog.String("error", err.Error()))
	}
	return nil
}

// VerifyMove commits the requester's pending move if it matches. A mismatch
// leaves the pending move in place.
func (c *Consensus) VerifyMove(ctx context.Context, move model.Move, userCookie, gameCookie string) (*model.Move, error) {
	verifier, game, err := c.resolve(ctx, userCookie, gameCookie)
	if err != nil {
		return nil, err
	}
	move.GameID = game.ID

	unlock := c.lock(verifier)
	defer unlock()

	pending, ok := c.getPending(verifier)
	if !ok || !pending.Equal(move) {
		return nil, model.ErrMoveNotPending
	}

	// Both players can hold a pending move for the same game, so the
	// terminal check, commit and status change run under the game's lock
	// against a fresh read of the game
	unlockGame := c.lockGame(game.ID)
	defer unlockGame()

	game, err = c.storage.GetGame(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	if game.Status.IsTerminal() {
		return nil, model.ErrGameOver
	}

	pending.CreatedAt = c.clock.Now()
	committed, err := c.storage.AppendMove(ctx, &pending)
	if err != nil {
		return nil, err
	}

	if committed.IsFinal() {
		if _, err := c.games.UpdateStatus(ctx, game.ID, model.ParseGameStatus(committed.Result)); err != nil {
			return nil, err
		}
	}
	c.deletePending(verifier)

	c.logger.Info("move committed",
		slog.Int("game_id", int(game.ID)),
		slog.Int("move_id", committed.ID),
		slog.String("username", verifier))

	return committed, nil
}

// Pending returns the move awaiting a user's verification, if any
func (c *Consensus) Pending(username string) (model.Move, bool) {
	return c.getPending(username)
}

// authorize validates both cookies and checks the game cookie is for gameID
func (c *Consensus) authorize(ctx context.Context, gameID model.GameID, userCookie, gameCookie string) (string, error) {
	if err := c.authority.ValidateCookies(ctx, userCookie, gameCookie); err != nil {
		return "", err
	}
	cookieGameID, err := session.GameIDFromCookie(gameCookie)
	if err != nil {
		return "", err
	}
	if cookieGameID != gameID {
		return "", model.ErrInvalidGameCookie
	}
	return session.ExtractQualifier(userCookie)
}

// resolve validates both cookies and loads the requester and game they name
func (c *Consensus) resolve(ctx context.Context, userCookie, gameCookie string) (string, *model.Game, error) {
	gameID, err := session.GameIDFromCookie(gameCookie)
	if err != nil {
		return "", nil, err
	}
	username, err := c.authorize(ctx, gameID, userCookie, gameCookie)
	if err != nil {
		return "", nil, err
	}
	game, err := c.storage.GetGame(ctx, gameID)
	if err != nil {
		return "", nil, err
	}
	return username, game, nil
}

// lock serializes work on one verifier's pending slot
func (c *Consensus) lock(username string) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	l := &c.verifierLocks[h.Sum32()%lockStripes]
	l.Lock()
	return l.Unlock
}

// lockGame serializes commits to one game
func (c *Consensus) lockGame(id model.GameID) (unlock func()) {
	l := &c.gameLocks[uint(id)%lockStripes]
	l.Lock()
	return l.Unlock
}

func (c *Consensus) getPending(username string) (model.Move, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.pending[username]
	return m, ok
}

func (c *Consensus) setPending(username string, m model.Move) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[username] = m
}

func (c *Consensus) deletePending(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, username)
}
