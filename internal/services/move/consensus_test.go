package move

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pairplay/internal/dependencies/mocks"
	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/services/game"
	"github.com/mcoot/pairplay/internal/services/session"
	"github.com/mcoot/pairplay/internal/storage/memory"
	"github.com/mcoot/pairplay/internal/testutil"
)

type sentEvent struct {
	username string
	payload  any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

func (n *recordingNotifier) Send(ctx context.Context, username string, eventType model.EventType, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{username, payload})
	return n.err
}

type recordingResults struct {
	games []model.Game
}

func (r *recordingResults) RecordResult(ctx context.Context, game *model.Game) error {
	r.games = append(r.games, *game)
	return nil
}

type ConsensusSuite struct {
	suite.Suite
	storage   *memory.Storage
	authority *session.Authority
	notifier  *recordingNotifier
	results   *recordingResults
	clock     *mocks.MockClock
	games     *game.Service
	consensus *Consensus
	ctx       context.Context

	game        *model.Game
	aliceCookie string
	bobCookie   string
	carolCookie string
	gameCookie  string
	otherGame   *model.Game
	otherCookie string
}

func TestConsensusSuite(t *testing.T) {
	suite.Run(t, new(ConsensusSuite))
}

func (s *ConsensusSuite) SetupTest() {
	s.storage = memory.New()
	s.authority = session.New(s.storage)
	s.notifier = &recordingNotifier{}
	s.results = &recordingResults{}
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.games = game.New(s.storage, s.results, s.clock, testutil.NopLogger())
	s.consensus = New(s.authority, s.storage, s.games, s.notifier, s.clock, testutil.NopLogger())
	s.ctx = context.Background()

	for _, name := range []string{"alice", "bob", "carol"} {
		s.Require().NoError(s.storage.AddUser(s.ctx, &model.User{
			Username: name,
			Password: "hash-" + name,
			Email:    name + "@example.com",
		}))
	}
	s.aliceCookie = s.mintUser("alice")
	s.bobCookie = s.mintUser("bob")
	s.carolCookie = s.mintUser("carol")

	// Game 0 is someone else's so the game under test is game 1
	s.otherGame = s.createGame("carol", "bob")
	s.otherCookie = session.GameCookie(s.otherGame)
	s.game = s.createGame("alice", "bob")
	s.gameCookie = session.GameCookie(s.game)
}

func (s *ConsensusSuite) mintUser(username string) string {
	cookie, err := s.authority.MintUserCookie(s.ctx, username)
	s.Require().NoError(err)
	return cookie
}

func (s *ConsensusSuite) createGame(p1, p2 string) *model.Game {
	created, err := s.games.CreateGame(s.ctx, p1, p2)
	s.Require().NoError(err)
	return created
}

func mv(start, end, result string) model.Move {
	return model.Move{StartLocation: start, EndLocation: end, Result: result}
}

// Round trip tests

func (s *ConsensusSuite) TestProposeThenVerifyCommitsOneMove() {
	s.Equal(model.GameID(1), s.game.ID)

	s.Require().NoError(s.consensus.ProposeMove(s.ctx, mv("e2", "e4", ""), s.aliceCookie, s.gameCookie))

	// Nothing is committed until verified
	moves, err := s.consensus.ListMoves(s.ctx, s.game.ID, s.aliceCookie, s.gameCookie)
	s.Require().NoError(err)
	s.Empty(moves)

	committed, err := s.consensus.VerifyMove(s.ctx, mv("e2", "e4", ""), s.bobCookie, s.gameCookie)
	s.Require().NoError(err)
	s.Equal(0, committed.ID)
	s.Equal(s.game.ID, committed.GameID)
	s.Equal(s.clock.Now(), committed.CreatedAt)

	moves, err = s.consensus.ListMoves(s.ctx, s.game.ID, s.aliceCookie, s.gameCookie)
	s.Require().NoError(err)
	s.Require().Len(moves, 1)
	s.Equal("e2", moves[0].StartLocation)
	s.Equal("e4", moves[0].EndLocation)
	s.Equal(s.game.ID, moves[0].GameID)

	_, ok := s.consensus.Pending("bob")
	s.False(ok)

	other, _ := s.storage.GetMovesForGame(s.ctx, s.otherGame.ID)
	s.Empty(other)
}

func (s *ConsensusSuite) TestProposeNotifiesVerifier() {
	s.Require().NoError(s.consensus.ProposeMove(s.ctx, mv("e2", "e4", ""), s.bobCookie, s.gameCookie))

	s.Require().Len(s.notifier.events, 1)
	s.Equal("alice", s.notifier.events[0].username)
	payload, ok := s.notifier.events[0].payload.(model.MoveProposedPayload)
	s.Require().True(ok)
	s.Equal("bob", payload.Proposer)
	s.Equal(s.game.ID, payload.GameID)
	s.Equal("e4", payload.EndLocation)

	pending, ok := s.consensus.Pending("alice")
	s.True(ok)
	s.Equal(s.game.ID, pending.GameID)
}

func (s *ConsensusSuite) TestProposeSucceedsWhenNotificationFails() {
	s.notifier.err = fmt.Errorf("no endpoint")

	s.NoError(s.consensus.ProposeMove(s.ctx, mv("e2", "e4", ""), s.aliceCookie, s.gameCookie))
	_, ok := s.consensus.Pending("bob")
	s.True(ok)
}

func (s *ConsensusSuite) TestMoveSequence() {
	for i := 0; i < 3; i++ {
		proposer, verifier := s.aliceCookie, s.bobCookie
		if i%2 == 1 {
			proposer, verifier = verifier, proposer
		}
		m := mv(fmt.Sprintf("s%d", i), fmt.Sprintf("e%d", i), "")
		s.Require().NoError(s.consensus.ProposeMove(s.ctx, m, proposer, s.gameCookie))
		committed, err := s.consensus.VerifyMove(s.ctx, m, verifier, s.gameCookie)
		s.Require().NoError(err)
		s.Equal(i, committed.ID)
	}

	moves, _ := s.consensus.ListMoves(s.ctx, s.game.ID, s.bobCookie, s.gameCookie)
	s.Len(moves, 3)
}

// Rejection tests

func (s *ConsensusSuite) TestMismatchLeavesPendingUntouched() {
	proposed := mv("e2", "e4", "")
	s.Require().NoError(s.consensus.ProposeMove(s.ctx, proposed, s.aliceCookie, s.gameCookie))

	for _, wrong := range []model.Move{mv("e2", "e3", ""), mv("d2", "e4", ""), mv("e2", "e4", model.ResultDraw)} {
		_, err := s.consensus.VerifyMove(s.ctx, wrong, s.bobCookie, s.gameCookie)
		s.ErrorIs(err, model.ErrMoveNotPending)
		s.ErrorIs(err, model.ErrGame)
	}

	pending, ok := s.consensus.Pending("bob")
	s.Require().True(ok)
	s.True(pending.Equal(model.Move{GameID: s.game.ID, StartLocation: "e2", EndLocation: "e4"}))

	_, err := s.consensus.VerifyMove(s.ctx, proposed, s.bobCookie, s.gameCookie)
	s.NoError(err)
}

func (s *ConsensusSuite) TestVerifyWithoutPending() {
	_, err := s.consensus.VerifyMove(s.ctx, mv("e2", "e4", ""), s.bobCookie, s.gameCookie)
	s.ErrorIs(err, model.ErrMoveNotPending)
}

func (s *ConsensusSuite) TestProposerCannotVerifyOwnMove() {
	m := mv("e2", "e4", "")
	s.Require().NoError(s.consensus.ProposeMove(s.ctx, m, s.aliceCookie, s.gameCookie))

	_, err := s.consensus.VerifyMove(s.ctx, m, s.aliceCookie, s.gameCookie)
	s.ErrorIs(err, model.ErrMoveNotPending)
}

func (s *ConsensusSuite) TestVerifyAgainstOtherGameFails() {
	m := mv("e2", "e4", "")
	s.Require().NoError(s.consensus.ProposeMove(s.ctx, m, s.aliceCookie, s.gameCookie))

	// Bob also plays game 0, but the pending move belongs to game 1
	_, err := s.consensus.VerifyMove(s.ctx, m, s.bobCookie, s.otherCookie)
	s.ErrorIs(err, model.ErrMoveNotPending)
}

func (s *ConsensusSuite) TestNewProposalReplacesPending() {
	first := mv("e2", "e4", "")
	second := mv("d2", "d4", "")
	s.Require().NoError(s.consensus.ProposeMove(s.ctx, first, s.aliceCookie, s.gameCookie))
	s.Require().NoError(s.consensus.ProposeMove(s.ctx, second, s.aliceCookie, s.gameCookie))

	// Latest proposal wins; the first one is lost
	_, err := s.consensus.VerifyMove(s.ctx, first, s.bobCookie, s.gameCookie)
	s.ErrorIs(err, model.ErrMoveNotPending)
	_, err = s.consensus.VerifyMove(s.ctx, second, s.bobCookie, s.gameCookie)
	s.NoError(err)
}

func (s *ConsensusSuite) TestOutsiderCannotPropose() {
	err := s.consensus.ProposeMove(s.ctx, mv("e2", "e4", ""), s.carolCookie, s.gameCookie)
	s.ErrorIs(err, model.ErrNotInGame)
	s.Empty(s.notifier.events)
}

// Cookie tests

func (s *ConsensusSuite) TestListMovesRejectsCookieForOtherGame() {
	_, err := s.consensus.ListMoves(s.ctx, s.game.ID, s.bobCookie, s.otherCookie)
	s.ErrorIs(err, model.ErrInvalidGameCookie)
}

func (s *ConsensusSuite) TestBadCookiesAreRejected() {
	m := mv("e2", "e4", "")

	s.ErrorIs(s.consensus.ProposeMove(s.ctx, m, "alice", s.gameCookie), model.ErrInvalidUserCookie)
	s.ErrorIs(s.consensus.ProposeMove(s.ctx, m, "alice:forged", s.gameCookie), model.ErrInvalidUserCookie)
	s.ErrorIs(s.consensus.ProposeMove(s.ctx, m, s.aliceCookie, "1:forged"), model.ErrInvalidGameCookie)
	s.ErrorIs(s.consensus.ProposeMove(s.ctx, m, s.aliceCookie, "nonsense"), model.ErrInvalidGameCookie)

	_, err := s.consensus.VerifyMove(s.ctx, m, "bob:forged", s.gameCookie)
	s.ErrorIs(err, model.ErrInvalidUserCookie)

	_, err = s.consensus.ListMoves(s.ctx, s.game.ID, s.aliceCookie, "1:forged")
	s.ErrorIs(err, model.ErrInvalidGameCookie)

	_, ok := s.consensus.Pending("bob")
	s.False(ok)
}

// Result tests

func (s *ConsensusSuite) TestFinalMoveSetsStatus() {
	final := mv("h5", "f7", model.ResultPlayer1Win)
	s.Require().NoError(s.consensus.ProposeMove(s.ctx, final, s.aliceCookie, s.gameCookie))
	_, err := s.consensus.VerifyMove(s.ctx, final, s.bobCookie, s.gameCookie)
	s.Require().NoError(err)

	stored, _ := s.storage.GetGame(s.ctx, s.game.ID)
	s.Equal(model.GameStatusPlayer1Win, stored.Status)
	s.Require().Len(s.results.games, 1)
	s.Equal(s.game.ID, s.results.games[0].ID)
}

func (s *ConsensusSuite) TestUnrecognizedResultKeepsPlaying() {
	m := mv("a1", "a2", "Resigned?")
	s.Require().NoError(s.consensus.ProposeMove(s.ctx, m, s.aliceCookie, s.gameCookie))
	_, err := s.consensus.VerifyMove(s.ctx, m, s.bobCookie, s.gameCookie)
	s.Require().NoError(err)

	stored, _ := s.storage.GetGame(s.ctx, s.game.ID)
	s.Equal(model.GameStatusPlaying, stored.Status)
	s.Empty(s.results.games)

	moves, _ := s.storage.GetMovesForGame(s.ctx, s.game.ID)
	s.Equal("Resigned?", moves[0].Result)
}

func (s *ConsensusSuite) TestFinishedGameRejectsMoves() {
	final := mv("h5", "f7", model.ResultDraw)
	s.Require().NoError(s.consensus.ProposeMove(s.ctx, final, s.aliceCookie, s.gameCookie))
	_, err := s.consensus.VerifyMove(s.ctx, final, s.bobCookie, s.gameCookie)
	s.Require().NoError(err)

	err = s.consensus.ProposeMove(s.ctx, mv("a1", "a2", ""), s.bobCookie, s.gameCookie)
	s.ErrorIs(err, model.ErrGameOver)
}

func (s *ConsensusSuite) TestStalePendingAfterGameEnds() {
	stale := mv("a7", "a6", "")
	final := mv("h5", "f7", model.ResultPlayer2Win)
	s.Require().NoError(s.consensus.ProposeMove(s.ctx, stale, s.bobCookie, s.gameCookie))
	s.Require().NoError(s.consensus.ProposeMove(s.ctx, final, s.aliceCookie, s.gameCookie))
	_, err := s.consensus.VerifyMove(s.ctx, final, s.bobCookie, s.gameCookie)
	s.Require().NoError(err)

	_, err = s.consensus.VerifyMove(s.ctx, stale, s.aliceCookie, s.gameCookie)
	s.ErrorIs(err, model.ErrGameOver)

	moves, _ := s.storage.GetMovesForGame(s.ctx, s.game.ID)
	s.Len(moves, 1)
}

// Concurrency tests

// interleavingUpdater runs a hook the first time a status update starts
type interleavingUpdater struct {
	StatusUpdater
	once sync.Once
	hook func()
}

func (u *interleavingUpdater) UpdateStatus(ctx context.Context, id model.GameID, status model.GameStatus) (*model.Game, error) {
	u.once.Do(u.hook)
	return u.StatusUpdater.UpdateStatus(ctx, id, status)
}

func (s *ConsensusSuite) TestRacingFinalMovesCommitOnlyOne() {
	updater := &interleavingUpdater{StatusUpdater: s.games}
	consensus := New(s.authority, s.storage, updater, s.notifier, s.clock, testutil.NopLogger())

	aliceWins := mv("d1", "h5", model.ResultPlayer1Win)
	bobWins := mv("d8", "h4", model.ResultPlayer2Win)
	s.Require().NoError(consensus.ProposeMove(s.ctx, aliceWins, s.aliceCookie, s.gameCookie))
	s.Require().NoError(consensus.ProposeMove(s.ctx, bobWins, s.bobCookie, s.gameCookie))

	// Alice verifies while bob's verify is part way through ending the game
	aliceErr := make(chan error, 1)
	updater.hook = func() {
		go func() {
			_, err := consensus.VerifyMove(s.ctx, bobWins, s.aliceCookie, s.gameCookie)
			aliceErr <- err
		}()
	}

	_, bobErr := consensus.VerifyMove(s.ctx, aliceWins, s.bobCookie, s.gameCookie)
	s.Require().NoError(bobErr)
	s.ErrorIs(<-aliceErr, model.ErrGameOver)

	moves, err := s.storage.GetMovesForGame(s.ctx, s.game.ID)
	s.Require().NoError(err)
	s.Require().Len(moves, 1)
	s.Equal(model.ResultPlayer1Win, moves[0].Result)

	stored, err := s.storage.GetGame(s.ctx, s.game.ID)
	s.Require().NoError(err)
	s.Equal(model.GameStatusPlayer1Win, stored.Status)

	_, bobPending := consensus.Pending("bob")
	s.False(bobPending)
	_, alicePending := consensus.Pending("alice")
	s.True(alicePending)
}

type failingUpdater struct{}

func (failingUpdater) UpdateStatus(ctx context.Context, id model.GameID, status model.GameStatus) (*model.Game, error) {
	return nil, fmt.Errorf("status store down")
}

func (s *ConsensusSuite) TestPendingKeptWhenStatusUpdateFails() {
	consensus := New(s.authority, s.storage, failingUpdater{}, s.notifier, s.clock, testutil.NopLogger())
	final := mv("h5", "f7", model.ResultDraw)
	s.Require().NoError(consensus.ProposeMove(s.ctx, final, s.aliceCookie, s.gameCookie))

	_, err := consensus.VerifyMove(s.ctx, final, s.bobCookie, s.gameCookie)
	s.Error(err)

	_, ok := consensus.Pending("bob")
	s.True(ok)
}

func (s *ConsensusSuite) TestManyVerifiersShareLockStripes() {
	// More distinct verifiers than stripes must not deadlock or leak
	for i := 0; i < 3*lockStripes; i++ {
		unlock := s.consensus.lock(fmt.Sprintf("user-%d", i))
		unlock()
	}
	unlock := s.consensus.lockGame(model.GameID(3 * lockStripes))
	unlock()
}

func (s *ConsensusSuite) TestConcurrentVerifyCommitsOnce() {
	m := mv("e2", "e4", "")
	s.Require().NoError(s.consensus.ProposeMove(s.ctx, m, s.aliceCookie, s.gameCookie))

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.consensus.VerifyMove(s.ctx, m, s.bobCookie, s.gameCookie); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	moves, _ := s.storage.GetMovesForGame(s.ctx, s.game.ID)
	s.Len(moves, 1)
}
