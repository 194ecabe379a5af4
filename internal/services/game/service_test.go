package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pairplay/internal/dependencies/mocks"
	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/services/session"
	"github.com/mcoot/pairplay/internal/storage/memory"
	"github.com/mcoot/pairplay/internal/testutil"
)

type recordingResults struct {
	games []model.Game
	err   error
}

func (r *recordingResults) RecordResult(ctx context.Context, game *model.Game) error {
	r.games = append(r.games, *game)
	return r.err
}

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	results *recordingResults
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.results = &recordingResults{}
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = New(s.storage, s.results, s.clock, testutil.NopLogger())
	s.ctx = context.Background()

	for _, name := range []string{"alice", "bob", "carol"} {
		s.Require().NoError(s.storage.AddUser(s.ctx, &model.User{Username: name}))
	}
}

// CreateGame tests

func (s *ServiceSuite) TestCreateGame() {
	game, err := s.service.CreateGame(s.ctx, "alice", "bob")
	s.Require().NoError(err)

	s.Equal(model.GameID(0), game.ID)
	s.Equal("alice", game.Player1)
	s.Equal("bob", game.Player2)
	s.Equal(model.GameStatusPlaying, game.Status)
	s.Equal(s.clock.Now(), game.CreatedAt)

	second, err := s.service.CreateGame(s.ctx, "bob", "carol")
	s.Require().NoError(err)
	s.Equal(model.GameID(1), second.ID)
}

func (s *ServiceSuite) TestCreateGameSamePlayer() {
	_, err := s.service.CreateGame(s.ctx, "alice", "alice")
	s.ErrorIs(err, model.ErrSamePlayer)
	s.ErrorIs(err, model.ErrGame)
}

func (s *ServiceSuite) TestCreateGameUnknownPlayer() {
	_, err := s.service.CreateGame(s.ctx, "alice", "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)

	_, err = s.service.GetGame(s.ctx, 0)
	s.ErrorIs(err, model.ErrGameNotFound)
}

// Lookup tests

func (s *ServiceSuite) TestGamesForUser() {
	_, _ = s.service.CreateGame(s.ctx, "alice", "bob")
	_, _ = s.service.CreateGame(s.ctx, "bob", "carol")

	games, err := s.service.GamesForUser(s.ctx, "bob")
	s.Require().NoError(err)
	s.Len(games, 2)

	games, err = s.service.GamesForUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(games, 1)
}

func (s *ServiceSuite) TestGameCookieFor() {
	created, _ := s.service.CreateGame(s.ctx, "alice", "bob")

	game, cookie, err := s.service.GameCookieFor(s.ctx, created.ID, "bob")
	s.Require().NoError(err)
	s.Equal(created.ID, game.ID)

	expected, _ := session.New(s.storage).MintGameCookie(s.ctx, created.ID)
	s.Equal(expected, cookie)
}

func (s *ServiceSuite) TestGameCookieForOutsider() {
	created, _ := s.service.CreateGame(s.ctx, "alice", "bob")

	_, _, err := s.service.GameCookieFor(s.ctx, created.ID, "carol")
	s.ErrorIs(err, model.ErrNotInGame)

	_, _, err = s.service.GameCookieFor(s.ctx, 5, "alice")
	s.ErrorIs(err, model.ErrGameNotFound)
}

// UpdateStatus tests

func (s *ServiceSuite) TestUpdateStatusToTerminal() {
	created, _ := s.service.CreateGame(s.ctx, "alice", "bob")
	s.clock.Advance(time.Hour)

	game, err := s.service.UpdateStatus(s.ctx, created.ID, model.GameStatusPlayer2Win)
	s.Require().NoError(err)
	s.Equal(model.GameStatusPlayer2Win, game.Status)
	s.Equal(s.clock.Now(), game.UpdatedAt)

	s.Require().Len(s.results.games, 1)
	s.Equal(model.GameStatusPlayer2Win, s.results.games[0].Status)
}

func (s *ServiceSuite) TestUpdateStatusPlayingRecordsNothing() {
	created, _ := s.service.CreateGame(s.ctx, "alice", "bob")

	_, err := s.service.UpdateStatus(s.ctx, created.ID, model.GameStatusPlaying)
	s.Require().NoError(err)
	s.Empty(s.results.games)
}

func (s *ServiceSuite) TestUpdateStatusOnlyOnce() {
	created, _ := s.service.CreateGame(s.ctx, "alice", "bob")
	_, err := s.service.UpdateStatus(s.ctx, created.ID, model.GameStatusDraw)
	s.Require().NoError(err)

	_, err = s.service.UpdateStatus(s.ctx, created.ID, model.GameStatusPlayer1Win)
	s.ErrorIs(err, model.ErrGameOver)

	game, _ := s.service.GetGame(s.ctx, created.ID)
	s.Equal(model.GameStatusDraw, game.Status)
	s.Len(s.results.games, 1)
}

func (s *ServiceSuite) TestUpdateStatusUnknownGame() {
	_, err := s.service.UpdateStatus(s.ctx, 3, model.GameStatusDraw)
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *ServiceSuite) TestUpdateStatusReportsRecorderFailure() {
	created, _ := s.service.CreateGame(s.ctx, "alice", "bob")
	s.results.err = errors.New("boom")

	_, err := s.service.UpdateStatus(s.ctx, created.ID, model.GameStatusDraw)
	s.Error(err)
}
