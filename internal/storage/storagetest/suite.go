// Package storagetest holds behaviour tests shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/storage"
)

// Suite runs the storage contract against a backend. Embed it and set
// Storage in SetupTest.
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
}

var testTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func (s *Suite) addUser(username string) *model.User {
	user := &model.User{
		Username:  username,
		Password:  "hash-" + username,
		Email:     username + "@example.com",
		Online:    true,
		Friends:   []string{},
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	s.Require().NoError(s.Storage.AddUser(s.Ctx, user))
	return user
}

// User tests

func (s *Suite) TestAddAndGetUser() {
	s.addUser("alice")

	user, err := s.Storage.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", user.Username)
	s.Equal("hash-alice", user.Password)
	s.Equal("alice@example.com", user.Email)
	s.True(user.Online)
	s.True(testTime.Equal(user.CreatedAt))
}

func (s *Suite) TestAddUserFailsIfExists() {
	s.addUser("alice")

	err := s.Storage.AddUser(s.Ctx, &model.User{Username: "alice", Password: "other"})
	s.ErrorIs(err, model.ErrUserAlreadyExists)

	user, err := s.Storage.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("hash-alice", user.Password)
}

func (s *Suite) TestGetUserNotFound() {
	_, err := s.Storage.GetUser(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestUserExists() {
	s.addUser("alice")

	exists, err := s.Storage.UserExists(s.Ctx, "alice")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.Storage.UserExists(s.Ctx, "bob")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *Suite) TestUpdateUser() {
	s.addUser("alice")

	updated, err := s.Storage.UpdateUser(s.Ctx, "alice", func(u *model.User) error {
		u.Online = false
		u.Wins++
		u.Friends = append(u.Friends, "bob")
		return nil
	})
	s.Require().NoError(err)
	s.False(updated.Online)
	s.Equal(1, updated.Wins)

	user, err := s.Storage.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.False(user.Online)
	s.Equal(1, user.Wins)
	s.Equal([]string{"bob"}, user.Friends)
}

func (s *Suite) TestUpdateUserKeepsUsername() {
	s.addUser("alice")

	_, err := s.Storage.UpdateUser(s.Ctx, "alice", func(u *model.User) error {
		u.Username = "mallory"
		return nil
	})
	s.Require().NoError(err)

	_, err = s.Storage.GetUser(s.Ctx, "alice")
	s.NoError(err)
	_, err = s.Storage.GetUser(s.Ctx, "mallory")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestUpdateUserNotFound() {
	_, err := s.Storage.UpdateUser(s.Ctx, "nobody", func(u *model.User) error { return nil })
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestUpdateUserCallbackErrorLeavesUserUnchanged() {
	s.addUser("alice")
	boom := errors.New("boom")

	_, err := s.Storage.UpdateUser(s.Ctx, "alice", func(u *model.User) error {
		u.Email = "changed@example.com"
		return boom
	})
	s.ErrorIs(err, boom)

	user, _ := s.Storage.GetUser(s.Ctx, "alice")
	s.Equal("alice@example.com", user.Email)
}

func (s *Suite) TestGetUserReturnsCopy() {
	s.addUser("alice")

	user, _ := s.Storage.GetUser(s.Ctx, "alice")
	user.Email = "mutated@example.com"

	again, _ := s.Storage.GetUser(s.Ctx, "alice")
	s.Equal("alice@example.com", again.Email)
}

func (s *Suite) TestConcurrentUpdatesAreAtomic() {
	s.addUser("alice")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Storage.UpdateUser(s.Ctx, "alice", func(u *model.User) error {
				u.Draws++
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	user, _ := s.Storage.GetUser(s.Ctx, "alice")
	s.Equal(20, user.Draws)
}

func (s *Suite) TestListUsers() {
	s.addUser("bob")
	s.addUser("alice")

	users, err := s.Storage.ListUsers(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(users, 2)
	s.Equal("alice", users[0].Username)
	s.Equal("bob", users[1].Username)
}

// Game tests

func (s *Suite) TestCreateGameAssignsDenseIDs() {
	g0, err := s.Storage.CreateGame(s.Ctx, "alice", "bob", testTime)
	s.Require().NoError(err)
	g1, err := s.Storage.CreateGame(s.Ctx, "carol", "dave", testTime)
	s.Require().NoError(err)

	s.Equal(model.GameID(0), g0.ID)
	s.Equal(model.GameID(1), g1.ID)
	s.Equal(model.GameStatusPlaying, g0.Status)
	s.Equal("alice", g0.Player1)
	s.Equal("bob", g0.Player2)
}

func (s *Suite) TestGetGame() {
	created, _ := s.Storage.CreateGame(s.Ctx, "alice", "bob", testTime)

	game, err := s.Storage.GetGame(s.Ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.ID, game.ID)
	s.Equal("alice", game.Player1)
	s.Equal("bob", game.Player2)
	s.Equal(model.GameStatusPlaying, game.Status)
}

func (s *Suite) TestGetGameOutOfRange() {
	_, _ = s.Storage.CreateGame(s.Ctx, "alice", "bob", testTime)

	_, err := s.Storage.GetGame(s.Ctx, 1)
	s.ErrorIs(err, model.ErrGameNotFound)

	_, err = s.Storage.GetGame(s.Ctx, -1)
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestUpdateGame() {
	created, _ := s.Storage.CreateGame(s.Ctx, "alice", "bob", testTime)

	updated, err := s.Storage.UpdateGame(s.Ctx, created.ID, func(g *model.Game) error {
		g.Status = model.GameStatusDraw
		return nil
	})
	s.Require().NoError(err)
	s.Equal(model.GameStatusDraw, updated.Status)

	game, _ := s.Storage.GetGame(s.Ctx, created.ID)
	s.Equal(model.GameStatusDraw, game.Status)
}

func (s *Suite) TestUpdateGameNotFound() {
	_, err := s.Storage.UpdateGame(s.Ctx, 7, func(g *model.Game) error { return nil })
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestGetGamesForUser() {
	_, _ = s.Storage.CreateGame(s.Ctx, "alice", "bob", testTime)
	_, _ = s.Storage.CreateGame(s.Ctx, "carol", "alice", testTime)
	_, _ = s.Storage.CreateGame(s.Ctx, "carol", "bob", testTime)

	games, err := s.Storage.GetGamesForUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(games, 2)
	s.Equal(model.GameID(0), games[0].ID)
	s.Equal(model.GameID(1), games[1].ID)

	games, err = s.Storage.GetGamesForUser(s.Ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(games)
}

func (s *Suite) TestConcurrentCreateGameKeepsIDsDense() {
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Storage.CreateGame(s.Ctx, "alice", "bob", testTime)
			s.NoError(err)
		}()
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		game, err := s.Storage.GetGame(s.Ctx, model.GameID(i))
		s.Require().NoError(err)
		s.Equal(model.GameID(i), game.ID)
	}
	_, err := s.Storage.GetGame(s.Ctx, 10)
	s.ErrorIs(err, model.ErrGameNotFound)
}

// Move tests

func (s *Suite) TestAppendMoveAssignsSequence() {
	game, _ := s.Storage.CreateGame(s.Ctx, "alice", "bob", testTime)

	m0, err := s.Storage.AppendMove(s.Ctx, &model.Move{GameID: game.ID, StartLocation: "a1", EndLocation: "a2", CreatedAt: testTime})
	s.Require().NoError(err)
	m1, err := s.Storage.AppendMove(s.Ctx, &model.Move{GameID: game.ID, StartLocation: "b7", EndLocation: "b6", Result: model.ResultDraw, CreatedAt: testTime})
	s.Require().NoError(err)

	s.Equal(0, m0.ID)
	s.Equal(1, m1.ID)

	moves, err := s.Storage.GetMovesForGame(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.Require().Len(moves, 2)
	s.Equal(0, moves[0].ID)
	s.Equal("a1", moves[0].StartLocation)
	s.Equal("a2", moves[0].EndLocation)
	s.Equal(1, moves[1].ID)
	s.Equal(model.ResultDraw, moves[1].Result)
	s.Equal(game.ID, moves[1].GameID)
}

func (s *Suite) TestMoveSequencesArePerGame() {
	g0, _ := s.Storage.CreateGame(s.Ctx, "alice", "bob", testTime)
	g1, _ := s.Storage.CreateGame(s.Ctx, "carol", "dave", testTime)

	_, _ = s.Storage.AppendMove(s.Ctx, &model.Move{GameID: g0.ID, StartLocation: "a1", EndLocation: "a2"})
	m, err := s.Storage.AppendMove(s.Ctx, &model.Move{GameID: g1.ID, StartLocation: "c1", EndLocation: "c2"})
	s.Require().NoError(err)
	s.Equal(0, m.ID)

	moves, _ := s.Storage.GetMovesForGame(s.Ctx, g0.ID)
	s.Len(moves, 1)
}

func (s *Suite) TestAppendMoveUnknownGame() {
	_, err := s.Storage.AppendMove(s.Ctx, &model.Move{GameID: 3, StartLocation: "a1", EndLocation: "a2"})
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestGetMovesForGameWithoutMoves() {
	game, _ := s.Storage.CreateGame(s.Ctx, "alice", "bob", testTime)

	moves, err := s.Storage.GetMovesForGame(s.Ctx, game.ID)
	s.Require().NoError(err)
	s.Empty(moves)
}
