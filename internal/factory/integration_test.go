package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pairplay/internal/model"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) TearDownTest() {
	s.Require().NoError(s.app.Close())
}

func (s *IntegrationSuite) register(username, password string) string {
	ciphertext, err := s.app.EncryptPassword(username, password)
	s.Require().NoError(err)
	_, cookie, err := s.app.Users.Register(s.ctx, username, ciphertext, username+"@example.com")
	s.Require().NoError(err)
	return cookie
}

// Test: Register, matchmake and play a game to a decisive result
func (s *IntegrationSuite) TestCompleteGameFlow() {
	// Step 1: Both players register over the key exchange channel
	aliceCookie := s.register("alice", "alice-secret")
	bobCookie := s.register("bob", "bob-secret")

	// Step 2: Alice queues, Bob is paired with her
	game, _, err := s.app.Matchmaker.JoinRandomQueue(s.ctx, "alice")
	s.Require().NoError(err)
	s.Nil(game)

	game, gameCookie, err := s.app.Matchmaker.JoinRandomQueue(s.ctx, "bob")
	s.Require().NoError(err)
	s.Require().NotNil(game)
	s.Equal("alice", game.Player1)
	s.Equal("bob", game.Player2)
	s.Equal(0, s.app.Matchmaker.QueueLength())

	// Step 3: Alice opens, Bob confirms
	opening := model.Move{StartLocation: "e2", EndLocation: "e4"}
	s.Require().NoError(s.app.Moves.ProposeMove(s.ctx, opening, aliceCookie, gameCookie))
	_, err = s.app.Moves.VerifyMove(s.ctx, opening, bobCookie, gameCookie)
	s.Require().NoError(err)

	// Step 4: Bob plays the deciding move, Alice confirms
	final := model.Move{StartLocation: "d8", EndLocation: "h4", Result: model.ResultPlayer2Win}
	s.Require().NoError(s.app.Moves.ProposeMove(s.ctx, final, bobCookie, gameCookie))
	_, err = s.app.Moves.VerifyMove(s.ctx, final, aliceCookie, gameCookie)
	s.Require().NoError(err)

	// Step 5: The game is over and both records reflect it
	moves, err := s.app.Moves.ListMoves(s.ctx, game.ID, aliceCookie, gameCookie)
	s.Require().NoError(err)
	s.Len(moves, 2)

	stored, err := s.app.Games.GetGame(s.ctx, game.ID)
	s.Require().NoError(err)
	s.Equal(model.GameStatusPlayer2Win, stored.Status)

	alice, err := s.app.Users.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(1, alice.Losses)
	bob, err := s.app.Users.GetUser(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(1, bob.Wins)

	err = s.app.Moves.ProposeMove(s.ctx, opening, aliceCookie, gameCookie)
	s.ErrorIs(err, model.ErrGameOver)
}

// Test: Login after logout needs a fresh key exchange
func (s *IntegrationSuite) TestLoginRequiresNewKeyExchange() {
	cookie := s.register("alice", "alice-secret")
	s.Require().NoError(s.app.Users.Logout(s.ctx, "alice", cookie))

	// Key was forgotten on logout; the old ciphertext can't be decrypted
	_, _, err := s.app.Users.Login(s.ctx, "alice", []byte("0123456789abcdef"))
	s.ErrorIs(err, model.ErrUserNotFound)

	ciphertext, err := s.app.EncryptPassword("alice", "alice-secret")
	s.Require().NoError(err)
	user, loginCookie, err := s.app.Users.Login(s.ctx, "alice", ciphertext)
	s.Require().NoError(err)
	s.True(user.Online)
	s.Equal(cookie, loginCookie)
}

// Test: Wrong password is rejected after a valid exchange
func (s *IntegrationSuite) TestLoginWrongPassword() {
	s.register("alice", "alice-secret")

	ciphertext, err := s.app.EncryptPassword("alice", "guess")
	s.Require().NoError(err)
	_, _, err = s.app.Users.Login(s.ctx, "alice", ciphertext)
	s.ErrorIs(err, model.ErrInvalidPassword)
}

// Test: Direct challenge skips the queue and notifies connected players
func (s *IntegrationSuite) TestChallengeNotifiesConnectedPlayers() {
	s.register("alice", "a")
	s.register("bob", "b")
	s.app.Hub.Register("bob")

	game, cookie, err := s.app.Matchmaker.CreateGameWithOpponent(s.ctx, "alice", "bob")
	s.Require().NoError(err)
	s.NotEmpty(cookie)
	s.Equal(model.GameID(0), game.ID)
	s.True(s.app.Hub.Connected("bob"))

	games, err := s.app.Games.GamesForUser(s.ctx, "bob")
	s.Require().NoError(err)
	s.Len(games, 1)
}

func TestNewSelectsStorage(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default memory", cfg: Config{}},
		{name: "sqlite in memory", cfg: Config{StorageType: StorageTypeSQLite, SQLitePath: ":memory:"}},
		{name: "sqlite without path", cfg: Config{StorageType: StorageTypeSQLite}, wantErr: true},
		{name: "redis without config", cfg: Config{StorageType: StorageTypeRedis}, wantErr: true},
		{name: "unknown", cfg: Config{StorageType: "postgres"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := app.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
		})
	}
}
