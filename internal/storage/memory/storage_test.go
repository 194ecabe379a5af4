package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	memory *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.memory = New()
	s.Storage = s.memory
	s.Ctx = context.Background()
}

func (s *StorageSuite) TestGetGamesForUserReturnsCopies() {
	_, _ = s.memory.CreateGame(s.Ctx, "alice", "bob", time.Now())

	games, _ := s.memory.GetGamesForUser(s.Ctx, "alice")
	games[0].Status = model.GameStatusDraw

	game, _ := s.memory.GetGame(s.Ctx, 0)
	s.Equal(model.GameStatusPlaying, game.Status)
}
