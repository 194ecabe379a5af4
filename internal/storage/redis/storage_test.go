package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	mini  *miniredis.Miniredis
	redis *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	s.redis = NewWithClient(client, DefaultConfig())
	s.Storage = s.redis
	s.Ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) TestKeysArePrefixed() {
	_, err := s.redis.CreateGame(s.Ctx, "alice", "bob", time.Now())
	s.Require().NoError(err)

	s.True(s.mini.Exists("pairplay:game:0"))
	s.True(s.mini.Exists("pairplay:idx:user_games:alice"))

	count, err := s.mini.Get("pairplay:game_count")
	s.Require().NoError(err)
	s.Equal("1", count)
}

func (s *StorageSuite) TestCustomKeyPrefix() {
	cfg := DefaultConfig()
	cfg.KeyPrefix = "other"
	client := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	other := NewWithClient(client, cfg)
	defer other.Close()

	s.Require().NoError(other.AddUser(s.Ctx, &model.User{Username: "alice"}))

	s.True(s.mini.Exists("other:user:alice"))
	_, err := s.redis.GetUser(s.Ctx, "alice")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *StorageSuite) TestListUsersSkipsIndexEntriesWithoutRecord() {
	_, err := s.mini.SAdd("pairplay:idx:usernames", "ghost")
	s.Require().NoError(err)
	s.Require().NoError(s.redis.AddUser(s.Ctx, &model.User{Username: "alice"}))

	users, err := s.redis.ListUsers(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(users, 1)
	s.Equal("alice", users[0].Username)
}

var errExecFailed = errors.New("exec failed")

// failingExecHook fails pipelined and transactional writes while enabled
type failingExecHook struct {
	fail atomic.Bool
}

func (h *failingExecHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *failingExecHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook { return next }

func (h *failingExecHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if h.fail.Load() {
			return errExecFailed
		}
		return next(ctx, cmds)
	}
}

func (s *StorageSuite) TestFailedCreateGameDoesNotUseID() {
	hook := &failingExecHook{}
	client := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	client.AddHook(hook)
	store := NewWithClient(client, DefaultConfig())
	defer store.Close()

	hook.fail.Store(true)
	_, err := store.CreateGame(s.Ctx, "alice", "bob", time.Now())
	s.Require().ErrorIs(err, errExecFailed)
	s.False(s.mini.Exists("pairplay:game_count"))
	s.False(s.mini.Exists("pairplay:game:0"))

	hook.fail.Store(false)
	game, err := store.CreateGame(s.Ctx, "alice", "bob", time.Now())
	s.Require().NoError(err)
	s.Equal(model.GameID(0), game.ID)
}

func (s *StorageSuite) TestNewFailsWithoutServer() {
	cfg := DefaultConfig()
	cfg.URL = "redis://127.0.0.1:1"

	_, err := New(cfg)
	s.Error(err)
}

func (s *StorageSuite) TestNewConnectsToServer() {
	cfg := DefaultConfig()
	cfg.URL = "redis://" + s.mini.Addr()

	store, err := New(cfg)
	s.Require().NoError(err)
	defer store.Close()

	s.Require().NoError(store.AddUser(s.Ctx, &model.User{Username: "alice"}))
	exists, err := s.redis.UserExists(s.Ctx, "alice")
	s.Require().NoError(err)
	s.True(exists)
}
