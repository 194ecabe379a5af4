package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/storage"
)

// ErrTxConflict is returned when an optimistic transaction keeps losing races
var ErrTxConflict = errors.New("redis transaction conflict")

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
	keys   keys
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = DefaultConfig().MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
		keys:   keys{prefix: cfg.KeyPrefix},
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) AddUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	// SETNX makes the existence check and insert one step
	ok, err := s.client.SetNX(ctx, s.keys.user(user.Username), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrUserAlreadyExists
	}

	return s.client.SAdd(ctx, s.keys.usernames(), user.Username).Err()
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.User, error) {
	return getUser(ctx, s.client, s.keys.user(username))
}

func (s *Storage) UserExists(ctx context.Context, username string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keys.user(username)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (s *Storage) UpdateUser(ctx context.Context, username string, fn storage.UserUpdateFunc) (*model.User, error) {
	key := s.keys.user(username)
	var updated *model.User

	txf := func(tx *redis.Tx) error {
		user, err := getUser(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(user); err != nil {
			return err
		}
		user.Username = username

		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = user
		return nil
	}

	if err := s.watch(ctx, txf, key); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	usernames, err := s.client.SMembers(ctx, s.keys.usernames()).Result()
	if err != nil {
		return nil, err
	}
	if len(usernames) == 0 {
		return []*model.User{}, nil
	}
	sort.Strings(usernames)

	userKeys := make([]string, len(usernames))
	for i, u := range usernames {
		userKeys[i] = s.keys.user(u)
	}

	values, err := s.client.MGet(ctx, userKeys...).Result()
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var user model.User
		if err := json.Unmarshal([]byte(str), &user); err != nil {
			return nil, err
		}
		users = append(users, &user)
	}
	return users, nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, player1, player2 string, createdAt time.Time) (*model.Game, error) {
	countKey := s.keys.gameCount()
	var created *model.Game

	// The counter bump and the record writes commit together, so an ID is
	// only used up when its game exists and IDs stay dense
	txf := func(tx *redis.Tx) error {
		count, err := tx.Get(ctx, countKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		game := &model.Game{
			ID:        model.GameID(count),
			Player1:   player1,
			Player2:   player2,
			Status:    model.GameStatusPlaying,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}

		data, err := json.Marshal(game)
		if err != nil {
			return err
		}

		score := float64(game.ID)
		member := strconv.Itoa(int(game.ID))
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, countKey, count+1, 0)
			pipe.Set(ctx, s.keys.game(game.ID), data, 0)
			pipe.ZAdd(ctx, s.keys.userGames(player1), redis.Z{Score: score, Member: member})
			pipe.ZAdd(ctx, s.keys.userGames(player2), redis.Z{Score: score, Member: member})
			return nil
		})
		if err != nil {
			return err
		}
		created = game
		return nil
	}

	if err := s.watch(ctx, txf, countKey); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	if id < 0 {
		return nil, model.ErrGameNotFound
	}
	return getGame(ctx, s.client, s.keys.game(id))
}

func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, fn storage.GameUpdateFunc) (*model.Game, error) {
	if id < 0 {
		return nil, model.ErrGameNotFound
	}
	key := s.keys.game(id)
	var updated *model.Game

	txf := func(tx *redis.Tx) error {
		game, err := getGame(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(game); err != nil {
			return err
		}
		game.ID = id

		data, err := json.Marshal(game)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = game
		return nil
	}

	if err := s.watch(ctx, txf, key); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Storage) GetGamesForUser(ctx context.Context, username string) ([]*model.Game, error) {
	ids, err := s.client.ZRange(ctx, s.keys.userGames(username), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Game{}, nil
	}

	gameKeys := make([]string, len(ids))
	for i, raw := range ids {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt game index for %s: %w", username, err)
		}
		gameKeys[i] = s.keys.game(model.GameID(id))
	}

	values, err := s.client.MGet(ctx, gameKeys...).Result()
	if err != nil {
		return nil, err
	}

	games := make([]*model.Game, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var game model.Game
		if err := json.Unmarshal([]byte(str), &game); err != nil {
			return nil, err
		}
		games = append(games, &game)
	}
	return games, nil
}

// Move operations

func (s *Storage) AppendMove(ctx context.Context, move *model.Move) (*model.Move, error) {
	exists, err := s.client.Exists(ctx, s.keys.game(move.GameID)).Result()
	if err != nil {
		return nil, err
	}
	if move.GameID < 0 || exists == 0 {
		return nil, model.ErrGameNotFound
	}

	data, err := json.Marshal(move)
	if err != nil {
		return nil, err
	}

	// The list position is the move ID; RPUSH reports it atomically
	length, err := s.client.RPush(ctx, s.keys.moves(move.GameID), data).Result()
	if err != nil {
		return nil, err
	}

	committed := *move
	committed.ID = int(length - 1)
	return &committed, nil
}

func (s *Storage) GetMovesForGame(ctx context.Context, id model.GameID) ([]*model.Move, error) {
	values, err := s.client.LRange(ctx, s.keys.moves(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	moves := make([]*model.Move, 0, len(values))
	for i, val := range values {
		var move model.Move
		if err := json.Unmarshal([]byte(val), &move); err != nil {
			return nil, err
		}
		move.ID = i
		moves = append(moves, &move)
	}
	return moves, nil
}

// watch runs an optimistic transaction, retrying when a watched key changes
func (s *Storage) watch(ctx context.Context, txf func(*redis.Tx) error, key string) error {
	for i := 0; i < s.cfg.MaxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", ErrTxConflict, key)
}

func getUser(ctx context.Context, c redis.Cmdable, key string) (*model.User, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func getGame(ctx context.Context, c redis.Cmdable, key string) (*model.Game, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}

	var game model.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, err
	}
	return &game, nil
}
