package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	users map[string]*model.User
	games []*model.Game
	moves map[model.GameID][]*model.Move
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users: make(map[string]*model.User),
		moves: make(map[model.GameID][]*model.Move),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) AddUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return model.ErrUserAlreadyExists
	}
	s.users[user.Username] = user.Clone()
	return nil
}

func (s *Storage) GetUser(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return user.Clone(), nil
}

func (s *Storage) UserExists(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok, nil
}

func (s *Storage) UpdateUser(ctx context.Context, username string, fn storage.UserUpdateFunc) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	updated := user.Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}
	// Username is the key and stays fixed
	updated.Username = username
	s.users[username] = updated
	return updated.Clone(), nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u.Clone())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, player1, player2 string, createdAt time.Time) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game := &model.Game{
		ID:        model.GameID(len(s.games)),
		Player1:   player1,
		Player2:   player2,
		Status:    model.GameStatusPlaying,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	s.games = append(s.games, game)
	c := *game
	return &c, nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || int(id) >= len(s.games) {
		return nil, model.ErrGameNotFound
	}
	c := *s.games[id]
	return &c, nil
}

func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, fn storage.GameUpdateFunc) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || int(id) >= len(s.games) {
		return nil, model.ErrGameNotFound
	}
	updated := *s.games[id]
	if err := fn(&updated); err != nil {
		return nil, err
	}
	updated.ID = id
	s.games[id] = &updated
	c := updated
	return &c, nil
}

func (s *Storage) GetGamesForUser(ctx context.Context, username string) ([]*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	games := []*model.Game{}
	for _, g := range s.games {
		if g.HasPlayer(username) {
			c := *g
			games = append(games, &c)
		}
	}
	return games, nil
}

// Move operations

func (s *Storage) AppendMove(ctx context.Context, move *model.Move) (*model.Move, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if move.GameID < 0 || int(move.GameID) >= len(s.games) {
		return nil, model.ErrGameNotFound
	}
	committed := *move
	committed.ID = len(s.moves[move.GameID])
	s.moves[move.GameID] = append(s.moves[move.GameID], &committed)
	c := committed
	return &c, nil
}

func (s *Storage) GetMovesForGame(ctx context.Context, id model.GameID) ([]*model.Move, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	moves := make([]*model.Move, 0, len(s.moves[id]))
	for _, m := range s.moves[id] {
		c := *m
		moves = append(moves, &c)
	}
	return moves, nil
}
