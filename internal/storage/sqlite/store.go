// Package sqlite provides a single-file persistent storage backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/storage"
	"github.com/mcoot/pairplay/internal/storage/sqlite/schema"
)

const timeFormat = time.RFC3339Nano

// Store is a SQLite-backed implementation of the storage interface
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at the provided path. ":memory:" gives a
// throwaway database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema.SQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

var _ storage.Storage = (*Store)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

// User operations

const userColumns = `username, password, email, online, friends, wins, losses, draws, rank, created_at, updated_at`

func (s *Store) AddUser(ctx context.Context, user *model.User) error {
	friends, err := encodeFriends(user.Friends)
	if err != nil {
		return err
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (username) DO NOTHING`,
		user.Username, user.Password, user.Email, user.Online, friends,
		user.Wins, user.Losses, user.Draws, user.Rank,
		user.CreatedAt.Format(timeFormat), user.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrUserAlreadyExists
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*model.User, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var n int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) UpdateUser(ctx context.Context, username string, fn storage.UserUpdateFunc) (*model.User, error) {
	var updated *model.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
		user, err := scanUser(row)
		if err != nil {
			return err
		}
		if err := fn(user); err != nil {
			return err
		}
		user.Username = username

		friends, err := encodeFriends(user.Friends)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET password = ?, email = ?, online = ?, friends = ?, wins = ?, losses = ?,
			 draws = ?, rank = ?, created_at = ?, updated_at = ? WHERE username = ?`,
			user.Password, user.Email, user.Online, friends, user.Wins, user.Losses,
			user.Draws, user.Rank, user.CreatedAt.Format(timeFormat), user.UpdatedAt.Format(timeFormat),
			username,
		)
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Game operations

const gameColumns = `id, player1, player2, status, created_at, updated_at`

func (s *Store) CreateGame(ctx context.Context, player1, player2 string, createdAt time.Time) (*model.Game, error) {
	// Games are never deleted, so the row count is the next dense ID
	ts := createdAt.Format(timeFormat)
	row := s.sqlDB.QueryRowContext(ctx,
		`INSERT INTO games (`+gameColumns+`)
		 VALUES ((SELECT COUNT(*) FROM games), ?, ?, ?, ?, ?)
		 RETURNING id`,
		player1, player2, string(model.GameStatusPlaying), ts, ts,
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		return nil, fmt.Errorf("insert game: %w", err)
	}

	return &model.Game{
		ID:        model.GameID(id),
		Player1:   player1,
		Player2:   player2,
		Status:    model.GameStatusPlaying,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

func (s *Store) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, int64(id))
	return scanGame(row)
}

func (s *Store) UpdateGame(ctx context.Context, id model.GameID, fn storage.GameUpdateFunc) (*model.Game, error) {
	var updated *model.Game
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, int64(id))
		game, err := scanGame(row)
		if err != nil {
			return err
		}
		if err := fn(game); err != nil {
			return err
		}
		game.ID = id

		_, err = tx.ExecContext(ctx,
			`UPDATE games SET player1 = ?, player2 = ?, status = ?, created_at = ?, updated_at = ? WHERE id = ?`,
			game.Player1, game.Player2, string(game.Status),
			game.CreatedAt.Format(timeFormat), game.UpdatedAt.Format(timeFormat), int64(id),
		)
		if err != nil {
			return fmt.Errorf("update game: %w", err)
		}
		updated = game
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) GetGamesForUser(ctx context.Context, username string) ([]*model.Game, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE player1 = ? OR player2 = ? ORDER BY id`,
		username, username,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := []*model.Game{}
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

// Move operations

func (s *Store) AppendMove(ctx context.Context, move *model.Move) (*model.Move, error) {
	committed := *move
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM games WHERE id = ?`, int64(move.GameID)).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return model.ErrGameNotFound
		}

		row := tx.QueryRowContext(ctx,
			`INSERT INTO moves (game_id, seq, start_location, end_location, result, created_at)
			 VALUES (?, (SELECT COUNT(*) FROM moves WHERE game_id = ?), ?, ?, ?, ?)
			 RETURNING seq`,
			int64(move.GameID), int64(move.GameID),
			move.StartLocation, move.EndLocation, move.Result, move.CreatedAt.Format(timeFormat),
		)
		if err := row.Scan(&committed.ID); err != nil {
			return fmt.Errorf("insert move: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &committed, nil
}

func (s *Store) GetMovesForGame(ctx context.Context, id model.GameID) ([]*model.Move, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT seq, game_id, start_location, end_location, result, created_at
		 FROM moves WHERE game_id = ? ORDER BY seq`,
		int64(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	moves := []*model.Move{}
	for rows.Next() {
		var (
			move      model.Move
			gameID    int64
			createdAt string
		)
		if err := rows.Scan(&move.ID, &gameID, &move.StartLocation, &move.EndLocation, &move.Result, &createdAt); err != nil {
			return nil, err
		}
		move.GameID = model.GameID(gameID)
		if move.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		moves = append(moves, &move)
	}
	return moves, rows.Err()
}

// inTx runs fn in a transaction, committing only if it returns nil
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		user                 model.User
		friends              string
		createdAt, updatedAt string
	)
	err := row.Scan(&user.Username, &user.Password, &user.Email, &user.Online, &friends,
		&user.Wins, &user.Losses, &user.Draws, &user.Rank, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(friends), &user.Friends); err != nil {
		return nil, fmt.Errorf("decode friends: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func scanGame(row rowScanner) (*model.Game, error) {
	var (
		game                 model.Game
		id                   int64
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &game.Player1, &game.Player2, &status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}
	game.ID = model.GameID(id)
	game.Status = model.GameStatus(status)
	if game.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if game.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &game, nil
}

func encodeFriends(friends []string) (string, error) {
	if friends == nil {
		friends = []string{}
	}
	data, err := json.Marshal(friends)
	if err != nil {
		return "", fmt.Errorf("encode friends: %w", err)
	}
	return string(data), nil
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}
