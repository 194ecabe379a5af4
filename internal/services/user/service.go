package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/pairplay/internal/dependencies/clock"
	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/services/session"
	"github.com/mcoot/pairplay/internal/storage"
)

// PasswordDecrypter recovers a password sent over the key exchange channel
type PasswordDecrypter interface {
	Decrypt(username string, ciphertext []byte) (string, error)
	Forget(username string)
}

// Config holds configuration for the user service
type Config struct {
	BcryptCost int
}

// DefaultConfig returns default user service configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost: bcrypt.DefaultCost,
	}
}

// Service handles accounts: registration, login state, profile and friends
type Service struct {
	storage    storage.Storage
	authority  *session.Authority
	decrypter  PasswordDecrypter
	clock      clock.Clock
	logger     *slog.Logger
	bcryptCost int
}

// New creates a new user Service
func New(
	storage storage.Storage,
	authority *session.Authority,
	decrypter PasswordDecrypter,
	clock clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	return &Service{
		storage:    storage,
		authority:  authority,
		decrypter:  decrypter,
		clock:      clock,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates an account from a password encrypted under the user's
// exchanged key. The new user is online and gets a cookie straight away.
func (s *Service) Register(ctx context.Context, username string, encryptedPassword []byte, email string) (*model.User, string, error) {
	if !model.ValidUsername(username) {
		return nil, "", model.ErrInvalidUsername
	}
	if len(encryptedPassword) == 0 {
		return nil, "", model.ErrInvalidPassword
	}
	if strings.TrimSpace(email) == "" {
		return nil, "", model.ErrInvalidEmail
	}

	exists, err := s.storage.UserExists(ctx, username)
	if err != nil {
		return nil, "", err
	}
	if exists {
		return nil, "", model.ErrUserAlreadyExists
	}

	password, err := s.decrypter.Decrypt(username, encryptedPassword)
	if err != nil {
		return nil, "", err
	}
	if password == "" {
		return nil, "", model.ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	user := &model.User{
		Username:  username,
		Password:  string(hash),
		Email:     email,
		Online:    true,
		Friends:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.AddUser(ctx, user); err != nil {
		return nil, "", err
	}

	s.logger.Info("user registered", slog.String("username", username))

	return user, session.UserCookie(user), nil
}

// Login checks the password and marks the user online
func (s *Service) Login(ctx context.Context, username string, encryptedPassword []byte) (*model.User, string, error) {
	stored, err := s.storage.GetUser(ctx, username)
	if err != nil {
		return nil, "", err
	}

	password, err := s.decrypter.Decrypt(username, encryptedPassword)
	if err != nil {
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, "", model.ErrInvalidPassword
		}
		return nil, "", err
	}

	user, err := s.storage.UpdateUser(ctx, username, func(u *model.User) error {
		u.Online = true
		u.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user logged in", slog.String("username", username))

	return user, session.UserCookie(user), nil
}

// Logout marks the user offline and drops their key exchange state. The
// cookie must belong to the user being logged out.
func (s *Service) Logout(ctx context.Context, username, cookie string) error {
	if err := s.authority.ValidateUserCookie(ctx, cookie); err != nil {
		return err
	}
	qualifier, err := session.ExtractQualifier(cookie)
	if err != nil {
		return err
	}
	if qualifier != username {
		return model.ErrInvalidUserCookie
	}

	_, err = s.storage.UpdateUser(ctx, username, func(u *model.User) error {
		u.Online = false
		u.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return err
	}
	s.decrypter.Forget(username)

	s.logger.Info("user logged out", slog.String("username", username))
	return nil
}

// GetUser retrieves a user by username
func (s *Service) GetUser(ctx context.Context, username string) (*model.User, error) {
	return s.storage.GetUser(ctx, username)
}

// ListUsernames returns every registered username in order
func (s *Service) ListUsernames(ctx context.Context) ([]string, error) {
	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Username
	}
	return names, nil
}

// UpdateEmail changes the email. The cookie digest covers the email, so the
// old cookie stops validating and the new one is returned.
func (s *Service) UpdateEmail(ctx context.Context, username, email string) (*model.User, string, error) {
	if strings.TrimSpace(email) == "" {
		return nil, "", model.ErrInvalidEmail
	}
	user, err := s.storage.UpdateUser(ctx, username, func(u *model.User) error {
		u.Email = email
		u.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return user, session.UserCookie(user), nil
}

// AddFriend adds another existing user to the friend list. Adding a friend
// twice is a no-op.
func (s *Service) AddFriend(ctx context.Context, username, friend string) (*model.User, error) {
	if friend == username || !model.ValidUsername(friend) {
		return nil, model.ErrInvalidFriend
	}
	exists, err := s.storage.UserExists(ctx, friend)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, model.ErrUserNotFound
	}

	return s.storage.UpdateUser(ctx, username, func(u *model.User) error {
		if u.HasFriend(friend) {
			return nil
		}
		u.Friends = append(u.Friends, friend)
		u.UpdatedAt = s.clock.Now()
		return nil
	})
}

// RecordResult updates win/loss/draw counters for both players of a
// finished game
func (s *Service) RecordResult(ctx context.Context, game *model.Game) error {
	var p1, p2 func(u *model.User)
	switch game.Status {
	case model.GameStatusPlayer1Win:
		p1 = func(u *model.User) { u.Wins++ }
		p2 = func(u *model.User) { u.Losses++ }
	case model.GameStatusPlayer2Win:
		p1 = func(u *model.User) { u.Losses++ }
		p2 = func(u *model.User) { u.Wins++ }
	case model.GameStatusDraw:
		p1 = func(u *model.User) { u.Draws++ }
		p2 = p1
	default:
		return nil
	}

	now := s.clock.Now()
	for _, change := range []struct {
		username string
		apply    func(u *model.User)
	}{{game.Player1, p1}, {game.Player2, p2}} {
		_, err := s.storage.UpdateUser(ctx, change.username, func(u *model.User) error {
			change.apply(u)
			u.UpdatedAt = now
			return nil
		})
		if err != nil {
			return fmt.Errorf("record result for %s: %w", change.username, err)
		}
	}
	return nil
}
