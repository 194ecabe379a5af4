// Package session mints and validates the user and game cookies.
//
// A cookie is "<qualifier>:<digest>" where the digest is the raw SHA-256 of
// stored record fields. There is no server secret: anyone who can read the
// username, stored credential and email can forge a user cookie, and anyone
// who knows both player names can forge a game cookie. This weakness is kept
// deliberately; do not extend the scheme to carry anything more sensitive.
package session

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strconv"
	"strings"

	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/storage"
)

// Authority mints and validates cookies from stored records. It holds no state.
type Authority struct {
	storage storage.Storage
}

// New creates a new session Authority
func New(storage storage.Storage) *Authority {
	return &Authority{storage: storage}
}

// MintUserCookie returns the cookie for a registered user
func (a *Authority) MintUserCookie(ctx context.Context, username string) (string, error) {
	user, err := a.storage.GetUser(ctx, username)
	if err != nil {
		return "", err
	}
	return UserCookie(user), nil
}

// ValidateUserCookie recomputes the cookie for its embedded username and
// compares. An unknown username surfaces as ErrUserNotFound.
func (a *Authority) ValidateUserCookie(ctx context.Context, cookie string) error {
	username, _, ok := strings.Cut(cookie, model.CookieDelimiter)
	if !ok {
		return model.ErrInvalidUserCookie
	}
	expected, err := a.MintUserCookie(ctx, username)
	if err != nil {
		return err
	}
	if !equal(expected, cookie) {
		return model.ErrInvalidUserCookie
	}
	return nil
}

// MintGameCookie returns the cookie for an existing game
func (a *Authority) MintGameCookie(ctx context.Context, gameID model.GameID) (string, error) {
	game, err := a.storage.GetGame(ctx, gameID)
	if err != nil {
		return "", err
	}
	return GameCookie(game), nil
}

// ValidateGameCookie recomputes the cookie for its embedded game ID and compares
func (a *Authority) ValidateGameCookie(ctx context.Context, cookie string) error {
	gameID, err := GameIDFromCookie(cookie)
	if err != nil {
		return err
	}
	expected, err := a.MintGameCookie(ctx, gameID)
	if err != nil {
		return err
	}
	if !equal(expected, cookie) {
		return model.ErrInvalidGameCookie
	}
	return nil
}

// ValidateCookies checks a user cookie and a game cookie together
func (a *Authority) ValidateCookies(ctx context.Context, userCookie, gameCookie string) error {
	if err := a.ValidateUserCookie(ctx, userCookie); err != nil {
		return err
	}
	return a.ValidateGameCookie(ctx, gameCookie)
}

// ExtractQualifier returns the part of a cookie before the first delimiter
func ExtractQualifier(cookie string) (string, error) {
	qualifier, _, ok := strings.Cut(cookie, model.CookieDelimiter)
	if !ok {
		return "", model.ErrInvalidUserCookie
	}
	return qualifier, nil
}

// GameIDFromCookie parses the game ID qualifier of a game cookie
func GameIDFromCookie(cookie string) (model.GameID, error) {
	qualifier, _, ok := strings.Cut(cookie, model.CookieDelimiter)
	if !ok {
		return 0, model.ErrInvalidGameCookie
	}
	id, err := strconv.Atoi(qualifier)
	if err != nil {
		return 0, model.ErrInvalidGameCookie
	}
	return model.GameID(id), nil
}

// UserCookie computes "username:sha256(username || password || email)"
func UserCookie(user *model.User) string {
	return cookie(user.Username, user.Username+user.Password+user.Email)
}

// GameCookie computes "id:sha256(player1 || player2)"
func GameCookie(game *model.Game) string {
	return cookie(strconv.Itoa(int(game.ID)), game.Player1+game.Player2)
}

func cookie(qualifier, material string) string {
	digest := sha256.Sum256([]byte(material))
	return qualifier + model.CookieDelimiter + string(digest[:])
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
