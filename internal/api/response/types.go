package response

import (
	"math/big"
	"time"

	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/services/keyexchange"
	"github.com/mcoot/pairplay/internal/services/session"
)

// KeyExchangeParams are the server's public DH values as decimal strings
type KeyExchangeParams struct {
	Modulus     string `json:"modulus"`
	Generator   string `json:"generator"`
	PublicValue string `json:"public_value"`
}

// KeyExchangeParamsFromModel converts keyexchange.Params
func KeyExchangeParamsFromModel(p keyexchange.Params) KeyExchangeParams {
	return KeyExchangeParams{
		Modulus:     p.Modulus.String(),
		Generator:   p.Generator.String(),
		PublicValue: p.PublicValue.String(),
	}
}

// ToModel parses the decimal strings back into keyexchange.Params
func (p KeyExchangeParams) ToModel() (keyexchange.Params, bool) {
	modulus, ok1 := new(big.Int).SetString(p.Modulus, 10)
	generator, ok2 := new(big.Int).SetString(p.Generator, 10)
	public, ok3 := new(big.Int).SetString(p.PublicValue, 10)
	if !ok1 || !ok2 || !ok3 {
		return keyexchange.Params{}, false
	}
	return keyexchange.Params{Modulus: modulus, Generator: generator, PublicValue: public}, true
}

// User represents a user in API responses. The credential is never included.
type User struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Online   bool     `json:"online"`
	Friends  []string `json:"friends"`
	Wins     int      `json:"wins"`
	Losses   int      `json:"losses"`
	Draws    int      `json:"draws"`
	Rank     int      `json:"rank"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	info := u.Info()
	friends := info.Friends
	if friends == nil {
		friends = []string{}
	}
	return User{
		Username: info.Username,
		Email:    info.Email,
		Online:   info.Online,
		Friends:  friends,
		Wins:     info.Wins,
		Losses:   info.Losses,
		Draws:    info.Draws,
		Rank:     info.Rank,
	}
}

// AuthResponse is the response for endpoints that hand out a user cookie
type AuthResponse struct {
	User       User   `json:"user"`
	UserCookie string `json:"user_cookie"`
}

// NewAuthResponse encodes the cookie for the wire
func NewAuthResponse(u *model.User, cookie string) AuthResponse {
	return AuthResponse{
		User:       UserFromModel(u),
		UserCookie: session.EncodeCookie(cookie),
	}
}

// UsernamesResponse lists registered usernames
type UsernamesResponse struct {
	Usernames []string `json:"usernames"`
}

// Game represents a game in API responses
type Game struct {
	ID        int       `json:"id"`
	Player1   string    `json:"player1"`
	Player2   string    `json:"player2"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GameFromModel converts a model.Game
func GameFromModel(g *model.Game) Game {
	return Game{
		ID:        int(g.ID),
		Player1:   g.Player1,
		Player2:   g.Player2,
		Status:    string(g.Status),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

// GamesFromModel converts a list of games, never returning nil
func GamesFromModel(games []*model.Game) []Game {
	out := make([]Game, len(games))
	for i, g := range games {
		out[i] = GameFromModel(g)
	}
	return out
}

// GameResponse carries a game together with its wire-encoded cookie
type GameResponse struct {
	Game       Game   `json:"game"`
	GameCookie string `json:"game_cookie"`
}

// NewGameResponse encodes the cookie for the wire
func NewGameResponse(g *model.Game, cookie string) GameResponse {
	return GameResponse{
		Game:       GameFromModel(g),
		GameCookie: session.EncodeCookie(cookie),
	}
}

// QueuedResponse tells a player they are waiting for an opponent
type QueuedResponse struct {
	Queued  bool `json:"queued"`
	Waiting int  `json:"waiting"`
}

// Move represents a committed move
type Move struct {
	ID            int       `json:"id"`
	GameID        int       `json:"game_id"`
	StartLocation string    `json:"start_location"`
	EndLocation   string    `json:"end_location"`
	Result        string    `json:"result,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// MoveFromModel converts a model.Move
func MoveFromModel(m *model.Move) Move {
	return Move{
		ID:            m.ID,
		GameID:        int(m.GameID),
		StartLocation: m.StartLocation,
		EndLocation:   m.EndLocation,
		Result:        m.Result,
		CreatedAt:     m.CreatedAt,
	}
}

// MovesFromModel converts a list of moves, never returning nil
func MovesFromModel(moves []*model.Move) []Move {
	out := make([]Move, len(moves))
	for i, m := range moves {
		out[i] = MoveFromModel(m)
	}
	return out
}

// Health is the health check response
type Health struct {
	Status string `json:"status"`
}
