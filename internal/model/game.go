package model

import "time"

// GameID is the dense index of a game in the registry
type GameID int

// GameStatus represents the outcome state of a game
type GameStatus string

const (
	GameStatusPlaying    GameStatus = "PLAYING"
	GameStatusPlayer1Win GameStatus = "PLAYER1_WIN"
	GameStatusPlayer2Win GameStatus = "PLAYER2_WIN"
	GameStatusDraw       GameStatus = "DRAW"
)

// Move results understood by ParseGameStatus
const (
	ResultDraw       = "Draw"
	ResultPlayer1Win = "Player 1 Win"
	ResultPlayer2Win = "Player 2 Win"
)

// ParseGameStatus converts a move result into a game status.
// Unrecognized results map to PLAYING rather than failing.
func ParseGameStatus(result string) GameStatus {
	switch result {
	case ResultDraw:
		return GameStatusDraw
	case ResultPlayer1Win:
		return GameStatusPlayer1Win
	case ResultPlayer2Win:
		return GameStatusPlayer2Win
	default:
		return GameStatusPlaying
	}
}

// IsTerminal returns true once the game has an outcome
func (s GameStatus) IsTerminal() bool {
	return s != GameStatusPlaying
}

// Game is a two-player match
type Game struct {
	ID        GameID
	Player1   string
	Player2   string
	Status    GameStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPlayer returns true if the username plays in this game
func (g *Game) HasPlayer(username string) bool {
	return g.Player1 == username || g.Player2 == username
}

// Opponent returns the other player in the game, or empty if username isn't playing
func (g *Game) Opponent(username string) string {
	switch username {
	case g.Player1:
		return g.Player2
	case g.Player2:
		return g.Player1
	default:
		return ""
	}
}
