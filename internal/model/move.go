package model

import "time"

// Move is a single play in a game. ID is the position in the game's ledger,
// assigned when the move is committed.
type Move struct {
	ID            int
	GameID        GameID
	StartLocation string
	EndLocation   string
	Result        string // empty for non-terminal moves
	CreatedAt     time.Time
}

// Equal compares the content two players agree on. ID and CreatedAt are
// assigned at commit and don't take part.
func (m Move) Equal(other Move) bool {
	return m.GameID == other.GameID &&
		m.StartLocation == other.StartLocation &&
		m.EndLocation == other.EndLocation &&
		m.Result == other.Result
}

// IsFinal returns true if the move carries a result
func (m Move) IsFinal() bool {
	return m.Result != ""
}
