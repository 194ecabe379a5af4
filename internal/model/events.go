package model

import "time"

// EventType identifies the type of event pushed to a player
type EventType string

const (
	EventGameCreated  EventType = "game_created"
	EventMoveProposed EventType = "move_proposed"
)

// Event is the envelope delivered to a player's registered endpoint
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// GameCreatedPayload tells a player a game has been created for them
type GameCreatedPayload struct {
	GameID     GameID     `json:"game_id"`
	Player1    string     `json:"player1"`
	Player2    string     `json:"player2"`
	Status     GameStatus `json:"status"`
	GameCookie string     `json:"game_cookie"` // wire-encoded
}

// MoveProposedPayload asks the receiving player to verify a move
type MoveProposedPayload struct {
	GameID        GameID `json:"game_id"`
	Proposer      string `json:"proposer"`
	StartLocation string `json:"start_location"`
	EndLocation   string `json:"end_location"`
	Result        string `json:"result"`
}
