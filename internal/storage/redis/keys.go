package redis

import (
	"fmt"

	"github.com/mcoot/pairplay/internal/model"
)

// keys builds Redis keys under a common prefix
type keys struct {
	prefix string
}

// user returns the key for a User
func (k keys) user(username string) string {
	return fmt.Sprintf("%s:user:%s", k.prefix, username)
}

// usernames returns the key for the SET of all usernames
func (k keys) usernames() string {
	return fmt.Sprintf("%s:idx:usernames", k.prefix)
}

// gameCount returns the key for the counter that assigns game IDs
func (k keys) gameCount() string {
	return fmt.Sprintf("%s:game_count", k.prefix)
}

// game returns the key for a Game
func (k keys) game(id model.GameID) string {
	return fmt.Sprintf("%s:game:%d", k.prefix, id)
}

// userGames returns the key for the ZSET of game IDs a user plays in (score = game ID)
func (k keys) userGames(username string) string {
	return fmt.Sprintf("%s:idx:user_games:%s", k.prefix, username)
}

// moves returns the key for the LIST of committed moves of a game
func (k keys) moves(id model.GameID) string {
	return fmt.Sprintf("%s:moves:%d", k.prefix, id)
}
