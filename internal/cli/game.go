package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mcoot/pairplay/internal/api/response"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game operations",
		Long:  "Find opponents, list your games, and fetch game cookies.",
	}

	cmd.AddCommand(newGameQueueCmd())
	cmd.AddCommand(newGameChallengeCmd())
	cmd.AddCommand(newGameListCmd())
	cmd.AddCommand(newGameCookieCmd())

	return cmd
}

// queueResult is either a created game or a place in the queue
type queueResult struct {
	response.GameResponse
	response.QueuedResponse
}

func newGameQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Join random matchmaking",
		Long: `Join random matchmaking. If another player is waiting a game starts
immediately; otherwise you are queued and notified when matched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result queueResult
			if err := client.Post("/api/v1/games/create", nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			if result.Queued {
				out.Print(result.QueuedResponse)
			} else {
				out.Print(result.GameResponse)
			}
			return nil
		},
	}
}

func newGameChallengeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "challenge <username>",
		Short: "Start a game with a specific player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.GameResponse
			if err := client.Post("/api/v1/games/create/"+url.PathEscape(args[0]), nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newGameListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [username]",
		Short: "List games for a user (defaults to yourself)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := usernameArg(args)
			if err != nil {
				return err
			}

			var result []response.Game
			if err := client.Get("/api/v1/games/"+url.PathEscape(username), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newGameCookieCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cookie <game-id>",
		Short: "Fetch the cookie for one of your games",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID, err := parseGameIDArg(args[0])
			if err != nil {
				return err
			}

			result, err := fetchGame(gameID)
			if err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func fetchGame(gameID int) (response.GameResponse, error) {
	var result response.GameResponse
	err := client.Get(fmt.Sprintf("/api/v1/games/id/%d/cookie", gameID), &result)
	return result, err
}

func parseGameIDArg(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid game id %q", s)
	}
	return id, nil
}
