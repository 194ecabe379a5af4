package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/pairplay/internal/api/request"
	"github.com/mcoot/pairplay/internal/api/response"
)

func newMoveCmd() *cobra.Command {
	var gameCookie string

	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move operations",
		Long: `List, propose and verify moves in a game.

Moves need the game's cookie. Pass it with --game-cookie, or leave it out and
it is fetched from the server using your user cookie.`,
	}

	cmd.PersistentFlags().StringVar(&gameCookie, "game-cookie", "", "Game cookie (fetched if empty)")

	cmd.AddCommand(newMoveListCmd(&gameCookie))
	cmd.AddCommand(newMoveSendCmd(&gameCookie, false))
	cmd.AddCommand(newMoveSendCmd(&gameCookie, true))

	return cmd
}

// gameClient returns a client carrying the cookie for gameID
func gameClient(gameID int, gameCookie string) (*Client, error) {
	if gameCookie == "" {
		game, err := fetchGame(gameID)
		if err != nil {
			return nil, err
		}
		gameCookie = game.GameCookie
	}
	return client.WithGameCookie(gameCookie), nil
}

func newMoveListCmd(gameCookie *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <game-id>",
		Short: "List committed moves",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID, err := parseGameIDArg(args[0])
			if err != nil {
				return err
			}
			c, err := gameClient(gameID, *gameCookie)
			if err != nil {
				return err
			}

			var result []response.Move
			if err := c.Get(fmt.Sprintf("/api/v1/moves/%d", gameID), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

// newMoveSendCmd builds "propose" or "verify"; both send the same body
func newMoveSendCmd(gameCookie *string, verify bool) *cobra.Command {
	var req request.MoveRequest

	use, short, done := "propose", "Propose a move for your opponent to verify", "Move proposed"
	if verify {
		use, short, done = "verify", "Verify the move your opponent proposed", "Move verified"
	}

	cmd := &cobra.Command{
		Use:   use + " <game-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID, err := parseGameIDArg(args[0])
			if err != nil {
				return err
			}
			c, err := gameClient(gameID, *gameCookie)
			if err != nil {
				return err
			}

			path := fmt.Sprintf("/api/v1/moves/%d", gameID)
			if verify {
				err = c.Put(path, req, nil)
			} else {
				err = c.Post(path, req, nil)
			}
			if err != nil {
				return err
			}

			NewOutput(cfg.Output).PrintMessage(done)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.StartLocation, "from", "", "Start location (required)")
	cmd.Flags().StringVar(&req.EndLocation, "to", "", "End location (required)")
	cmd.Flags().StringVar(&req.Result, "result", "", "Result if this move ends the game: \"Draw\", \"Player 1 Win\" or \"Player 2 Win\"")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
