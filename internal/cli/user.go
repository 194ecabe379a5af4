package cli

import (
	"errors"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/pairplay/internal/api/request"
	"github.com/mcoot/pairplay/internal/api/response"
	"github.com/mcoot/pairplay/internal/services/session"
)

var errNotLoggedIn = errors.New("not logged in (run 'pairplay user login' first)")

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User account operations",
		Long:  "Register, log in, and manage user accounts and friends.",
	}

	cmd.AddCommand(newUserRegisterCmd())
	cmd.AddCommand(newUserLoginCmd())
	cmd.AddCommand(newUserLogoutCmd())
	cmd.AddCommand(newUserGetCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserUpdateCmd())
	cmd.AddCommand(newUserFriendCmd())

	return cmd
}

// currentUsername reads the username out of the stored user cookie
func currentUsername() (string, error) {
	if cfg.Token == "" {
		return "", errNotLoggedIn
	}
	cookie, err := session.DecodeCookie(cfg.Token)
	if err != nil {
		return "", err
	}
	return session.ExtractQualifier(cookie)
}

// saveAuth stores the cookie handed out by the server and prints the user
func saveAuth(result response.AuthResponse) error {
	if err := cfg.SaveToken(result.UserCookie); err != nil {
		return err
	}
	client.SetToken(result.UserCookie)

	NewOutput(cfg.Output).Print(result)
	return nil
}

func newUserRegisterCmd() *cobra.Command {
	var password, email string

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Register a new user",
		Long: `Register a new user and save the returned user cookie.

The password is encrypted under a key agreed with the server before it is sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]

			ciphertext, err := encryptPassword(client, username, password)
			if err != nil {
				return err
			}

			var result response.AuthResponse
			req := request.RegisterRequest{
				Username: username,
				Password: ciphertext,
				Email:    email,
			}
			if err := client.Post("/api/v1/users", req, &result); err != nil {
				return err
			}
			return saveAuth(result)
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address (required)")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newUserLoginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and save the user cookie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]

			ciphertext, err := encryptPassword(client, username, password)
			if err != nil {
				return err
			}

			var result response.AuthResponse
			path := "/api/v1/users/login/" + url.PathEscape(username)
			if err := client.Put(path, request.LoginRequest{Password: ciphertext}, &result); err != nil {
				return err
			}
			return saveAuth(result)
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newUserLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the saved user cookie",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := currentUsername()
			if err != nil {
				return err
			}

			if err := client.Put("/api/v1/users/logout/"+url.PathEscape(username), nil, nil); err != nil {
				return err
			}
			if err := cfg.ClearToken(); err != nil {
				return err
			}

			NewOutput(cfg.Output).PrintMessage("Logged out " + username)
			return nil
		},
	}
}

func newUserGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [username]",
		Short: "Show a user (defaults to yourself)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := usernameArg(args)
			if err != nil {
				return err
			}

			var result response.User
			if err := client.Get("/api/v1/users/"+url.PathEscape(username), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered usernames",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.UsernamesResponse
			if err := client.Get("/api/v1/users", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newUserUpdateCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change your email address",
		Long:  "Change your email address. The server issues a new user cookie, which is saved.",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := currentUsername()
			if err != nil {
				return err
			}

			var result response.AuthResponse
			path := "/api/v1/users/" + url.PathEscape(username)
			if err := client.Put(path, request.UpdateUserRequest{Email: email}, &result); err != nil {
				return err
			}
			return saveAuth(result)
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "New email address (required)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newUserFriendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "friend <username>",
		Short: "Add a friend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := currentUsername()
			if err != nil {
				return err
			}

			var result response.User
			path := "/api/v1/users/" + url.PathEscape(username) + "/friends"
			if err := client.Post(path, request.AddFriendRequest{Friend: args[0]}, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func usernameArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return currentUsername()
}
