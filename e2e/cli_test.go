package e2e_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/pairplay/internal/api"
	"github.com/mcoot/pairplay/internal/api/response"
	"github.com/mcoot/pairplay/internal/factory"
)

var binaryPath string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "pairplay-e2e")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(dir, "pairplay")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/pairplay")
	cmd.Dir = findProjectRoot()
	if output, err := cmd.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build CLI: %v\n%s", err, output)
		_ = os.RemoveAll(dir)
		os.Exit(1)
	}

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}

// cliRunner runs the CLI as one user, with its own cookie file
type cliRunner struct {
	serverURL string
	tokenFile string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()
	return &cliRunner{
		serverURL: serverURL,
		tokenFile: filepath.Join(t.TempDir(), "token"),
	}
}

func (r *cliRunner) args(args []string) []string {
	return append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	cmd := exec.Command(binaryPath, r.args(args)...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// runJSON runs a command that must succeed and decodes its output
func (r *cliRunner) runJSON(t *testing.T, result any, args ...string) {
	t.Helper()
	output, err := r.run(args...)
	require.NoError(t, err, "output: %s", output)
	require.NoError(t, json.Unmarshal([]byte(output), result), "output: %s", output)
}

func startTestServer(t *testing.T) string {
	t.Helper()

	app := factory.NewTestApp()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	router := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Authority:   app.Authority,
		KeyExchange: app.KeyExchange,
		Users:       app.Users,
		Games:       app.Games,
		Matchmaker:  app.Matchmaker,
		Moves:       app.Moves,
		Hub:         app.Hub,
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		_ = app.Close()
		server.Close()
	})
	return server.URL
}

func registered(t *testing.T, serverURL, username string) *cliRunner {
	t.Helper()
	cli := newCLIRunner(t, serverURL)

	var auth response.AuthResponse
	cli.runJSON(t, &auth, "user", "register", username, "--password", "secret-"+username, "--email", username+"@example.com")
	require.Equal(t, username, auth.User.Username)
	return cli
}

type messageResponse struct {
	Message string `json:"message"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	cli := newCLIRunner(t, startTestServer(t))

	var resp response.Health
	cli.runJSON(t, &resp, "health")
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_RegisterLoginLogout(t *testing.T) {
	serverURL := startTestServer(t)
	cli := registered(t, serverURL, "alice")

	// Cookie is saved in the token file
	var user response.User
	cli.runJSON(t, &user, "user", "get")
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.True(t, user.Online)

	var msg messageResponse
	cli.runJSON(t, &msg, "user", "logout")
	assert.Contains(t, msg.Message, "alice")

	output, err := cli.run("user", "get")
	require.Error(t, err)
	assert.Contains(t, output, "not logged in")

	var auth response.AuthResponse
	cli.runJSON(t, &auth, "user", "login", "alice", "--password", "secret-alice")
	assert.True(t, auth.User.Online)
	assert.NotEmpty(t, auth.UserCookie)
}

func TestCLI_LoginWrongPassword(t *testing.T) {
	serverURL := startTestServer(t)
	registered(t, serverURL, "alice")

	cli := newCLIRunner(t, serverURL)
	output, err := cli.run("user", "login", "alice", "--password", "wrong")
	require.Error(t, err)
	assert.Contains(t, output, "INVALID_PASSWORD")
}

func TestCLI_RegisterDuplicate(t *testing.T) {
	serverURL := startTestServer(t)
	registered(t, serverURL, "alice")

	cli := newCLIRunner(t, serverURL)
	output, err := cli.run("user", "register", "alice", "--password", "x", "--email", "a@example.com")
	require.Error(t, err)
	assert.Contains(t, output, "USER_ALREADY_EXISTS")
}

func TestCLI_UserCommands(t *testing.T) {
	serverURL := startTestServer(t)
	alice := registered(t, serverURL, "alice")
	registered(t, serverURL, "bob")

	var names response.UsernamesResponse
	alice.runJSON(t, &names, "user", "list")
	assert.Equal(t, []string{"alice", "bob"}, names.Usernames)

	var user response.User
	alice.runJSON(t, &user, "user", "friend", "bob")
	assert.Equal(t, []string{"bob"}, user.Friends)

	// Updating the email issues a new cookie, which must keep working
	var auth response.AuthResponse
	alice.runJSON(t, &auth, "user", "update", "--email", "new@example.com")
	assert.Equal(t, "new@example.com", auth.User.Email)

	alice.runJSON(t, &user, "user", "get")
	assert.Equal(t, "new@example.com", user.Email)

	alice.runJSON(t, &user, "user", "get", "bob")
	assert.Equal(t, "bob", user.Username)
}

func TestCLI_QueueMatchmaking(t *testing.T) {
	serverURL := startTestServer(t)
	alice := registered(t, serverURL, "alice")
	bob := registered(t, serverURL, "bob")

	var queued response.QueuedResponse
	alice.runJSON(t, &queued, "game", "queue")
	assert.True(t, queued.Queued)

	var created response.GameResponse
	bob.runJSON(t, &created, "game", "queue")
	assert.Equal(t, "alice", created.Game.Player1)
	assert.Equal(t, "bob", created.Game.Player2)
	assert.NotEmpty(t, created.GameCookie)

	var games []response.Game
	alice.runJSON(t, &games, "game", "list")
	require.Len(t, games, 1)
	assert.Equal(t, created.Game.ID, games[0].ID)
}

func TestCLI_GameAndMoves(t *testing.T) {
	serverURL := startTestServer(t)
	alice := registered(t, serverURL, "alice")
	bob := registered(t, serverURL, "bob")

	var created response.GameResponse
	alice.runJSON(t, &created, "game", "challenge", "bob")
	assert.Equal(t, "PLAYING", created.Game.Status)
	gameID := fmt.Sprint(created.Game.ID)

	var fetched response.GameResponse
	bob.runJSON(t, &fetched, "game", "cookie", gameID)
	assert.Equal(t, created.GameCookie, fetched.GameCookie)

	var msg messageResponse
	alice.runJSON(t, &msg, "move", "propose", gameID, "--from", "e2", "--to", "e4")
	bob.runJSON(t, &msg, "move", "verify", gameID, "--from", "e2", "--to", "e4")

	// A verify that doesn't match the pending move is rejected
	bob.runJSON(t, &msg, "move", "propose", gameID, "--from", "e7", "--to", "e5")
	output, err := alice.run("move", "verify", gameID, "--from", "e7", "--to", "e6")
	require.Error(t, err)
	assert.Contains(t, output, "MOVE_NOT_PENDING")

	// Explicit game cookie works the same as a fetched one
	alice.runJSON(t, &msg, "move", "verify", gameID, "--from", "e7", "--to", "e5", "--game-cookie", created.GameCookie)

	alice.runJSON(t, &msg, "move", "propose", gameID, "--from", "d1", "--to", "h5", "--result", "Player 1 Win")
	bob.runJSON(t, &msg, "move", "verify", gameID, "--from", "d1", "--to", "h5", "--result", "Player 1 Win")

	var moves []response.Move
	bob.runJSON(t, &moves, "move", "list", gameID)
	require.Len(t, moves, 3)
	assert.Equal(t, "e2", moves[0].StartLocation)
	assert.Equal(t, "e5", moves[1].EndLocation)
	assert.Equal(t, "Player 1 Win", moves[2].Result)

	var games []response.Game
	bob.runJSON(t, &games, "game", "list")
	require.Len(t, games, 1)
	assert.Equal(t, "PLAYER1_WIN", games[0].Status)

	var user response.User
	alice.runJSON(t, &user, "user", "get")
	assert.Equal(t, 1, user.Wins)
}

func TestCLI_OutsiderCannotMove(t *testing.T) {
	serverURL := startTestServer(t)
	alice := registered(t, serverURL, "alice")
	registered(t, serverURL, "bob")
	carol := registered(t, serverURL, "carol")

	var created response.GameResponse
	alice.runJSON(t, &created, "game", "challenge", "bob")

	output, err := carol.run("move", "propose", fmt.Sprint(created.Game.ID),
		"--from", "a1", "--to", "a2", "--game-cookie", created.GameCookie)
	require.Error(t, err)
	assert.Contains(t, output, "NOT_IN_GAME")
}

func TestCLI_EventStream(t *testing.T) {
	for _, transport := range []string{"sse", "ws"} {
		t.Run(transport, func(t *testing.T) {
			serverURL := startTestServer(t)
			alice := registered(t, serverURL, "alice")
			bob := registered(t, serverURL, "bob")

			args := []string{"events", "--json"}
			if transport == "ws" {
				args = append(args, "--ws")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			cmd := exec.CommandContext(ctx, binaryPath, alice.args(args)...)
			stdout, err := cmd.StdoutPipe()
			require.NoError(t, err)
			require.NoError(t, cmd.Start())
			defer func() {
				_ = cmd.Process.Kill()
				_ = cmd.Wait()
			}()

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(stdout)
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}()

			next := func() map[string]any {
				select {
				case line, ok := <-lines:
					require.True(t, ok, "event stream ended")
					var evt map[string]any
					require.NoError(t, json.Unmarshal([]byte(line), &evt), "line: %s", line)
					return evt
				case <-ctx.Done():
					t.Fatal("timed out waiting for event")
					return nil
				}
			}

			// Both transports greet once the endpoint is registered
			assert.Equal(t, "connected", next()["event"])

			var created response.GameResponse
			bob.runJSON(t, &created, "game", "challenge", "alice")

			evt := next()
			assert.Equal(t, "game_created", evt["event"])
			data, _ := evt["data"].(string)
			assert.True(t, strings.Contains(data, created.GameCookie), "data: %s", data)
		})
	}
}
