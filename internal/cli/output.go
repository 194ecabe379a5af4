package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcoot/pairplay/internal/api/response"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to stdout
func NewOutput(format string) *Output {
	return &Output{format: format, w: os.Stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.User:
		o.printUser(v)
	case response.AuthResponse:
		o.printAuth(v)
	case response.UsernamesResponse:
		o.printUsernames(v)
	case response.GameResponse:
		o.printGameResponse(v)
	case []response.Game:
		o.printGames(v)
	case response.QueuedResponse:
		fmt.Fprintf(o.w, "Queued for matchmaking (%d waiting)\n", v.Waiting)
	case []response.Move:
		o.printMoves(v)
	case response.Health:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printUser(u response.User) {
	online := "no"
	if u.Online {
		online = "yes"
	}
	fmt.Fprintf(o.w, "User: %s <%s>\n", u.Username, u.Email)
	fmt.Fprintf(o.w, "Online: %s\n", online)
	fmt.Fprintf(o.w, "Record: %d W / %d L / %d D (rank %d)\n", u.Wins, u.Losses, u.Draws, u.Rank)
	if len(u.Friends) > 0 {
		fmt.Fprintf(o.w, "Friends: %s\n", strings.Join(u.Friends, ", "))
	}
}

func (o *Output) printAuth(a response.AuthResponse) {
	o.printUser(a.User)
	fmt.Fprintf(o.w, "User cookie: %s\n", a.UserCookie)
}

func (o *Output) printUsernames(u response.UsernamesResponse) {
	if len(u.Usernames) == 0 {
		fmt.Fprintln(o.w, "No users")
		return
	}
	for _, name := range u.Usernames {
		fmt.Fprintln(o.w, name)
	}
}

func (o *Output) printGame(g response.Game) {
	fmt.Fprintf(o.w, "Game %d: %s vs %s [%s]\n", g.ID, g.Player1, g.Player2, g.Status)
}

func (o *Output) printGameResponse(g response.GameResponse) {
	o.printGame(g.Game)
	fmt.Fprintf(o.w, "Game cookie: %s\n", g.GameCookie)
}

func (o *Output) printGames(games []response.Game) {
	if len(games) == 0 {
		fmt.Fprintln(o.w, "No games")
		return
	}
	for _, g := range games {
		o.printGame(g)
	}
}

func (o *Output) printMoves(moves []response.Move) {
	if len(moves) == 0 {
		fmt.Fprintln(o.w, "No moves")
		return
	}
	for _, m := range moves {
		fmt.Fprintf(o.w, "%3d. %s -> %s", m.ID, m.StartLocation, m.EndLocation)
		if m.Result != "" {
			fmt.Fprintf(o.w, " (%s)", m.Result)
		}
		fmt.Fprintln(o.w)
	}
}
