package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput, useWebSocket bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Register for notifications and stream them",
		Long: `Register this terminal as your notification endpoint and print events
as they arrive. Registering replaces any endpoint you had open elsewhere.

Events include:
  - game_created: A game was created for you (includes the game cookie)
  - move_proposed: Your opponent proposed a move for you to verify

Use --ws to connect over WebSocket instead of Server-Sent Events.
Press Ctrl+C to disconnect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := currentUsername()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			if useWebSocket {
				return streamWebSocket(ctx, username, jsonOutput)
			}
			return streamEvents(ctx, username, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")
	cmd.Flags().BoolVar(&useWebSocket, "ws", false, "Use WebSocket instead of SSE")

	return cmd
}

// StreamEvent is one received notification
type StreamEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func connectionURL(username, suffix string) string {
	return strings.TrimSuffix(cfg.ServerURL, "/") + "/api/v1/connection/" + url.PathEscape(username) + "/" + suffix
}

func streamEvents(ctx context.Context, username string, jsonOutput bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, connectionURL(username, "events"), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	httpClient := &http.Client{
		Timeout: 0, // No timeout for SSE
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if !jsonOutput {
		fmt.Printf("Connected as %s\n", username)
	}

	err = readSSE(resp.Body, func(event, data string) {
		printEvent(event, data, jsonOutput)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}

	if !jsonOutput {
		fmt.Println("Disconnected")
	}
	return nil
}

// readSSE parses an event stream, calling fn for every complete event
func readSSE(r io.Reader, fn func(event, data string)) error {
	scanner := bufio.NewScanner(r)
	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			if currentEvent != "" {
				fn(currentEvent, strings.Join(dataLines, "\n"))
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	return scanner.Err()
}

func streamWebSocket(ctx context.Context, username string, jsonOutput bool) error {
	wsURL := connectionURL(username, "ws")
	wsURL = "ws" + strings.TrimPrefix(wsURL, "http")

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.Token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connection failed: unexpected status %d", resp.StatusCode)
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// Unblock ReadMessage on interrupt
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	// Matches the greeting the SSE endpoint sends
	if jsonOutput {
		printEvent("connected", `{"status":"connected"}`, true)
	} else {
		fmt.Printf("Connected as %s\n", username)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return fmt.Errorf("stream error: %w", err)
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return errors.New("stream error: malformed event")
		}
		printEvent(envelope.Type, string(data), jsonOutput)
	}

	if !jsonOutput {
		fmt.Println("Disconnected")
	}
	return nil
}

func printEvent(event, data string, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		evt := StreamEvent{
			Time:  now,
			Event: event,
			Data:  data,
		}
		jsonData, _ := json.Marshal(evt)
		fmt.Println(string(jsonData))
	} else {
		timestamp := now.Format("2006-01-02 15:04:05")
		// Truncate data if it's too long for display
		displayData := data
		if len(displayData) > 160 {
			displayData = displayData[:160] + "..."
		}
		displayData = strings.ReplaceAll(displayData, "\n", " ")
		fmt.Printf("[%s] %s: %s\n", timestamp, event, displayData)
	}
}
