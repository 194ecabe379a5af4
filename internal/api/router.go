package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/pairplay/internal/api/handler"
	"github.com/mcoot/pairplay/internal/api/middleware"
	"github.com/mcoot/pairplay/internal/api/response"
	"github.com/mcoot/pairplay/internal/notify"
	"github.com/mcoot/pairplay/internal/services/game"
	"github.com/mcoot/pairplay/internal/services/keyexchange"
	"github.com/mcoot/pairplay/internal/services/matchmaker"
	"github.com/mcoot/pairplay/internal/services/move"
	"github.com/mcoot/pairplay/internal/services/session"
	"github.com/mcoot/pairplay/internal/services/user"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	Authority   *session.Authority
	KeyExchange *keyexchange.Service
	Users       *user.Service
	Games       *game.Service
	Matchmaker  *matchmaker.Matchmaker
	Moves       *move.Consensus
	Hub         *notify.Hub
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	cryptHandler := handler.NewCryptHandler(cfg.KeyExchange, cfg.Logger)
	userHandler := handler.NewUserHandler(cfg.Users, cfg.Logger)
	gameHandler := handler.NewGameHandler(cfg.Games, cfg.Matchmaker, cfg.Logger)
	moveHandler := handler.NewMoveHandler(cfg.Moves, cfg.Logger)
	connectionHandler := handler.NewConnectionHandler(cfg.Hub)

	// Create middleware
	authMiddleware := middleware.UserAuth(cfg.Authority)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	// Logging wraps recovery so a recovered panic is logged with its request ID
	api.Use(loggingMiddleware)
	api.Use(recoveryMiddleware)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Key exchange (no auth, it precedes registration and login)
	api.HandleFunc("/crypt/init/{username}", cryptHandler.Init).Methods(http.MethodGet)
	api.HandleFunc("/crypt/end/{username}", cryptHandler.End).Methods(http.MethodPost)

	// Account routes that hand out cookies
	api.HandleFunc("/users", userHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/users", userHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/users/login/{username}", userHandler.Login).Methods(http.MethodPut)

	// Protected user routes
	users := api.PathPrefix("/users").Subrouter()
	users.Use(authMiddleware)
	users.HandleFunc("/logout/{username}", userHandler.Logout).Methods(http.MethodPut)
	users.HandleFunc("/{username}", userHandler.Get).Methods(http.MethodGet)
	users.Handle("/{username}", middleware.RequireSelf(http.HandlerFunc(userHandler.Update))).Methods(http.MethodPut)
	users.Handle("/{username}/friends", middleware.RequireSelf(http.HandlerFunc(userHandler.AddFriend))).Methods(http.MethodPost)

	// Game routes (all require auth)
	games := api.PathPrefix("/games").Subrouter()
	games.Use(authMiddleware)
	games.HandleFunc("/create", gameHandler.CreateRandom).Methods(http.MethodPost)
	games.HandleFunc("/create/{username}", gameHandler.CreateWith).Methods(http.MethodPost)
	games.HandleFunc("/id/{gameId:[0-9]+}/cookie", gameHandler.Cookie).Methods(http.MethodGet)
	games.HandleFunc("/{username}", gameHandler.ListForUser).Methods(http.MethodGet)

	// Move routes (user and game cookies)
	moves := api.PathPrefix("/moves").Subrouter()
	moves.Use(authMiddleware)
	moves.Use(middleware.RequireGameCookie)
	moves.HandleFunc("/{gameId:[0-9]+}", moveHandler.List).Methods(http.MethodGet)
	moves.HandleFunc("/{gameId:[0-9]+}", moveHandler.Propose).Methods(http.MethodPost)
	moves.HandleFunc("/{gameId:[0-9]+}", moveHandler.Verify).Methods(http.MethodPut)

	// Notification endpoints; one per user, a new connection replaces the old
	connection := api.PathPrefix("/connection").Subrouter()
	connection.Use(authMiddleware)
	connection.Use(middleware.RequireSelf)
	connection.HandleFunc("/{username}/events", connectionHandler.Events).Methods(http.MethodGet)
	connection.HandleFunc("/{username}/ws", connectionHandler.WebSocket).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
