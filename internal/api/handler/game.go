package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/pairplay/internal/api/middleware"
	"github.com/mcoot/pairplay/internal/api/response"
	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/services/game"
	"github.com/mcoot/pairplay/internal/services/matchmaker"
)

// GameHandler handles game creation and lookup endpoints
type GameHandler struct {
	games      *game.Service
	matchmaker *matchmaker.Matchmaker
	logger     *slog.Logger
}

// NewGameHandler creates a new game handler
func NewGameHandler(games *game.Service, mm *matchmaker.Matchmaker, logger *slog.Logger) *GameHandler {
	return &GameHandler{
		games:      games,
		matchmaker: mm,
		logger:     logger,
	}
}

// ListForUser handles GET /api/v1/games/{username}
func (h *GameHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	games, err := h.games.GamesForUser(r.Context(), username)
	if err != nil {
		failure(w, r, h.logger, "games.list", err, slog.String("username", username))
		return
	}

	response.JSON(w, http.StatusOK, response.GamesFromModel(games))
}

// CreateRandom handles POST /api/v1/games/create. The caller is paired with
// whoever has waited longest, or queued if nobody is waiting.
func (h *GameHandler) CreateRandom(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())

	g, cookie, err := h.matchmaker.JoinRandomQueue(r.Context(), username)
	if err != nil {
		failure(w, r, h.logger, "games.create_random", err, slog.String("username", username))
		return
	}
	if g == nil {
		response.JSON(w, http.StatusAccepted, response.QueuedResponse{
			Queued:  true,
			Waiting: h.matchmaker.QueueLength(),
		})
		return
	}

	response.JSON(w, http.StatusCreated, response.NewGameResponse(g, cookie))
}

// CreateWith handles POST /api/v1/games/create/{username}
func (h *GameHandler) CreateWith(w http.ResponseWriter, r *http.Request) {
	requester := middleware.MustGetUsername(r.Context())
	opponent := mux.Vars(r)["username"]

	g, cookie, err := h.matchmaker.CreateGameWithOpponent(r.Context(), requester, opponent)
	if err != nil {
		failure(w, r, h.logger, "games.create", err,
			slog.String("username", requester),
			slog.String("opponent", opponent))
		return
	}

	response.JSON(w, http.StatusCreated, response.NewGameResponse(g, cookie))
}

// Cookie handles GET /api/v1/games/id/{gameId}/cookie so a player can
// recover the cookie of a game they are in
func (h *GameHandler) Cookie(w http.ResponseWriter, r *http.Request) {
	username := middleware.MustGetUsername(r.Context())
	gameID, ok := parseGameID(w, r)
	if !ok {
		return
	}

	g, cookie, err := h.games.GameCookieFor(r.Context(), gameID, username)
	if err != nil {
		failure(w, r, h.logger, "games.cookie", err,
			slog.String("username", username),
			slog.Int("game_id", int(gameID)))
		return
	}

	response.JSON(w, http.StatusOK, response.NewGameResponse(g, cookie))
}

// parseGameID reads the {gameId} path variable, writing a 400 if malformed
func parseGameID(w http.ResponseWriter, r *http.Request) (model.GameID, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["gameId"])
	if err != nil || id < 0 {
		WriteError(w, NewInvalidRequestError("gameId must be a non-negative integer"))
		return 0, false
	}
	return model.GameID(id), true
}
