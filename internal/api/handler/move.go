package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mcoot/pairplay/internal/api/middleware"
	"github.com/mcoot/pairplay/internal/api/request"
	"github.com/mcoot/pairplay/internal/api/response"
	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/services/move"
	"github.com/mcoot/pairplay/internal/services/session"
)

// MoveHandler handles the propose/verify move endpoints
type MoveHandler struct {
	moves  *move.Consensus
	logger *slog.Logger
}

// NewMoveHandler creates a new move handler
func NewMoveHandler(moves *move.Consensus, logger *slog.Logger) *MoveHandler {
	return &MoveHandler{
		moves:  moves,
		logger: logger,
	}
}

// List handles GET /api/v1/moves/{gameId}
func (h *MoveHandler) List(w http.ResponseWriter, r *http.Request) {
	gameID, ok := parseGameID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	moves, err := h.moves.ListMoves(ctx, gameID, middleware.GetUserCookie(ctx), middleware.GetGameCookie(ctx))
	if err != nil {
		failure(w, r, h.logger, "moves.list", err,
			slog.String("username", middleware.GetUsername(ctx)),
			slog.Int("game_id", int(gameID)))
		return
	}

	response.JSON(w, http.StatusOK, response.MovesFromModel(moves))
}

// Propose handles POST /api/v1/moves/{gameId}
func (h *MoveHandler) Propose(w http.ResponseWriter, r *http.Request) {
	m, ok := h.decodeMove(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if err := h.moves.ProposeMove(ctx, m, middleware.GetUserCookie(ctx), middleware.GetGameCookie(ctx)); err != nil {
		failure(w, r, h.logger, "moves.propose", err,
			slog.String("username", middleware.GetUsername(ctx)),
			slog.Int("game_id", int(m.GameID)))
		return
	}

	response.Accepted(w)
}

// Verify handles PUT /api/v1/moves/{gameId}
func (h *MoveHandler) Verify(w http.ResponseWriter, r *http.Request) {
	m, ok := h.decodeMove(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if _, err := h.moves.VerifyMove(ctx, m, middleware.GetUserCookie(ctx), middleware.GetGameCookie(ctx)); err != nil {
		failure(w, r, h.logger, "moves.verify", err,
			slog.String("username", middleware.GetUsername(ctx)),
			slog.Int("game_id", int(m.GameID)))
		return
	}

	response.NoContent(w)
}

// decodeMove reads the move body and checks the path's game matches the
// game cookie
func (h *MoveHandler) decodeMove(w http.ResponseWriter, r *http.Request) (model.Move, bool) {
	gameID, ok := parseGameID(w, r)
	if !ok {
		return model.Move{}, false
	}

	var req request.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return model.Move{}, false
	}

	cookieGameID, err := session.GameIDFromCookie(middleware.GetGameCookie(r.Context()))
	if err != nil {
		WriteError(w, err)
		return model.Move{}, false
	}
	if cookieGameID != gameID {
		WriteError(w, model.ErrInvalidGameCookie)
		return model.Move{}, false
	}

	return model.Move{
		GameID:        gameID,
		StartLocation: req.StartLocation,
		EndLocation:   req.EndLocation,
		Result:        req.Result,
	}, true
}
