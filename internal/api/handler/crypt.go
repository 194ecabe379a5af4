package handler

import (
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/pairplay/internal/api/request"
	"github.com/mcoot/pairplay/internal/api/response"
	"github.com/mcoot/pairplay/internal/services/keyexchange"
)

// CryptHandler handles the Diffie-Hellman exchange endpoints
type CryptHandler struct {
	kex    *keyexchange.Service
	logger *slog.Logger
}

// NewCryptHandler creates a new crypt handler
func NewCryptHandler(kex *keyexchange.Service, logger *slog.Logger) *CryptHandler {
	return &CryptHandler{
		kex:    kex,
		logger: logger,
	}
}

// Init handles GET /api/v1/crypt/init/{username}
func (h *CryptHandler) Init(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	params, err := h.kex.RequestPublicParameter(username)
	if err != nil {
		failure(w, r, h.logger, "crypt.init", err, slog.String("username", username))
		return
	}

	response.JSON(w, http.StatusOK, response.KeyExchangeParamsFromModel(params))
}

// End handles POST /api/v1/crypt/end/{username}
func (h *CryptHandler) End(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var req request.KeyExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	public, ok := new(big.Int).SetString(req.PublicValue, 10)
	if !ok {
		WriteError(w, NewInvalidRequestError("public_value must be a decimal integer"))
		return
	}
	modulus, ok := new(big.Int).SetString(req.Modulus, 10)
	if !ok {
		WriteError(w, NewInvalidRequestError("modulus must be a decimal integer"))
		return
	}

	if err := h.kex.CompleteKeyExchange(username, public, modulus); err != nil {
		failure(w, r, h.logger, "crypt.end", err, slog.String("username", username))
		return
	}

	response.NoContent(w)
}
