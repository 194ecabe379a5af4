package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/pairplay/internal/api/middleware"
	"github.com/mcoot/pairplay/internal/api/request"
	"github.com/mcoot/pairplay/internal/api/response"
	"github.com/mcoot/pairplay/internal/services/user"
)

// UserHandler handles account endpoints
type UserHandler struct {
	users  *user.Service
	logger *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *user.Service, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// Register handles POST /api/v1/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	u, cookie, err := h.users.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		failure(w, r, h.logger, "users.register", err, slog.String("username", req.Username))
		return
	}

	response.JSON(w, http.StatusCreated, response.NewAuthResponse(u, cookie))
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.users.ListUsernames(r.Context())
	if err != nil {
		failure(w, r, h.logger, "users.list", err)
		return
	}

	response.JSON(w, http.StatusOK, response.UsernamesResponse{Usernames: names})
}

// Login handles PUT /api/v1/users/login/{username}
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	u, cookie, err := h.users.Login(r.Context(), username, req.Password)
	if err != nil {
		failure(w, r, h.logger, "users.login", err, slog.String("username", username))
		return
	}

	response.JSON(w, http.StatusOK, response.NewAuthResponse(u, cookie))
}

// Logout handles PUT /api/v1/users/logout/{username}
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := h.users.Logout(r.Context(), username, middleware.GetUserCookie(r.Context())); err != nil {
		failure(w, r, h.logger, "users.logout", err, slog.String("username", username))
		return
	}

	response.NoContent(w)
}

// Get handles GET /api/v1/users/{username}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	u, err := h.users.GetUser(r.Context(), username)
	if err != nil {
		failure(w, r, h.logger, "users.get", err, slog.String("username", username))
		return
	}

	response.JSON(w, http.StatusOK, response.UserFromModel(u))
}

// Update handles PUT /api/v1/users/{username}. The cookie changes with the
// email, so the new one is returned.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var req request.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	u, cookie, err := h.users.UpdateEmail(r.Context(), username, req.Email)
	if err != nil {
		failure(w, r, h.logger, "users.update", err, slog.String("username", username))
		return
	}

	response.JSON(w, http.StatusOK, response.NewAuthResponse(u, cookie))
}

// AddFriend handles POST /api/v1/users/{username}/friends
func (h *UserHandler) AddFriend(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var req request.AddFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	u, err := h.users.AddFriend(r.Context(), username, req.Friend)
	if err != nil {
		failure(w, r, h.logger, "users.add_friend", err,
			slog.String("username", username),
			slog.String("friend", req.Friend))
		return
	}

	response.JSON(w, http.StatusOK, response.UserFromModel(u))
}
