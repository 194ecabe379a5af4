package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/pairplay/internal/api/apierr"
	"github.com/mcoot/pairplay/internal/model"
	"github.com/mcoot/pairplay/internal/services/session"
)

// Where cookies are read from. Query parameters exist for clients that
// can't set headers, such as browser EventSource.
const (
	UserCookieParam  = "userCookie"
	GameCookieParam  = "gameCookie"
	GameCookieHeader = "X-Game-Cookie"
)

type contextKey string

const (
	usernameContextKey   contextKey = "username"
	userCookieContextKey contextKey = "user_cookie"
	gameCookieContextKey contextKey = "game_cookie"
)

// UserAuth validates the user cookie and stores the requester in the context
func UserAuth(authority *session.Authority) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encoded := extractUserCookie(r)
			if encoded == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			cookie, err := session.DecodeCookie(encoded)
			if err != nil {
				apierr.WriteError(w, model.ErrInvalidUserCookie)
				return
			}
			if err := authority.ValidateUserCookie(r.Context(), cookie); err != nil {
				apierr.WriteError(w, err)
				return
			}
			username, err := session.ExtractQualifier(cookie)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, usernameContextKey, username)
			ctx = context.WithValue(ctx, userCookieContextKey, cookie)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireGameCookie decodes the game cookie into the context. Validation is
// left to the move protocol, which checks it together with the user cookie.
func RequireGameCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoded := r.Header.Get(GameCookieHeader)
		if encoded == "" {
			encoded = r.URL.Query().Get(GameCookieParam)
		}
		if encoded == "" {
			apierr.WriteError(w, apierr.NewInvalidRequestError("game cookie is required"))
			return
		}

		cookie, err := session.DecodeCookie(encoded)
		if err != nil {
			apierr.WriteError(w, model.ErrInvalidGameCookie)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), gameCookieContextKey, cookie)))
	})
}

// RequireSelf rejects requests whose {username} path variable is not the
// authenticated user. Must run after UserAuth.
func RequireSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["username"] != GetUsername(r.Context()) {
			apierr.WriteError(w, apierr.NewForbiddenError("cookie does not belong to this user"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractUserCookie reads the encoded user cookie from the request
func extractUserCookie(r *http.Request) string {
	// Check Authorization header first
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// Fall back to query parameter
	return r.URL.Query().Get(UserCookieParam)
}

// GetUsername returns the authenticated username from the request context
func GetUsername(ctx context.Context) string {
	username, _ := ctx.Value(usernameContextKey).(string)
	return username
}

// GetUserCookie returns the validated user cookie from the request context
func GetUserCookie(ctx context.Context) string {
	cookie, _ := ctx.Value(userCookieContextKey).(string)
	return cookie
}

// GetGameCookie returns the decoded game cookie from the request context
func GetGameCookie(ctx context.Context) string {
	cookie, _ := ctx.Value(gameCookieContextKey).(string)
	return cookie
}

// MustGetUsername returns the authenticated username or panics
func MustGetUsername(ctx context.Context) string {
	username := GetUsername(ctx)
	if username == "" {
		panic("no username in context - auth middleware not applied?")
	}
	return username
}
