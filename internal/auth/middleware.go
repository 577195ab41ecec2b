package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// CookieName is the HttpOnly cookie carrying the token.
const CookieName = "token"

// contextKey is an unexported type used for context keys in this package, so
// no other package can read or shadow the values stored here.
type contextKey string

const userIDKey contextKey = "userID"

// SessionChecker reports whether an account currently holds the active
// session. Implemented by service.AccountService.
type SessionChecker interface {
	HasSession(userID int64) bool
}

// RequireAuth enforces authentication on protected routes.
//
// The token comes from an "Authorization: Bearer" header or the "token"
// cookie. A valid token is not enough on its own: the account must also own
// the active session, so a logout invalidates every token issued before it.
func RequireAuth(tokens *TokenService, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil || !sessions.HasSession(userID) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth extracts the caller's identity when a valid token for the
// active session is present, but never blocks the request.
//
// Used on the task board page, which greets a logged-in user.
func OptionalAuth(tokens *TokenService, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil && sessions.HasSession(userID) {
				r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext retrieves the authenticated account id.
// Returns (0, false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id != 0
}

// WithUserID returns a context carrying userID, as RequireAuth does.
// Handler tests use it to skip token issuance.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

var errNoToken = errors.New("auth: no token")

// extractUserID reads the token from the Authorization header, falling back
// to the cookie, and validates it.
func extractUserID(r *http.Request, tokens *TokenService) (int64, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || raw == "" {
			return 0, errNoToken
		}
		return tokens.Validate(raw)
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return 0, errNoToken
	}

	return tokens.Validate(cookie.Value)
}
