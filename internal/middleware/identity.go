package middleware

import (
	"context"
	"net/http"
	"strings"

	"chatroom/internal/httpjson"
)

// Context keys (exported read access goes through FromContext).
type contextKey string

const userKey contextKey = "user"

// Identity extracts the caller's name from the User header and injects it into
// the request context. Existence of the named participant is checked by the
// individual operations, not here.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(r.Header.Get("User"))
		if name == "" {
			httpjson.RespondError(w, http.StatusUnauthorized, "missing User header")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the caller name stored by Identity.
func FromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(userKey).(string)
	return name, ok
}
