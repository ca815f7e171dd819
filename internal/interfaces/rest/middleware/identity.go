package middleware

import (
	"context"
	"net/http"
	"strings"
)

// UserIDHeader is set by the upstream auth layer once the caller is verified.
const UserIDHeader = "X-User-Id"

type userIDKey struct{}

// Identity copies the authenticated caller into the request context.
// Requests without the header pass through; handlers decide whether an
// identity is required.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey{}).(string)
	return userID, ok && userID != ""
}
