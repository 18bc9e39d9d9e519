package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2/jwt"

	"healthTrackerAPI/internal/logger"
)

type contextKey string

const ClerkIDKey contextKey = "clerkID"

// TokenVerifier returns the subject of a valid session token.
type TokenVerifier func(ctx context.Context, token string) (string, error)

// ClerkVerifier checks session tokens against Clerk. clerk.SetKey must have
// been called first.
func ClerkVerifier(ctx context.Context, token string) (string, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{
		Token: token,
	})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// OptionalAuthMiddleware attaches the Clerk user ID when a valid bearer token
// is present and lets every request through either way.
func OptionalAuthMiddleware(verify TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				token := strings.TrimPrefix(authHeader, "Bearer ")
				subject, err := verify(r.Context(), token)
				if err != nil {
					log.Debug("ignoring invalid session token", "path", r.URL.Path, "error", err)
					authRejections.WithLabelValues("invalid_token").Inc()
				} else {
					ctx := context.WithValue(r.Context(), ClerkIDKey, subject)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClerkID extracts Clerk user ID from context
func GetClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(ClerkIDKey).(string)
	return clerkID, ok
}
