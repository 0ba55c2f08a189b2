package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hirewire/auth-service/internal/security"
	service "github.com/hirewire/auth-service/internal/services"
)

type contextKey string

const subjectKey contextKey = "subject"

func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}

// AuthMiddleware verifies the bearer access token on every protected request.
// Authorize itself stays side-effect-free; the rejected-request event is
// emitted here, at the transport boundary.
func AuthMiddleware(svc service.AuthService, events security.Sink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reject := func(reason string) {
				events.Emit(security.Event{
					Kind:      security.EventUnauthorizedAccess,
					IP:        clientIP(r),
					UserAgent: r.UserAgent(),
					Reason:    reason,
				})
				http.Error(w, genericUnauthorized, http.StatusUnauthorized)
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				reject("authorization header missing")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				reject("invalid authorization header")
				return
			}

			claims, err := svc.Authorize(r.Context(), parts[1])
			if err != nil {
				reject(err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
