package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jameshartig/autopreset/pkg/log"
	"google.golang.org/api/idtoken"
)

// TokenValidator validates a Google-signed ID token for the given audience.
type TokenValidator func(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)

type contextKey string

const emailContextKey contextKey = "email"

// schedulerAuthMiddleware only lets through requests carrying an ID token
// whose email is the scheduler's service account or one of the admins. Without
// an audience and at least one allowed email every request is rejected unless
// auth is bypassed.
func (s *Server) schedulerAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if s.schedulerAudience == "" || (s.schedulerEmail == "" && len(s.adminEmails) == 0) {
			if !s.bypassAuth {
				log.Ctx(ctx).WarnContext(ctx, "missing authentication for preset")
				writeJSONError(w, "missing authentication", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeJSONError(w, "invalid authorization header", http.StatusUnauthorized)
			return
		}

		payload, err := s.tokenValidator(ctx, parts[1], s.schedulerAudience)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to validate id token", slog.Any("error", err))
			writeJSONError(w, "invalid id token", http.StatusUnauthorized)
			return
		}

		email, ok := payload.Claims["email"].(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "invalid email in id token")
			writeJSONError(w, "invalid token claims", http.StatusForbidden)
			return
		}

		if !s.isAllowedEmail(email) {
			log.Ctx(ctx).WarnContext(ctx, "unauthorized email for preset", slog.String("email", email))
			writeJSONError(w, "unauthorized email", http.StatusForbidden)
			return
		}
		log.Ctx(ctx).DebugContext(ctx, "preset: authorized", slog.String("email", email))

		ctx = context.WithValue(ctx, emailContextKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) isAllowedEmail(email string) bool {
	if s.schedulerEmail != "" && email == s.schedulerEmail {
		return true
	}
	for _, admin := range s.adminEmails {
		if email == admin {
			return true
		}
	}
	return false
}
