package auth

import (
	"context"
	"net/http"
	"strings"
)

const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
)

// Actor is the validated identity attached to a request context.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type ctxKey int

const ctxKeyActor ctxKey = iota

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKeyActor).(Actor)
	return a, ok
}

// ContextWithActor attaches a validated actor to the context, the same way
// RequireActor does after verifying a token.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

// RequireActor rejects requests without a valid bearer token and stores the
// resulting Actor on the context for handlers downstream.
func RequireActor(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(raw, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := VerifyHS256(strings.TrimPrefix(raw, "Bearer "), secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			role := claims.Role
			if role == "" {
				role = RoleCustomer
			}
			ctx := ContextWithActor(r.Context(), Actor{ID: claims.Sub, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
