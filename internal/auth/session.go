package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/redmonkez12/nagarseva-api/internal/authz"
	"github.com/redmonkez12/nagarseva-api/internal/user"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const SessionContextKey ContextKey = "session"

// Session is the authenticated identity of a request, rebuilt from the
// bearer credential on every call.
type Session struct {
	UserID uuid.UUID
	Role   user.Role
}

// Actor converts the session into the authorization engine's view of the caller.
func (s Session) Actor() authz.Actor {
	return authz.Actor{ID: s.UserID, Role: s.Role}
}

func (s Session) IsAdmin() bool {
	return s.Role.IsAdmin()
}

// WithSession stores the session in ctx
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, SessionContextKey, s)
}

// SessionFromContext extracts the session placed by RequireAuth
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(SessionContextKey).(Session)
	return s, ok
}
