package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/nagarseva-api/internal/user"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/redmonkez12/nagarseva-api/internal/auth UserRepository,Mailer

// TokenService defines the interface for session credential creation and validation.
// Implementations include PasetoService (PASETO v4.local) and JWTService (HS256).
type TokenService interface {
	CreateToken(userID uuid.UUID, role user.Role, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*Claims, error)
}

// UserRepository is the slice of the identity store the auth flows need.
type UserRepository interface {
	Create(ctx context.Context, nu user.NewUser) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// VerificationStore persists single-use email verification tokens.
// Tokens are addressed by their exact string and by owning user for bulk deletion.
type VerificationStore interface {
	Store(ctx context.Context, userID uuid.UUID, token string) error
	Lookup(ctx context.Context, token string) (*VerificationToken, error)
	Delete(ctx context.Context, token string) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

// IdempotencyStore remembers completed registrations by client supplied key.
type IdempotencyStore interface {
	Load(ctx context.Context, key string) (*RegisterResult, error)
	Save(ctx context.Context, key string, result *RegisterResult) error
}

// Mailer sends the verification link synchronously.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, toEmail, name, token string) error
}

// RateLimiter throttles the unauthenticated endpoints.
type RateLimiter interface {
	CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error)
	RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error
	CheckEmailCooldown(ctx context.Context, email string) (bool, error)
	SetEmailCooldown(ctx context.Context, email string) error
}
