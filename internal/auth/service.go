package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/nagarseva-api/internal/apperror"
	"github.com/redmonkez12/nagarseva-api/internal/authz"
	"github.com/redmonkez12/nagarseva-api/internal/logging"
	"github.com/redmonkez12/nagarseva-api/internal/user"
)

const maxEmailLength = 254

// RegisterResult acknowledges a registration awaiting email verification
type RegisterResult struct {
	UserID  uuid.UUID `json:"userId"`
	Email   string    `json:"email"`
	Message string    `json:"message"`
}

// LoginResult carries the authenticated user and the issued session credential
type LoginResult struct {
	User      *user.User
	Token     string
	TokenType string
	ExpiresIn int64
}

// Service handles authentication business logic
type Service struct {
	users           UserRepository
	verifications   VerificationStore
	idempotency     IdempotencyStore
	tokens          TokenService
	mailer          Mailer
	logger          *logging.Logger
	sessionDuration time.Duration
	sendTimeout     time.Duration
	hash            func(string) (string, error)
}

// ServiceConfig holds the durations the auth flows depend on
type ServiceConfig struct {
	SessionDuration time.Duration
	SendTimeout     time.Duration
}

func NewService(
	users UserRepository,
	verifications VerificationStore,
	idempotency IdempotencyStore,
	tokens TokenService,
	mailer Mailer,
	logger *logging.Logger,
	cfg ServiceConfig,
) *Service {
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = 7 * 24 * time.Hour
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Service{
		users:           users,
		verifications:   verifications,
		idempotency:     idempotency,
		tokens:          tokens,
		mailer:          mailer,
		logger:          logger,
		sessionDuration: cfg.SessionDuration,
		sendTimeout:     cfg.SendTimeout,
		hash:            HashPassword,
	}
}

// RegisterInput is the registration form
type RegisterInput struct {
	Name           string
	Email          string
	Password       string
	IdempotencyKey string
}

// Register creates an unverified account and mails its verification link.
// A failed send rolls the account back.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)

	if name == "" {
		return nil, apperror.Validation("name", "name is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, apperror.Validation("password", "password is required")
	}

	if in.IdempotencyKey != "" && s.idempotency != nil {
		prev, err := s.idempotency.Load(ctx, in.IdempotencyKey)
		if err != nil {
			s.logger.Warn("failed to load idempotency record", "error", err)
		} else if prev != nil {
			return prev, nil
		}
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("email already registered")
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, apperror.Internal("failed to look up user", err)
	}

	passwordHash, err := s.hash(in.Password)
	if err != nil {
		return nil, apperror.Internal("failed to hash password", err)
	}

	token, err := generateRandomToken()
	if err != nil {
		return nil, apperror.Internal("failed to generate verification token", err)
	}

	var created *user.User
	saga := newSaga(s.logger)

	err = saga.run(ctx,
		step{
			name: "create_user",
			do: func(ctx context.Context) error {
				u, err := s.users.Create(ctx, user.NewUser{
					Name:         name,
					Email:        email,
					PasswordHash: passwordHash,
					Role:         user.RoleCitizen,
				})
				if err != nil {
					if errors.Is(err, user.ErrDuplicateEmail) {
						return apperror.Conflict("email already registered")
					}
					return apperror.Internal("failed to create user", err)
				}
				created = u
				return nil
			},
			compensate: func(ctx context.Context) error {
				return s.users.Delete(ctx, created.ID)
			},
		},
		step{
			name: "store_token",
			do: func(ctx context.Context) error {
				if err := s.verifications.Store(ctx, created.ID, token); err != nil {
					return apperror.Internal("failed to store verification token", err)
				}
				return nil
			},
			compensate: func(ctx context.Context) error {
				return s.verifications.Delete(ctx, token)
			},
		},
		step{
			name: "send_verification",
			do: func(ctx context.Context) error {
				return s.sendVerification(ctx, created, token)
			},
		},
	)
	if err != nil {
		return nil, err
	}

	result := &RegisterResult{
		UserID:  created.ID,
		Email:   created.Email,
		Message: "Registration successful. Please check your email to verify your account.",
	}

	if in.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.Save(ctx, in.IdempotencyKey, result); err != nil {
			s.logger.Warn("failed to save idempotency record", "error", err)
		}
	}

	s.logger.Info("user registered", "user_id", created.ID)
	return result, nil
}

// Login authenticates by email and password and issues a session credential.
// Unknown email and wrong password yield the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperror.Validation("email", "email is required")
	}
	if password == "" {
		return nil, apperror.Validation("password", "password is required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, invalidCredentials()
		}
		return nil, apperror.Internal("failed to look up user", err)
	}

	if !VerifyPassword(u.PasswordHash, password) {
		return nil, invalidCredentials()
	}

	if !authz.IsVerifiedForLogin(u) {
		return nil, apperror.New(apperror.KindEmailNotVerified, "email not verified, please check your inbox")
	}

	token, err := s.tokens.CreateToken(u.ID, u.Role, s.sessionDuration)
	if err != nil {
		return nil, apperror.Internal("failed to issue session token", err)
	}

	return &LoginResult{
		User:      u,
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.sessionDuration.Seconds()),
	}, nil
}

// VerifyEmail consumes a verification token and marks its owner verified
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return apperror.Validation("token", "verification token is required")
	}

	vt, err := s.verifications.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, ErrVerificationTokenNotFound) {
			return invalidOrExpiredToken()
		}
		return apperror.Internal("failed to look up verification token", err)
	}

	u, err := s.users.GetByID(ctx, vt.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return apperror.New(apperror.KindUserNotFound, "user not found")
		}
		return apperror.Internal("failed to look up user", err)
	}

	if err := s.users.MarkVerified(ctx, u.ID); err != nil {
		return apperror.Internal("failed to mark user verified", err)
	}

	if err := s.verifications.Delete(ctx, token); err != nil {
		return apperror.Internal("failed to consume verification token", err)
	}

	s.logger.Info("email verified", "user_id", u.ID)
	return nil
}

// ResendVerification replaces every outstanding token of an unverified user
// with a fresh one. A failed send leaves the account in place.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return apperror.NotFound("user not found")
		}
		return apperror.Internal("failed to look up user", err)
	}

	if authz.IsVerifiedForLogin(u) {
		return apperror.New(apperror.KindAlreadyVerified, "email already verified")
	}

	if err := s.verifications.DeleteAllForUser(ctx, u.ID); err != nil {
		return apperror.Internal("failed to invalidate previous tokens", err)
	}

	token, err := generateRandomToken()
	if err != nil {
		return apperror.Internal("failed to generate verification token", err)
	}
	if err := s.verifications.Store(ctx, u.ID, token); err != nil {
		return apperror.Internal("failed to store verification token", err)
	}

	if err := s.sendVerification(ctx, u, token); err != nil {
		return err
	}

	s.logger.Info("verification email resent", "user_id", u.ID)
	return nil
}

func (s *Service) sendVerification(ctx context.Context, u *user.User, token string) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := s.mailer.SendVerificationEmail(sendCtx, u.Email, u.Name, token); err != nil {
		return apperror.Dependency("failed to send verification email", err)
	}
	return nil
}

// normalizeEmail trims surrounding space only. The address is stored as
// typed; lookups match it case-insensitively.
func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.Validation("email", "email is required")
	}
	if len(email) > maxEmailLength {
		return apperror.Validation("email", "invalid email format")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperror.Validation("email", "invalid email format")
	}
	return nil
}

func invalidCredentials() error {
	return apperror.New(apperror.KindInvalidCredentials, "invalid email or password")
}

func invalidOrExpiredToken() error {
	return apperror.New(apperror.KindInvalidOrExpiredToken, "invalid or expired verification token")
}

// step is one action of a saga with an optional compensating action
type step struct {
	name       string
	do         func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

type saga struct {
	logger *logging.Logger
}

func newSaga(logger *logging.Logger) *saga {
	return &saga{logger: logger}
}

// run executes steps in order. When one fails, the compensations of the
// steps that already completed run in reverse order, detached from ctx
// cancellation, and the original error is returned.
func (sg *saga) run(ctx context.Context, steps ...step) error {
	done := make([]step, 0, len(steps))
	for _, st := range steps {
		if err := st.do(ctx); err != nil {
			sg.logger.Warn("saga step failed, compensating", "step", st.name, "error", err)
			sg.compensate(context.WithoutCancel(ctx), done)
			return err
		}
		done = append(done, st)
	}
	return nil
}

func (sg *saga) compensate(ctx context.Context, done []step) {
	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		if st.compensate == nil {
			continue
		}
		if err := st.compensate(ctx); err != nil {
			sg.logger.Error("saga compensation failed", "step", st.name, "error", err)
		}
	}
}
