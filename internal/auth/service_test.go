package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/redmonkez12/nagarseva-api/internal/apperror"
	"github.com/redmonkez12/nagarseva-api/internal/auth/mocks"
	"github.com/redmonkez12/nagarseva-api/internal/logging"
	"github.com/redmonkez12/nagarseva-api/internal/user"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fixture struct {
	users  *mocks.MockUserRepository
	mailer *mocks.MockMailer
	store  *MemoryVerificationStore
	tokens *PasetoService
	svc    *Service
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		users:  mocks.NewMockUserRepository(ctrl),
		mailer: mocks.NewMockMailer(ctrl),
		now:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store = NewMemoryVerificationStore(VerificationTokenTTL, func() time.Time { return f.now })

	tokens, err := NewPasetoService(testKey)
	require.NoError(t, err)
	f.tokens = tokens

	f.svc = NewService(f.users, f.store, nil, f.tokens, f.mailer, logging.NewLogger(false), ServiceConfig{
		SessionDuration: 7 * 24 * time.Hour,
		SendTimeout:     time.Second,
	})
	f.svc.hash = func(p string) (string, error) { return "hashed:" + p, nil }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newUser(role user.Role, verified bool, password string) *user.User {
	hash, _ := HashPassword(password)
	return &user.User{
		ID:           uuid.New(),
		Name:         "Asha",
		Email:        "asha@x.com",
		PasswordHash: hash,
		Role:         role,
		IsVerified:   verified,
	}
}

func TestRegisterPersistsOneToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := &user.User{ID: uuid.New(), Name: "Asha", Email: "Asha@X.com", Role: user.RoleCitizen}

	var sentToken string
	f.users.EXPECT().GetByEmail(gomock.Any(), "Asha@X.com").Return(nil, user.ErrNotFound)
	f.users.EXPECT().Create(gomock.Any(), user.NewUser{
		Name:         "Asha",
		Email:        "Asha@X.com",
		PasswordHash: "hashed:pw123",
		Role:         user.RoleCitizen,
	}).Return(created, nil)
	f.mailer.EXPECT().SendVerificationEmail(gomock.Any(), "Asha@X.com", "Asha", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, token string) error {
			sentToken = token
			return nil
		})

	result, err := f.svc.Register(ctx, RegisterInput{Name: "Asha", Email: "Asha@X.com ", Password: "pw123"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, result.UserID)
	assert.Equal(t, "Asha@X.com", result.Email)
	assert.NotEmpty(t, result.Message)

	assert.Equal(t, 1, f.store.Len(created.ID))
	vt, err := f.store.Lookup(ctx, sentToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, vt.UserID)
}

func TestRegisterRollsBackWhenSendFails(t *testing.T) {
	f := newFixture(t)
	created := &user.User{ID: uuid.New(), Name: "Asha", Email: "asha@x.com", Role: user.RoleCitizen}

	f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(nil, user.ErrNotFound)
	f.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(created, nil)
	f.mailer.EXPECT().SendVerificationEmail(gomock.Any(), "asha@x.com", "Asha", gomock.Any()).
		Return(errors.New("smtp: connection refused"))
	f.users.EXPECT().Delete(gomock.Any(), created.ID).Return(nil)

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Asha", Email: "asha@x.com", Password: "pw123"})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindDependencyFailure))
	assert.Equal(t, 0, f.store.Len(created.ID))
}

func TestRegisterRollsBackWhenTokenStoreFails(t *testing.T) {
	f := newFixture(t)
	created := &user.User{ID: uuid.New(), Name: "Asha", Email: "asha@x.com", Role: user.RoleCitizen}
	f.svc.verifications = failingStore{}

	f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(nil, user.ErrNotFound)
	f.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(created, nil)
	f.users.EXPECT().Delete(gomock.Any(), created.ID).Return(nil)

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Asha", Email: "asha@x.com", Password: "pw123"})
	assert.True(t, apperror.Is(err, apperror.KindInternal))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)

	f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(&user.User{ID: uuid.New()}, nil)

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Asha", Email: "asha@x.com", Password: "pw123"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}

func TestRegisterDuplicateEmailRace(t *testing.T) {
	f := newFixture(t)

	f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(nil, user.ErrNotFound)
	f.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, user.ErrDuplicateEmail)

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Asha", Email: "asha@x.com", Password: "pw123"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"missing name", RegisterInput{Email: "a@x.com", Password: "pw"}, "name"},
		{"blank name", RegisterInput{Name: "  ", Email: "a@x.com", Password: "pw"}, "name"},
		{"missing email", RegisterInput{Name: "A", Password: "pw"}, "email"},
		{"malformed email", RegisterInput{Name: "A", Email: "not-an-email", Password: "pw"}, "email"},
		{"missing password", RegisterInput{Name: "A", Email: "a@x.com"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Register(context.Background(), tt.in)

			var appErr *apperror.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperror.KindValidation, appErr.Kind)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

type memIdempotency struct {
	mu   sync.Mutex
	data map[string]*RegisterResult
}

func (m *memIdempotency) Load(_ context.Context, key string) (*RegisterResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memIdempotency) Save(_ context.Context, key string, r *RegisterResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = r
	return nil
}

func TestRegisterIdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	f.svc.idempotency = &memIdempotency{data: map[string]*RegisterResult{}}
	created := &user.User{ID: uuid.New(), Name: "Asha", Email: "asha@x.com", Role: user.RoleCitizen}

	f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(nil, user.ErrNotFound).Times(1)
	f.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(created, nil).Times(1)
	f.mailer.EXPECT().SendVerificationEmail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	in := RegisterInput{Name: "Asha", Email: "asha@x.com", Password: "pw123", IdempotencyKey: "req-1"}
	first, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)

	second, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLogin(t *testing.T) {
	const password = "pw123"

	tests := []struct {
		name     string
		user     *user.User
		lookup   error
		password string
		wantKind apperror.Kind
	}{
		{"unknown email", nil, user.ErrNotFound, password, apperror.KindInvalidCredentials},
		{"wrong password", newUser(user.RoleCitizen, true, password), nil, "nope", apperror.KindInvalidCredentials},
		{"unverified citizen", newUser(user.RoleCitizen, false, password), nil, password, apperror.KindEmailNotVerified},
		{"unverified citizen wrong password", newUser(user.RoleCitizen, false, password), nil, "nope", apperror.KindInvalidCredentials},
		{"verified citizen", newUser(user.RoleCitizen, true, password), nil, password, ""},
		{"unverified admin", newUser(user.RoleAdmin, false, password), nil, password, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(tt.user, tt.lookup)

			result, err := f.svc.Login(context.Background(), "asha@x.com", tt.password)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperror.KindOf(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "Bearer", result.TokenType)
			assert.Equal(t, int64(7*24*3600), result.ExpiresIn)

			claims, err := f.tokens.VerifyToken(result.Token)
			require.NoError(t, err)
			assert.Equal(t, tt.user.ID, claims.UserID)
			assert.Equal(t, tt.user.Role, claims.Role)
		})
	}
}

func TestLoginAcceptsLegacyBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw123"), bcrypt.MinCost)
	require.NoError(t, err)

	u := &user.User{
		ID:           uuid.New(),
		Email:        "asha@x.com",
		PasswordHash: string(hash),
		Role:         user.RoleCitizen,
		IsVerified:   true,
	}

	f := newFixture(t)
	f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(u, nil).Times(2)

	_, err = f.svc.Login(context.Background(), "asha@x.com", "wrong")
	assert.Equal(t, apperror.KindInvalidCredentials, apperror.KindOf(err))

	result, err := f.svc.Login(context.Background(), "asha@x.com", "pw123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, result.User.ID)
}

func TestVerifyEmailIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := newUser(user.RoleCitizen, false, "pw123")
	require.NoError(t, f.store.Store(ctx, u.ID, "tok-1"))

	f.users.EXPECT().GetByID(gomock.Any(), u.ID).Return(u, nil)
	f.users.EXPECT().MarkVerified(gomock.Any(), u.ID).Return(nil)

	require.NoError(t, f.svc.VerifyEmail(ctx, "tok-1"))

	err := f.svc.VerifyEmail(ctx, "tok-1")
	assert.Equal(t, apperror.KindInvalidOrExpiredToken, apperror.KindOf(err))
}

func TestVerifyEmailRejectsExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := newUser(user.RoleCitizen, false, "pw123")
	require.NoError(t, f.store.Store(ctx, u.ID, "tok-1"))

	f.advance(VerificationTokenTTL + time.Second)

	err := f.svc.VerifyEmail(ctx, "tok-1")
	assert.Equal(t, apperror.KindInvalidOrExpiredToken, apperror.KindOf(err))
}

func TestVerifyEmailAcceptsTokenAtExactExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := newUser(user.RoleCitizen, false, "pw123")
	require.NoError(t, f.store.Store(ctx, u.ID, "tok-1"))

	f.advance(VerificationTokenTTL)
	f.users.EXPECT().GetByID(gomock.Any(), u.ID).Return(u, nil)
	f.users.EXPECT().MarkVerified(gomock.Any(), u.ID).Return(nil)

	assert.NoError(t, f.svc.VerifyEmail(ctx, "tok-1"))
}

func TestVerifyEmailUserGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, f.store.Store(ctx, id, "tok-1"))

	f.users.EXPECT().GetByID(gomock.Any(), id).Return(nil, user.ErrNotFound)

	err := f.svc.VerifyEmail(ctx, "tok-1")
	assert.Equal(t, apperror.KindUserNotFound, apperror.KindOf(err))
}

func TestVerifyEmailRequiresToken(t *testing.T) {
	f := newFixture(t)
	err := f.svc.VerifyEmail(context.Background(), "")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestResendInvalidatesPreviousTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := newUser(user.RoleCitizen, false, "pw123")
	require.NoError(t, f.store.Store(ctx, u.ID, "original"))

	var resent string
	f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(u, nil)
	f.mailer.EXPECT().SendVerificationEmail(gomock.Any(), "asha@x.com", "Asha", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, token string) error {
			resent = token
			return nil
		})

	require.NoError(t, f.svc.ResendVerification(ctx, "asha@x.com"))
	assert.Equal(t, 1, f.store.Len(u.ID))

	err := f.svc.VerifyEmail(ctx, "original")
	assert.Equal(t, apperror.KindInvalidOrExpiredToken, apperror.KindOf(err))

	f.users.EXPECT().GetByID(gomock.Any(), u.ID).Return(u, nil)
	f.users.EXPECT().MarkVerified(gomock.Any(), u.ID).Return(nil)
	assert.NoError(t, f.svc.VerifyEmail(ctx, resent))
}

func TestResendErrors(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		f.users.EXPECT().GetByEmail(gomock.Any(), "ghost@x.com").Return(nil, user.ErrNotFound)

		err := f.svc.ResendVerification(context.Background(), "ghost@x.com")
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})

	t.Run("already verified", func(t *testing.T) {
		f := newFixture(t)
		u := newUser(user.RoleCitizen, true, "pw123")
		require.NoError(t, f.store.Store(context.Background(), u.ID, "still-here"))
		f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(u, nil)

		err := f.svc.ResendVerification(context.Background(), "asha@x.com")
		assert.Equal(t, apperror.KindAlreadyVerified, apperror.KindOf(err))
		assert.Equal(t, 1, f.store.Len(u.ID))
	})

	t.Run("send failure keeps the account", func(t *testing.T) {
		f := newFixture(t)
		u := newUser(user.RoleCitizen, false, "pw123")
		f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(u, nil)
		f.mailer.EXPECT().SendVerificationEmail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(errors.New("smtp down"))

		err := f.svc.ResendVerification(context.Background(), "asha@x.com")
		assert.Equal(t, apperror.KindDependencyFailure, apperror.KindOf(err))
	})
}

type failingStore struct{}

func (failingStore) Store(context.Context, uuid.UUID, string) error {
	return errors.New("redis unavailable")
}

func (failingStore) Lookup(context.Context, string) (*VerificationToken, error) {
	return nil, ErrVerificationTokenNotFound
}

func (failingStore) Delete(context.Context, string) error { return nil }

func (failingStore) DeleteAllForUser(context.Context, uuid.UUID) error { return nil }
