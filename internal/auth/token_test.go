package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/nagarseva-api/internal/user"
)

func tokenServices(t *testing.T) map[string]TokenService {
	t.Helper()
	p, err := NewPasetoService(testKey)
	require.NoError(t, err)
	j, err := NewJWTService(testKey)
	require.NoError(t, err)
	return map[string]TokenService{"paseto": p, "jwt": j}
}

func TestTokenRoundTrip(t *testing.T) {
	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			id := uuid.New()
			token, err := svc.CreateToken(id, user.RoleAdmin, time.Hour)
			require.NoError(t, err)

			claims, err := svc.VerifyToken(token)
			require.NoError(t, err)
			assert.Equal(t, id, claims.UserID)
			assert.Equal(t, user.RoleAdmin, claims.Role)
			assert.WithinDuration(t, claims.IssuedAt.Add(time.Hour), claims.ExpiresAt, time.Second)
		})
	}
}

func TestTokenRejectsGarbage(t *testing.T) {
	for name, svc := range tokenServices(t) {
		t.Run(name, func(t *testing.T) {
			_, err := svc.VerifyToken("not-a-token")
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenExpired(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	p, err := NewPasetoService(testKey)
	require.NoError(t, err)
	p.now = func() time.Time { return issued }
	pasetoToken, err := p.CreateToken(uuid.New(), user.RoleCitizen, 7*24*time.Hour)
	require.NoError(t, err)

	j, err := NewJWTService(testKey)
	require.NoError(t, err)
	j.now = func() time.Time { return issued }
	jwtToken, err := j.CreateToken(uuid.New(), user.RoleCitizen, 7*24*time.Hour)
	require.NoError(t, err)

	later := func() time.Time { return issued.Add(7*24*time.Hour + time.Minute) }
	p.now = later
	j.now = later

	_, err = p.VerifyToken(pasetoToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
	_, err = j.VerifyToken(jwtToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenFromOtherKeyIsInvalid(t *testing.T) {
	other := []byte("ffffffffffffffffffffffffffffffff")

	p1, err := NewPasetoService(testKey)
	require.NoError(t, err)
	p2, err := NewPasetoService(other)
	require.NoError(t, err)
	token, err := p1.CreateToken(uuid.New(), user.RoleCitizen, time.Hour)
	require.NoError(t, err)
	_, err = p2.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	j1, err := NewJWTService(testKey)
	require.NoError(t, err)
	j2, err := NewJWTService(other)
	require.NoError(t, err)
	token, err = j1.CreateToken(uuid.New(), user.RoleCitizen, time.Hour)
	require.NoError(t, err)
	_, err = j2.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenServiceKeyLength(t *testing.T) {
	_, err := NewPasetoService([]byte("short"))
	assert.Error(t, err)
	_, err = NewJWTService([]byte("short"))
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pw123")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$m=65536,t=3,p=4$")

	assert.True(t, VerifyPassword(hash, "pw123"))
	assert.False(t, VerifyPassword(hash, "pw124"))
	assert.False(t, VerifyPassword("garbage", "pw123"))
	assert.False(t, VerifyPassword("", ""))

	again, err := HashPassword("pw123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt must differ between hashes")
}

func TestMemoryVerificationStore(t *testing.T) {
	ctx := t.Context()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryVerificationStore(time.Hour, func() time.Time { return now })

	alice, bob := uuid.New(), uuid.New()
	require.NoError(t, store.Store(ctx, alice, "a1"))
	require.NoError(t, store.Store(ctx, alice, "a2"))
	require.NoError(t, store.Store(ctx, bob, "b1"))
	assert.Equal(t, 2, store.Len(alice))

	vt, err := store.Lookup(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, alice, vt.UserID)
	assert.Equal(t, now, vt.CreatedAt)

	require.NoError(t, store.Delete(ctx, "a1"))
	_, err = store.Lookup(ctx, "a1")
	assert.ErrorIs(t, err, ErrVerificationTokenNotFound)
	assert.Equal(t, 1, store.Len(alice))

	require.NoError(t, store.DeleteAllForUser(ctx, alice))
	_, err = store.Lookup(ctx, "a2")
	assert.ErrorIs(t, err, ErrVerificationTokenNotFound)

	now = now.Add(time.Hour + time.Nanosecond)
	_, err = store.Lookup(ctx, "b1")
	assert.ErrorIs(t, err, ErrVerificationTokenNotFound)
	assert.Equal(t, 0, store.Len(bob))
}
