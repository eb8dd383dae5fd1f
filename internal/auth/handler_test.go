package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/redmonkez12/nagarseva-api/internal/httputil"
	"github.com/redmonkez12/nagarseva-api/internal/user"
)

type fakeLimiter struct {
	exceeded map[string]bool
	cooldown map[string]bool
	recorded []string
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{exceeded: map[string]bool{}, cooldown: map[string]bool{}}
}

func (f *fakeLimiter) CheckIPRateLimitWithPurpose(_ context.Context, ip, purpose string) (bool, error) {
	return f.exceeded[purpose], nil
}

func (f *fakeLimiter) RecordIPRequestWithPurpose(_ context.Context, ip, purpose string) error {
	f.recorded = append(f.recorded, ip+"/"+purpose)
	return nil
}

func (f *fakeLimiter) CheckEmailCooldown(_ context.Context, email string) (bool, error) {
	return f.cooldown[email], nil
}

func (f *fakeLimiter) SetEmailCooldown(_ context.Context, email string) error {
	f.cooldown[email] = true
	return nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandlerLoginResponseShape(t *testing.T) {
	f := newFixture(t)
	u := newUser(user.RoleAdmin, false, "pw123")
	f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(u, nil)

	limiter := newFakeLimiter()
	h := NewHandler(f.svc, limiter)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"asha@x.com","password":"pw123"}`))
	req.RemoteAddr = "10.0.0.7:5555"
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, u.ID.String(), body["id"])
	assert.Equal(t, "Asha", body["name"])
	assert.Equal(t, "admin", body["role"])
	assert.Equal(t, "Bearer", body["tokenType"])
	assert.NotEmpty(t, body["token"])
	assert.EqualValues(t, 7*24*3600, body["expiresIn"])
	assert.Equal(t, []string{"10.0.0.7/login"}, limiter.recorded)
}

func TestHandlerLoginUnverified(t *testing.T) {
	f := newFixture(t)
	f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(newUser(user.RoleCitizen, false, "pw123"), nil)
	h := NewHandler(f.svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"asha@x.com","password":"pw123"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, httputil.CodeEmailNotVerified, decodeError(t, rec).Code)
}

func TestHandlerRateLimited(t *testing.T) {
	f := newFixture(t)
	limiter := newFakeLimiter()
	limiter.exceeded["register"] = true
	h := NewHandler(f.svc, limiter)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, httputil.CodeTooManyRequests, decodeError(t, rec).Code)
}

func TestHandlerRegister(t *testing.T) {
	f := newFixture(t)
	created := &user.User{ID: uuid.New(), Name: "Asha", Email: "asha@x.com", Role: user.RoleCitizen}
	f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(nil, user.ErrNotFound)
	f.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(created, nil)
	f.mailer.EXPECT().SendVerificationEmail(gomock.Any(), "asha@x.com", "Asha", gomock.Any()).Return(nil)
	h := NewHandler(f.svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"name":"Asha","email":"asha@x.com","password":"pw123"}`))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var body RegisterResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, created.ID, body.UserID)
}

func TestHandlerRegisterBadBody(t *testing.T) {
	h := NewHandler(newFixture(t).svc, nil)

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeInvalidRequestBody, decodeError(t, rec).Code)
}

func TestHandlerVerifyEmail(t *testing.T) {
	f := newFixture(t)
	u := newUser(user.RoleCitizen, false, "pw123")
	require.NoError(t, f.store.Store(context.Background(), u.ID, "tok"))
	f.users.EXPECT().GetByID(gomock.Any(), u.ID).Return(u, nil)
	f.users.EXPECT().MarkVerified(gomock.Any(), u.ID).Return(nil)
	h := NewHandler(f.svc, nil)

	rec := httptest.NewRecorder()
	h.VerifyEmail(rec, httptest.NewRequest(http.MethodGet, "/auth/verify-email?token=tok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.VerifyEmail(rec, httptest.NewRequest(http.MethodGet, "/auth/verify-email?token=tok", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeInvalidOrExpiredToken, decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	h.VerifyEmail(rec, httptest.NewRequest(http.MethodGet, "/auth/verify-email", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeVerificationRequired, decodeError(t, rec).Code)
}

func TestHandlerResendCooldown(t *testing.T) {
	f := newFixture(t)
	u := newUser(user.RoleCitizen, false, "pw123")
	f.users.EXPECT().GetByEmail(gomock.Any(), "asha@x.com").Return(u, nil)
	f.mailer.EXPECT().SendVerificationEmail(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	limiter := newFakeLimiter()
	h := NewHandler(f.svc, limiter)

	body := `{"email":"asha@x.com"}`
	rec := httptest.NewRecorder()
	h.ResendVerification(rec, httptest.NewRequest(http.MethodPost, "/auth/resend-verification", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ResendVerification(rec, httptest.NewRequest(http.MethodPost, "/auth/resend-verification", strings.NewReader(body)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, httputil.CodeCooldownActive, decodeError(t, rec).Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getClientIP(req))
}

func TestRequireAuth(t *testing.T) {
	tokens, err := NewPasetoService(testKey)
	require.NoError(t, err)
	mw := NewMiddleware(tokens)

	id := uuid.New()
	valid, err := tokens.CreateToken(id, user.RoleCitizen, time.Hour)
	require.NoError(t, err)

	var got Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"missing header", "", http.StatusUnauthorized, httputil.CodeMissingAuth},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, httputil.CodeInvalidAuthHeader},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, httputil.CodeInvalidAuthHeader},
		{"garbage token", "Bearer abc", http.StatusUnauthorized, httputil.CodeInvalidToken},
		{"valid", "Bearer " + valid, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/complaints/my", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			mw.RequireAuth(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
			}
		})
	}

	assert.Equal(t, Session{UserID: id, Role: user.RoleCitizen}, got)
}

func TestRequireAdmin(t *testing.T) {
	mw := NewMiddleware(nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/complaints", nil)
	rec := httptest.NewRecorder()
	mw.RequireAdmin(ok).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	citizen := req.WithContext(WithSession(req.Context(), Session{UserID: uuid.New(), Role: user.RoleCitizen}))
	rec = httptest.NewRecorder()
	mw.RequireAdmin(ok).ServeHTTP(rec, citizen)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, httputil.CodeAdminRequired, decodeError(t, rec).Code)

	admin := req.WithContext(WithSession(req.Context(), Session{UserID: uuid.New(), Role: user.RoleAdmin}))
	rec = httptest.NewRecorder()
	mw.RequireAdmin(ok).ServeHTTP(rec, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
