package auth

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/nagarseva-api/internal/httputil"
	"github.com/redmonkez12/nagarseva-api/internal/logging"
	"github.com/redmonkez12/nagarseva-api/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	rateLimiter RateLimiter
}

func NewHandler(service *Service, rateLimiter RateLimiter) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResendVerificationRequest represents the resend verification email request
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// LoginResponse is the authenticated user plus the session credential
type LoginResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      user.Role `json:"role"`
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresIn int64     `json:"expiresIn"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// Register handles user registration
// @Summary      Register a new citizen
// @Description  Create an unverified account. A verification email is sent; if sending fails the account is rolled back.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string false "Replays the stored acknowledgement for a repeated request"
// @Param        request body RegisterRequest true "Registration details"
// @Success      201 {object} RegisterResult
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email already registered"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      502 {object} httputil.ErrorResponse "Verification email could not be sent"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.limited(w, r, ip, "register") {
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	h.record(r, ip, "register")

	result, err := h.service.Register(r.Context(), RegisterInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		logger.Warn("registration failed", "error", err.Error())
		httputil.RespondAppError(w, err)
		return
	}

	httputil.RespondJSON(w, result, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with email and password and receive a 7 day bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      403 {object} httputil.ErrorResponse "Email not verified"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.limited(w, r, ip, "login") {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	h.record(r, ip, "login")

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		logger.Warn("login failed", "error", err.Error())
		httputil.RespondAppError(w, err)
		return
	}

	logger.Info("user logged in", "user_id", result.User.ID)

	httputil.RespondJSON(w, LoginResponse{
		ID:        result.User.ID,
		Name:      result.User.Name,
		Email:     result.User.Email,
		Role:      result.User.Role,
		Token:     result.Token,
		TokenType: result.TokenType,
		ExpiresIn: result.ExpiresIn,
	}, http.StatusOK)
}

// VerifyEmail handles the link sent by email
// @Summary      Verify email address
// @Description  Consume a single-use verification token
// @Tags         auth
// @Produce      json
// @Param        token query string true "Verification token"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Missing, invalid or expired token"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Router       /auth/verify-email [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := r.URL.Query().Get("token")
	if token == "" {
		httputil.RespondErrorWithCode(w, "verification token is required", httputil.CodeVerificationRequired, http.StatusBadRequest)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		logger.Warn("email verification failed", "error", err.Error())
		httputil.RespondAppError(w, err)
		return
	}

	httputil.RespondJSON(w, MessageResponse{Message: "Email verified successfully. You can now log in."}, http.StatusOK)
}

// ResendVerification issues a new verification link
// @Summary      Resend verification email
// @Description  Invalidate outstanding verification links and send a new one
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResendVerificationRequest true "Account email"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      409 {object} httputil.ErrorResponse "Already verified"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests or cooldown active"
// @Failure      502 {object} httputil.ErrorResponse "Verification email could not be sent"
// @Router       /auth/resend-verification [post]
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	ip := getClientIP(r)
	if h.limited(w, r, ip, "resend_verification") {
		return
	}

	var req ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid resend verification request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	email := normalizeEmail(req.Email)
	if h.rateLimiter != nil && email != "" {
		active, err := h.rateLimiter.CheckEmailCooldown(r.Context(), email)
		if err != nil {
			logger.Error("failed to check email cooldown", "error", err.Error())
		} else if active {
			httputil.RespondErrorWithCode(w, "please wait before requesting another email", httputil.CodeCooldownActive, http.StatusTooManyRequests)
			return
		}
	}

	h.record(r, ip, "resend_verification")

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		logger.Warn("resend verification failed", "error", err.Error())
		httputil.RespondAppError(w, err)
		return
	}

	if h.rateLimiter != nil {
		if err := h.rateLimiter.SetEmailCooldown(r.Context(), email); err != nil {
			logger.Error("failed to set email cooldown", "error", err.Error())
		}
	}

	httputil.RespondJSON(w, MessageResponse{Message: "Verification email sent."}, http.StatusOK)
}

// limited writes a 429 when ip exhausted its budget for purpose. Limiter
// failures are logged and the request is let through.
func (h *Handler) limited(w http.ResponseWriter, r *http.Request, ip, purpose string) bool {
	if h.rateLimiter == nil {
		return false
	}
	logger := logging.GetLoggerFromContext(r.Context())

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
		return false
	}
	if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}
	return false
}

func (h *Handler) record(r *http.Request, ip, purpose string) {
	if h.rateLimiter == nil {
		return
	}
	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to record IP request", "error", err.Error())
	}
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
