package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redmonkez12/nagarseva-api/internal/config"
	"github.com/redmonkez12/nagarseva-api/internal/metrics"
)

// Purposes the auth handlers count separately
const (
	PurposeLogin              = "login"
	PurposeRegister           = "register"
	PurposeResendVerification = "resend_verification"
)

const defaultLimit = 10

// Limiter is a fixed-window counter per (purpose, client IP) backed by Redis,
// plus a per-address cooldown for verification resends.
type Limiter struct {
	client   redis.Cmdable
	window   time.Duration
	limits   map[string]int
	cooldown time.Duration
	metrics  *metrics.Metrics
}

func NewLimiter(client redis.Cmdable, cfg config.RateLimitConfig, m *metrics.Metrics) *Limiter {
	return &Limiter{
		client: client,
		window: cfg.Window,
		limits: map[string]int{
			PurposeLogin:              cfg.LoginLimit,
			PurposeRegister:           cfg.RegisterLimit,
			PurposeResendVerification: cfg.ResendLimit,
		},
		cooldown: cfg.EmailCooldown,
		metrics:  m,
	}
}

func ipKey(purpose, ip string) string {
	return fmt.Sprintf("ratelimit:%s:%s", purpose, ip)
}

func cooldownKey(email string) string {
	return fmt.Sprintf("email_cooldown:%s", strings.ToLower(strings.TrimSpace(email)))
}

func (l *Limiter) limitFor(purpose string) int {
	if n, ok := l.limits[purpose]; ok && n > 0 {
		return n
	}
	return defaultLimit
}

// CheckIPRateLimitWithPurpose reports whether ip has used up its budget for purpose
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(purpose, ip)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read rate limit counter: %w", err)
	}

	exceeded := count >= l.limitFor(purpose)
	if exceeded {
		l.metrics.RateLimited(purpose)
	}
	return exceeded, nil
}

// RecordIPRequestWithPurpose counts one attempt. The window starts at the first attempt.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	key := ipKey(purpose, ip)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("increment rate limit counter: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("set rate limit window: %w", err)
		}
	}
	return nil
}

func (l *Limiter) CheckEmailCooldown(ctx context.Context, email string) (bool, error) {
	n, err := l.client.Exists(ctx, cooldownKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("check email cooldown: %w", err)
	}
	if n > 0 {
		l.metrics.RateLimited("email_cooldown")
	}
	return n > 0, nil
}

func (l *Limiter) SetEmailCooldown(ctx context.Context, email string) error {
	if err := l.client.Set(ctx, cooldownKey(email), 1, l.cooldown).Err(); err != nil {
		return fmt.Errorf("set email cooldown: %w", err)
	}
	return nil
}
