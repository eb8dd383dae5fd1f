//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/redmonkez12/nagarseva-api/internal/config"
	"github.com/redmonkez12/nagarseva-api/internal/metrics"
)

type LimiterSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
	limiter   *Limiter
}

func TestLimiterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(ctx)
	s.Require().NoError(err)
	opts, err := redis.ParseURL(uri)
	s.Require().NoError(err)

	s.client = redis.NewClient(opts)
	s.limiter = NewLimiter(s.client, config.RateLimitConfig{
		Window:        time.Minute,
		LoginLimit:    2,
		RegisterLimit: 1,
		ResendLimit:   1,
		EmailCooldown: time.Minute,
	}, metrics.New(prometheus.NewRegistry()))
}

func (s *LimiterSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *LimiterSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *LimiterSuite) TestWindowCountsPerPurposeAndIP() {
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		exceeded, err := s.limiter.CheckIPRateLimitWithPurpose(ctx, "1.1.1.1", PurposeLogin)
		s.Require().NoError(err)
		s.False(exceeded)
		s.Require().NoError(s.limiter.RecordIPRequestWithPurpose(ctx, "1.1.1.1", PurposeLogin))
	}

	exceeded, err := s.limiter.CheckIPRateLimitWithPurpose(ctx, "1.1.1.1", PurposeLogin)
	s.Require().NoError(err)
	s.True(exceeded)

	exceeded, err = s.limiter.CheckIPRateLimitWithPurpose(ctx, "2.2.2.2", PurposeLogin)
	s.Require().NoError(err)
	s.False(exceeded)

	exceeded, err = s.limiter.CheckIPRateLimitWithPurpose(ctx, "1.1.1.1", PurposeRegister)
	s.Require().NoError(err)
	s.False(exceeded)

	ttl, err := s.client.TTL(ctx, ipKey(PurposeLogin, "1.1.1.1")).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}

func (s *LimiterSuite) TestEmailCooldown() {
	ctx := context.Background()

	active, err := s.limiter.CheckEmailCooldown(ctx, "asha@example.com")
	s.Require().NoError(err)
	s.False(active)

	s.Require().NoError(s.limiter.SetEmailCooldown(ctx, "Asha@example.com"))

	active, err = s.limiter.CheckEmailCooldown(ctx, "asha@example.com")
	s.Require().NoError(err)
	s.True(active)
}
