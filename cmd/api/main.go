package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "github.com/redmonkez12/nagarseva-api/docs" // Swagger docs (generated)
	"github.com/redmonkez12/nagarseva-api/internal/auth"
	"github.com/redmonkez12/nagarseva-api/internal/blob"
	"github.com/redmonkez12/nagarseva-api/internal/complaint"
	"github.com/redmonkez12/nagarseva-api/internal/config"
	"github.com/redmonkez12/nagarseva-api/internal/database"
	"github.com/redmonkez12/nagarseva-api/internal/email"
	httpServer "github.com/redmonkez12/nagarseva-api/internal/http"
	"github.com/redmonkez12/nagarseva-api/internal/logging"
	"github.com/redmonkez12/nagarseva-api/internal/metrics"
	"github.com/redmonkez12/nagarseva-api/internal/notify"
	"github.com/redmonkez12/nagarseva-api/internal/ratelimit"
	"github.com/redmonkez12/nagarseva-api/internal/user"
)

// @title           NagarSeva API
// @version         1.0
// @description     Municipal citizen complaint portal: registration with email verification, complaint filing and admin resolution.

// @contact.name   Municipal Helpdesk
// @contact.email  helpdesk@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:5001
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_format", cfg.Auth.TokenFormat,
		"status_policy", cfg.Complaints.StatusPolicy,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := database.Open(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.MigrateOnStartup {
		if err := database.Migrate(ctx, sqlDB); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}
	db := database.NewBunDB(sqlDB)

	redisClient, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
	}

	tokenService, err := newTokenService(cfg.Auth)
	if err != nil {
		return err
	}

	blobStore, err := blob.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}

	emailService := email.NewService(cfg.Email)
	if !emailService.Configured() {
		logger.Warn("SMTP_HOST not set, outgoing email will only be logged")
	}
	var dispatchOpts []notify.Option
	if cfg.Notifications.DeadLetterLogSize > 0 {
		deadLetters := notify.NewRedisDeadLetterLog(redisClient, cfg.Notifications.DeadLetterLogSize, logger)
		dispatchOpts = append(dispatchOpts, notify.WithDeadLetterHook(deadLetters.Record))
	}
	dispatcher := notify.NewDispatcher(emailService, cfg.Notifications, cfg.Email.SendTimeout, logger, m, dispatchOpts...)

	userRepo := user.NewRepository(db)

	authService := auth.NewService(
		userRepo,
		auth.NewRedisVerificationStore(redisClient, cfg.Auth.VerificationTokenTTL),
		auth.NewRedisIdempotencyStore(redisClient),
		tokenService,
		emailService,
		logger,
		auth.ServiceConfig{
			SessionDuration: cfg.Auth.SessionDuration,
			SendTimeout:     cfg.Email.SendTimeout,
		},
	)

	complaintService := complaint.NewService(
		complaint.NewRepository(db),
		userRepo,
		blobStore,
		notify.NewComplaintNotifier(emailService, dispatcher),
		logger,
		complaint.StatusPolicy(cfg.Complaints.StatusPolicy),
	)

	router := httpServer.NewRouter(cfg, httpServer.Deps{
		Auth:           auth.NewHandler(authService, ratelimit.NewLimiter(redisClient, cfg.RateLimit, m)),
		AuthMiddleware: auth.NewMiddleware(tokenService),
		Complaints:     complaint.NewHandler(complaintService, cfg.Storage.MaxImageBytes),
		Metrics:        m,
		HealthChecks: []httpServer.HealthCheck{
			{Name: "postgres", Check: sqlDB.PingContext},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
	}, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		cfg.Server.ShutdownTimeout,
		logger,
	)

	// The server stops accepting requests before the dispatcher drains, so no
	// notification is enqueued after the queue closes.
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	g, gctx := errgroup.WithContext(ctx)
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDispatch()

	g.Go(func() error {
		defer stopDispatch()
		return server.Run(serverCtx)
	})
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		<-gctx.Done()
		stopServer()
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newTokenService(cfg config.AuthConfig) (auth.TokenService, error) {
	switch cfg.TokenFormat {
	case config.TokenFormatJWT:
		svc, err := auth.NewJWTService(cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		return svc, nil
	default:
		svc, err := auth.NewPasetoService(cfg.PasetoKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PASETO service: %w", err)
		}
		return svc, nil
	}
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
