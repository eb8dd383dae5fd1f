package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Token formats for the session credential
const (
	TokenFormatPaseto = "paseto"
	TokenFormatJWT    = "jwt"
)

// Complaint status policies
const (
	// StatusPolicyOverwrite re-applies status changes on already closed complaints
	StatusPolicyOverwrite = "overwrite"
	// StatusPolicyTerminal treats Resolved and Rejected as final
	StatusPolicyTerminal = "terminal"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Email         EmailConfig
	Storage       StorageConfig
	Complaints    ComplaintConfig
	Notifications NotificationConfig
	Metrics       MetricsConfig
	RateLimit     RateLimitConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string
	// UploadRate and UploadBurst throttle multipart complaint submissions per client IP
	UploadRate  float64
	UploadBurst int
}

type DatabaseConfig struct {
	Host             string
	Port             string
	User             string
	Password         string
	DBName           string
	SSLMode          string
	ChannelBinding   string // "require" for Neon DB, empty for local
	MigrateOnStartup bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	TokenFormat string
	// PASETO symmetric key (must be 32 bytes for v4.local)
	PasetoKey       []byte
	JWTSecret       []byte
	SessionDuration time.Duration
	// VerificationTokenTTL bounds how long an email verification link stays valid
	VerificationTokenTTL time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	FromName     string
	FrontendURL  string // Frontend URL for verification links
	SendTimeout  time.Duration
}

type StorageConfig struct {
	S3Region      string
	S3Endpoint    string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	PublicBaseURL string
	UploadTimeout time.Duration
	MaxImageBytes int64
	UsePathStyle  bool
}

type ComplaintConfig struct {
	StatusPolicy string
}

type NotificationConfig struct {
	Workers   int
	QueueSize int
	// DeadLetterLogSize caps the Redis list of recent dead letters. 0 disables it.
	DeadLetterLogSize int
}

type MetricsConfig struct {
	Enabled bool
}

// RateLimitConfig bounds auth attempts per client IP within Window
type RateLimitConfig struct {
	Window        time.Duration
	LoginLimit    int
	RegisterLimit int
	ResendLimit   int
	// EmailCooldown is the minimum gap between two verification resends to one address
	EmailCooldown time.Duration
}

// Load reads configuration from environment variables, loading .env first if present
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "5001"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:5173"}),
			UploadRate:      getFloatEnv("UPLOAD_RATE_PER_SECOND", 1),
			UploadBurst:     getIntEnv("UPLOAD_BURST", 5),
		},
		Database: DatabaseConfig{
			Host:             getEnv("DB_HOST", "localhost"),
			Port:             getEnv("DB_PORT", "5432"),
			User:             getEnv("DB_USER", "postgres"),
			Password:         getEnv("DB_PASSWORD", "postgres"),
			DBName:           getEnv("DB_NAME", "nagarseva"),
			SSLMode:          getEnv("DB_SSLMODE", "disable"),
			ChannelBinding:   getEnv("DB_CHANNEL_BINDING", ""),
			MigrateOnStartup: getBoolEnv("DB_MIGRATE_ON_STARTUP", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenFormat:          strings.ToLower(getEnv("AUTH_TOKEN_FORMAT", TokenFormatPaseto)),
			PasetoKey:            []byte(getEnv("PASETO_KEY", "")),
			JWTSecret:            []byte(getEnv("JWT_SECRET", "")),
			SessionDuration:      getDurationEnv("SESSION_DURATION", 7*24*time.Hour),
			VerificationTokenTTL: getDurationEnv("VERIFICATION_TOKEN_TTL", time.Hour),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			FromName:     getEnv("EMAIL_FROM_NAME", "Municipal Helpdesk"),
			FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:5173"),
			SendTimeout:  getDurationEnv("EMAIL_SEND_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			S3Region:      getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:    getEnv("S3_ENDPOINT", ""),
			S3Bucket:      getEnv("S3_BUCKET", "complaints"),
			S3AccessKey:   getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey:   getEnv("S3_SECRET_KEY", ""),
			PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
			UploadTimeout: getDurationEnv("S3_UPLOAD_TIMEOUT", 20*time.Second),
			MaxImageBytes: int64(getIntEnv("MAX_IMAGE_BYTES", 5*1024*1024)),
			UsePathStyle:  getBoolEnv("S3_USE_PATH_STYLE", true),
		},
		Complaints: ComplaintConfig{
			StatusPolicy: strings.ToLower(getEnv("COMPLAINT_STATUS_POLICY", StatusPolicyOverwrite)),
		},
		Notifications: NotificationConfig{
			Workers:           getIntEnv("NOTIFY_WORKERS", 4),
			QueueSize:         getIntEnv("NOTIFY_QUEUE_SIZE", 256),
			DeadLetterLogSize: getIntEnv("NOTIFY_DEAD_LETTER_LOG_SIZE", 100),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("METRICS_ENABLED", true),
		},
		RateLimit: RateLimitConfig{
			Window:        getDurationEnv("RATE_LIMIT_WINDOW", 15*time.Minute),
			LoginLimit:    getIntEnv("RATE_LIMIT_LOGIN", 10),
			RegisterLimit: getIntEnv("RATE_LIMIT_REGISTER", 5),
			ResendLimit:   getIntEnv("RATE_LIMIT_RESEND", 5),
			EmailCooldown: getDurationEnv("EMAIL_COOLDOWN", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that have no safe default
func (c *Config) Validate() error {
	switch c.Auth.TokenFormat {
	case TokenFormatPaseto:
		if len(c.Auth.PasetoKey) != 32 {
			return fmt.Errorf("PASETO_KEY must be exactly 32 bytes, got %d", len(c.Auth.PasetoKey))
		}
	case TokenFormatJWT:
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes when AUTH_TOKEN_FORMAT=jwt")
		}
	default:
		return fmt.Errorf("unknown AUTH_TOKEN_FORMAT %q", c.Auth.TokenFormat)
	}

	switch c.Complaints.StatusPolicy {
	case StatusPolicyOverwrite, StatusPolicyTerminal:
	default:
		return fmt.Errorf("unknown COMPLAINT_STATUS_POLICY %q", c.Complaints.StatusPolicy)
	}

	if c.Storage.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be positive")
	}

	if !c.Server.IsDevelopment() && c.Email.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required outside dev")
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return f
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return b
}

// getDurationEnv reads a whole number of seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
