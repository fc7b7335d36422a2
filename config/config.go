package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Log         LogConfig
	Tracing     TracingConfig
	CORS        CORSConfig
	RateLimit   RateLimitConfig
	ObjectStore ObjectStoreConfig
	Upload      UploadConfig
	Redis       RedisConfig
	Seed        SeedConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
}

func (a AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig describes the primary document store. An empty Host disables
// the primary and the service runs on the in-memory store from the start.
type DatabaseConfig struct {
	Host               string
	Port               int
	Name               string
	User               string
	Password           string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
	ProbeTimeout       time.Duration
	AutoMigrate        bool
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

type RateLimitConfig struct {
	// Global Rate limit per IP
	RequestsPerSecond float64
	BurstSize         int
	// Upload endpoints have stricter limits
	UploadRequestsPerMinute int
}

// ObjectStoreConfig selects where photo objects live. Driver is "memory" or "s3".
type ObjectStoreConfig struct {
	Driver        string
	Bucket        string
	Region        string
	Endpoint      string
	UsePathStyle  bool
	PublicBaseURL string
	URLTTL        time.Duration
}

type UploadConfig struct {
	Folder           string
	MaxFileSize      int64
	MaxRetries       int
	RetryBaseDelay   time.Duration
	StaleInFlightAge time.Duration
	StaleTrackedAge  time.Duration
	SweepInterval    time.Duration
}

// RedisConfig is optional; when Addr is set the per-patient upload guard is
// shared across replicas.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	GuardTTL time.Duration
}

type SeedConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Environment: v.GetString("APP_ENV"),
			Version:     v.GetString("APP_VERSION"),
		},
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetInt("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:               v.GetString("DB_HOST"),
			Port:               v.GetInt("DB_PORT"),
			Name:               v.GetString("DB_NAME"),
			User:               v.GetString("DB_USER"),
			Password:           v.GetString("DB_PASSWORD"),
			SSLMode:            v.GetString("DB_SSLMODE"),
			MaxOpenConns:       v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:       v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime:    v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime:    v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
			SlowQueryThreshold: v.GetDuration("DB_SLOW_QUERY_THRESHOLD"),
			ProbeTimeout:       v.GetDuration("DB_PROBE_TIMEOUT"),
			AutoMigrate:        v.GetBool("DB_AUTO_MIGRATE"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("JWT_SECRET"),
			AccessTokenTTL:  v.GetDuration("JWT_ACCESS_TTL"),
			RefreshTokenTTL: v.GetDuration("JWT_REFRESH_TTL"),
			Issuer:          v.GetString("JWT_ISSUER"),
		},
		Log: LogConfig{
			Level:      v.GetString("LOG_LEVEL"),
			Format:     v.GetString("LOG_FORMAT"),
			OutputPath: v.GetString("LOG_OUTPUT"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("TRACING_ENABLED"),
			ServiceName: v.GetString("TRACING_SERVICE_NAME"),
			Endpoint:    v.GetString("TRACING_ENDPOINT"),
			SampleRate:  v.GetFloat64("TRACING_SAMPLE_RATE"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			AllowedMethods: splitList(v.GetString("CORS_ALLOWED_METHODS")),
			AllowedHeaders: splitList(v.GetString("CORS_ALLOWED_HEADERS")),
			MaxAge:         v.GetDuration("CORS_MAX_AGE"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:       v.GetFloat64("RATE_LIMIT_RPS"),
			BurstSize:               v.GetInt("RATE_LIMIT_BURST"),
			UploadRequestsPerMinute: v.GetInt("RATE_LIMIT_UPLOAD_RPM"),
		},
		ObjectStore: ObjectStoreConfig{
			Driver:        v.GetString("OBJECT_STORE_DRIVER"),
			Bucket:        v.GetString("OBJECT_STORE_BUCKET"),
			Region:        v.GetString("OBJECT_STORE_REGION"),
			Endpoint:      v.GetString("OBJECT_STORE_ENDPOINT"),
			UsePathStyle:  v.GetBool("OBJECT_STORE_PATH_STYLE"),
			PublicBaseURL: v.GetString("OBJECT_STORE_PUBLIC_URL"),
			URLTTL:        v.GetDuration("OBJECT_STORE_URL_TTL"),
		},
		Upload: UploadConfig{
			Folder:           v.GetString("UPLOAD_FOLDER"),
			MaxFileSize:      v.GetInt64("UPLOAD_MAX_FILE_SIZE"),
			MaxRetries:       v.GetInt("UPLOAD_MAX_RETRIES"),
			RetryBaseDelay:   v.GetDuration("UPLOAD_RETRY_BASE_DELAY"),
			StaleInFlightAge: v.GetDuration("UPLOAD_STALE_IN_FLIGHT_AGE"),
			StaleTrackedAge:  v.GetDuration("UPLOAD_STALE_TRACKED_AGE"),
			SweepInterval:    v.GetDuration("UPLOAD_SWEEP_INTERVAL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			GuardTTL: v.GetDuration("REDIS_GUARD_TTL"),
		},
		Seed: SeedConfig{
			Enabled: v.GetBool("SEED_ENABLED"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "clinicdesk")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_VERSION", "0.0.0")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)

	v.SetDefault("DB_HOST", "")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_NAME", "clinicdesk")
	v.SetDefault("DB_USER", "clinicdesk")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_SSLMODE", "require")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute)
	v.SetDefault("DB_SLOW_QUERY_THRESHOLD", 200*time.Millisecond)
	v.SetDefault("DB_PROBE_TIMEOUT", 5*time.Second)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", 15*time.Minute)
	v.SetDefault("JWT_REFRESH_TTL", 7*24*time.Hour)
	v.SetDefault("JWT_ISSUER", "clinicdesk")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_SERVICE_NAME", "clinicdesk")
	v.SetDefault("TRACING_ENDPOINT", "localhost:4318")
	v.SetDefault("TRACING_SAMPLE_RATE", 0.1)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173")
	v.SetDefault("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	v.SetDefault("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-ID")
	v.SetDefault("CORS_MAX_AGE", 12*time.Hour)

	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("RATE_LIMIT_UPLOAD_RPM", 30)

	v.SetDefault("OBJECT_STORE_DRIVER", "memory")
	v.SetDefault("OBJECT_STORE_BUCKET", "clinicdesk-photos")
	v.SetDefault("OBJECT_STORE_REGION", "us-east-1")
	v.SetDefault("OBJECT_STORE_ENDPOINT", "")
	v.SetDefault("OBJECT_STORE_PATH_STYLE", false)
	v.SetDefault("OBJECT_STORE_PUBLIC_URL", "")
	v.SetDefault("OBJECT_STORE_URL_TTL", 7*24*time.Hour)

	v.SetDefault("UPLOAD_FOLDER", "patient-photos")
	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("UPLOAD_MAX_RETRIES", 3)
	v.SetDefault("UPLOAD_RETRY_BASE_DELAY", time.Second)
	v.SetDefault("UPLOAD_STALE_IN_FLIGHT_AGE", 30*time.Minute)
	v.SetDefault("UPLOAD_STALE_TRACKED_AGE", 24*time.Hour)
	v.SetDefault("UPLOAD_SWEEP_INTERVAL", 5*time.Minute)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_GUARD_TTL", 10*time.Minute)

	v.SetDefault("SEED_ENABLED", false)
}

// validate enforces production security requirements.
func validate(cfg *Config) error {
	var errs []string

	if cfg.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(cfg.JWT.Secret) < 32 && cfg.App.Environment == "production" {
		errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
	}

	if cfg.Database.Enabled() && cfg.Database.Password == "" && !cfg.App.IsDevelopment() {
		errs = append(errs, "DB_PASSWORD is required in non-development environments")
	}

	if cfg.Database.SSLMode == "disable" && cfg.App.Environment == "production" {
		errs = append(errs, "DB_SSLMODE=disable is not allowed in production")
	}

	if cfg.Seed.Enabled && cfg.App.Environment == "production" {
		errs = append(errs, "SEED_ENABLED is not allowed in production")
	}

	switch cfg.ObjectStore.Driver {
	case "memory":
	case "s3":
		// Photo URLs are persisted on patients, so they must not expire.
		if cfg.ObjectStore.PublicBaseURL == "" {
			errs = append(errs, "OBJECT_STORE_PUBLIC_URL is required when OBJECT_STORE_DRIVER=s3")
		}
	default:
		errs = append(errs, fmt.Sprintf("OBJECT_STORE_DRIVER must be \"memory\" or \"s3\", got %q", cfg.ObjectStore.Driver))
	}

	if cfg.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if cfg.Upload.MaxRetries < 0 {
		errs = append(errs, "UPLOAD_MAX_RETRIES cannot be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	return result
}
