package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the trust core.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Crypto   CryptoConfig
	Token    TokenConfig
	Rate     RateConfig
	MFA      MFAConfig
	Auth     AuthConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// CryptoConfig carries the field-encryption master key.
type CryptoConfig struct {
	MasterKey string
}

// TokenConfig defines token issuance parameters. Access and refresh
// secrets are independent so either can be rotated without
// invalidating tokens of the other class.
type TokenConfig struct {
	AccessSecret     string
	RefreshSecret    string
	AccessTTLMinutes int
	RefreshTTLDays   int
	Issuer           string
}

// RatePolicy is one named limiter configuration. Policies are data;
// adding one never touches the limiter algorithm.
type RatePolicy struct {
	MaxRequests int
	Window      time.Duration
}

// RateConfig bundles the named rate-limit policies.
type RateConfig struct {
	Login          RatePolicy
	Registration   RatePolicy
	SensitiveWrite RatePolicy
	MFAVerify      RatePolicy
	CleanupMinutes int
}

// MFAConfig controls TOTP enrollment behavior.
type MFAConfig struct {
	Issuer          string
	SkewSteps       int
	BackupCodeCount int
}

// AuthConfig controls principal extraction.
type AuthConfig struct {
	TrustProxyHeaders bool
}

const minMasterKeyLength = 32

// Load reads configuration from environment variables, applying defaults
// where possible. Secret material is validated here so misconfiguration
// fails at startup, not on first use.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "trust-core"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Crypto: CryptoConfig{
			MasterKey: os.Getenv("ENCRYPTION_MASTER_KEY"),
		},
		Token: TokenConfig{
			AccessSecret:     os.Getenv("TOKEN_ACCESS_SECRET"),
			RefreshSecret:    os.Getenv("TOKEN_REFRESH_SECRET"),
			AccessTTLMinutes: getEnvAsInt("TOKEN_ACCESS_TTL_MINUTES", 15),
			RefreshTTLDays:   getEnvAsInt("TOKEN_REFRESH_TTL_DAYS", 7),
			Issuer:           getEnv("TOKEN_ISSUER", "trust-core"),
		},
		Rate: RateConfig{
			Login:          loadPolicy("RATE_LOGIN", 5, time.Minute),
			Registration:   loadPolicy("RATE_REGISTRATION", 3, time.Hour),
			SensitiveWrite: loadPolicy("RATE_SENSITIVE_WRITE", 30, time.Minute),
			MFAVerify:      loadPolicy("RATE_MFA_VERIFY", 5, time.Minute),
			CleanupMinutes: getEnvAsInt("RATE_CLEANUP_MINUTES", 5),
		},
		MFA: MFAConfig{
			Issuer:          getEnv("MFA_ISSUER", "DriveOwn Marketplace"),
			SkewSteps:       getEnvAsInt("MFA_TOTP_SKEW_STEPS", 1),
			BackupCodeCount: getEnvAsInt("MFA_BACKUP_CODE_COUNT", 10),
		},
		Auth: AuthConfig{
			TrustProxyHeaders: getEnvAsBool("AUTH_TRUST_PROXY_HEADERS", false),
		},
	}

	if err := cfg.validateSecrets(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validateSecrets() error {
	if len(c.Crypto.MasterKey) < minMasterKeyLength {
		return fmt.Errorf("ENCRYPTION_MASTER_KEY must be at least %d characters", minMasterKeyLength)
	}
	if c.Token.AccessSecret == "" || c.Token.RefreshSecret == "" {
		return fmt.Errorf("TOKEN_ACCESS_SECRET and TOKEN_REFRESH_SECRET are required")
	}
	if c.Token.AccessSecret == c.Token.RefreshSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	return nil
}

func loadPolicy(prefix string, maxRequests int, window time.Duration) RatePolicy {
	p := RatePolicy{
		MaxRequests: getEnvAsInt(prefix+"_MAX_REQUESTS", maxRequests),
		Window:      window,
	}
	if ms := getEnvAsInt(prefix+"_WINDOW_MS", 0); ms > 0 {
		p.Window = time.Duration(ms) * time.Millisecond
	}
	return p
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTTL returns the access token lifetime.
func (t TokenConfig) AccessTTL() time.Duration {
	return time.Duration(t.AccessTTLMinutes) * time.Minute
}

// RefreshTTL returns the refresh token lifetime.
func (t TokenConfig) RefreshTTL() time.Duration {
	return time.Duration(t.RefreshTTLDays) * 24 * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
