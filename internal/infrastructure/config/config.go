package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	EnvProduction = "production"

	// devJWTSecret and devCSRFSecret are only accepted outside production.
	devJWTSecret  = "logiflow-dev-secret"
	devCSRFSecret = "logiflow-dev-csrf-key-0123456789"

	minCSRFSecretLen = 32
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Mongo MongoConfig
	Redis RedisConfig
	Auth  AuthConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=logiflow"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// AuthConfig is read once at startup and handed by reference to the password
// service, the token service and the session manager.
type AuthConfig struct {
	JWTSecret         string        `env:"JWT_SECRET"`
	TokenTTL          time.Duration `env:"JWT_EXPIRES_IN,      default=4h"`
	PasswordCost      int           `env:"BCRYPT_SALT_ROUNDS,  default=10"`
	SessionLifetime   time.Duration `env:"SESSION_LIFETIME,    default=8h"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME, default=logiflow.sid"`
	CSRFSecret        string        `env:"CSRF_SECRET"`
	// CSRFTrustedOrigins lists extra hosts allowed to post the browser forms.
	CSRFTrustedOrigins []string `env:"CSRF_TRUSTED_ORIGINS"`
	// SecureCookies is derived from Env, not read from the environment.
	SecureCookies bool
}

// IsProduction reports whether the process runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through an arbitrary lookuper.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) finalize() error {
	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		c.Auth.JWTSecret = devJWTSecret
	}
	switch {
	case c.Auth.CSRFSecret == "" && c.IsProduction():
		return errors.New("CSRF_SECRET is required in production")
	case c.Auth.CSRFSecret == "":
		c.Auth.CSRFSecret = devCSRFSecret
	case len(c.Auth.CSRFSecret) < minCSRFSecretLen:
		return fmt.Errorf("CSRF_SECRET must be at least %d bytes", minCSRFSecretLen)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Auth.SessionLifetime <= 0 {
		return fmt.Errorf("SESSION_LIFETIME must be positive, got %s", c.Auth.SessionLifetime)
	}
	c.Auth.SecureCookies = c.IsProduction()
	return nil
}
