package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MemoryDatabaseURL selects the in-process identity store instead of MySQL.
const MemoryDatabaseURL = "memory://"

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required variables have no default and their
// absence is a startup error, never a request-time error.
type Config struct {
	Env             string        // application environment (dev, test, prod)
	Port            string        // HTTP port to listen on
	LogLevel        string        // slog level name
	DatabaseURL     string        // MySQL DSN or MemoryDatabaseURL
	JWTSecret       string        // secret used to sign access tokens
	RefreshSecret   string        // secret used to sign refresh tokens
	AccessTTL       time.Duration // access token lifetime
	RefreshTTL      time.Duration // refresh token lifetime
	BcryptCost      int           // bcrypt cost factor
	HashConcurrency int           // max concurrent bcrypt operations
	RequestTimeout  time.Duration // upper bound for datastore calls per request
}

// Load reads an optional .env file and then the process environment.  Every
// missing or malformed variable is reported in the returned error so the
// operator can fix them all in one go.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional; real env vars win

	var errs []error
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}
	durOr := func(key string, def time.Duration) time.Duration {
		s := os.Getenv(key)
		if s == "" {
			return def
		}
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("invalid duration for %s: %q", key, s))
			return def
		}
		return d
	}
	intOr := func(key string, def int) int {
		s := os.Getenv(key)
		if s == "" {
			return def
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid int for %s: %q", key, s))
			return def
		}
		return n
	}

	cfg := Config{
		Env:             getenv("APP_ENV", "dev"),
		Port:            must("APP_PORT"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		DatabaseURL:     must("DATABASE_URL"),
		JWTSecret:       must("JWT_SECRET"),
		RefreshSecret:   must("REFRESH_TOKEN_SECRET"),
		AccessTTL:       durOr("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:      durOr("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:      intOr("BCRYPT_COST", 10),
		HashConcurrency: intOr("HASH_CONCURRENCY", runtime.GOMAXPROCS(0)),
		RequestTimeout:  durOr("REQUEST_TIMEOUT", 5*time.Second),
	}

	if cfg.JWTSecret != "" && cfg.JWTSecret == cfg.RefreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST out of range [4,31]: %d", cfg.BcryptCost))
	}
	if cfg.HashConcurrency < 1 {
		cfg.HashConcurrency = 1
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string { return ":" + c.Port }

// UseMemoryStore reports whether the in-process identity store was requested.
func (c Config) UseMemoryStore() bool { return c.DatabaseURL == MemoryDatabaseURL }
