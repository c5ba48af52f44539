// Package config loads process configuration from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every setting the server and the admin CLI read at startup.
type Config struct {
	DatabaseURL    string
	ServerPort     string
	AllowedOrigins []string
	JWTSecret      string
	TokenTTL       time.Duration
	LogLevel       logrus.Level
	LogFormat      string
	PhoneRegion    string
	CookieSecure   bool
	MaxBodyBytes   int64
}

// Default returns the configuration used for every unset key.
func Default() Config {
	return Config{
		ServerPort:   "8080",
		TokenTTL:     time.Hour,
		LogLevel:     logrus.InfoLevel,
		LogFormat:    "json",
		PhoneRegion:  "US",
		CookieSecure: true,
		MaxBodyBytes: 1 << 20,
	}
}

// Load reads .env (a missing file is fine) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an environment lookup function. Invalid values are
// reported with the offending key.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	cfg.DatabaseURL, _ = get("DATABASE_URL")
	if v, ok := get("SERVER_PORT"); ok {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			return Config{}, fmt.Errorf("SERVER_PORT: invalid port %q", v)
		}
		cfg.ServerPort = v
	}
	if v, ok := get("ALLOWED_ORIGINS"); ok {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}
	cfg.JWTSecret, _ = get("JWT_SECRET")

	if v, ok := get("TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("TOKEN_TTL: invalid duration %q", v)
		}
		cfg.TokenTTL = d
	}
	if v, ok := get("LOG_LEVEL"); ok {
		lvl, err := logrus.ParseLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = lvl
	}
	if v, ok := get("LOG_FORMAT"); ok {
		v = strings.ToLower(v)
		if v != "json" && v != "text" {
			return Config{}, fmt.Errorf("LOG_FORMAT: must be json or text, got %q", v)
		}
		cfg.LogFormat = v
	}
	if v, ok := get("PHONE_REGION"); ok {
		cfg.PhoneRegion = strings.ToUpper(v)
	}
	if v, ok := get("COOKIE_SECURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("COOKIE_SECURE: invalid bool %q", v)
		}
		cfg.CookieSecure = b
	}
	if v, ok := get("MAX_BODY_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("MAX_BODY_BYTES: invalid size %q", v)
		}
		cfg.MaxBodyBytes = n
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL: environment variable not set")
	}
	return cfg, nil
}

// RequireServer checks the keys only the HTTP server needs.
func (c Config) RequireServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET: environment variable not set")
	}
	return nil
}
