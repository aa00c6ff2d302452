// Package config loads the server configuration from the environment.
//
// A .env file in the working directory is read first (if present) with
// godotenv; variables already set in the real environment win. Every value has
// a default except SESSION_SECRET, and invalid values fail Load with an error
// naming the variable, so a bad deploy stops at start-up instead of at the
// first request.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageMinIO = "minio"
)

// MinSecretLength is the shortest SESSION_SECRET accepted.
const MinSecretLength = 16

// Config is everything main needs to build the server.
type Config struct {
	Port     int
	DBPath   string
	LogLevel slog.Level

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	AdminEmail    string
	AdminPassword string
	AdminUsername string

	StorageBackend string
	UploadDir      string
	UploadBaseURL  string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIOPublicURL string

	RedisURL string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	WikiBaseURL string
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Load reads .env (optional) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Load passes os.Getenv;
// tests pass a map.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		Port:     p.int("PORT", 8080),
		DBPath:   p.string("DB_PATH", "data/birddropper.db"),
		LogLevel: p.level("LOG_LEVEL", slog.LevelInfo),

		SessionSecret: getenv("SESSION_SECRET"),
		SessionTTL:    p.duration("SESSION_TTL", 30*24*time.Hour),
		CookieSecure:  p.bool("COOKIE_SECURE", false),

		AdminEmail:    strings.ToLower(strings.TrimSpace(getenv("ADMIN_EMAIL"))),
		AdminPassword: getenv("ADMIN_PASSWORD"),
		AdminUsername: p.string("ADMIN_USERNAME", "admin"),

		StorageBackend: strings.ToLower(p.string("STORAGE_BACKEND", StorageLocal)),
		UploadDir:      p.string("UPLOAD_DIR", "data/uploads"),
		UploadBaseURL:  p.string("UPLOAD_BASE_URL", "/uploads"),

		MinIOEndpoint:  getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    p.string("MINIO_BUCKET", "bird-dropper"),
		MinIOUseSSL:    p.bool("MINIO_USE_SSL", false),
		MinIOPublicURL: getenv("MINIO_PUBLIC_URL"),

		RedisURL: getenv("REDIS_URL"),

		GitHubClientID:     getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  getenv("GITHUB_CALLBACK_URL"),

		WikiBaseURL: getenv("WIKI_BASE_URL"),
	}
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := errors.Join(append(p.errs, cfg.validate()...)...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	if len(c.SessionSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("config: SESSION_SECRET must be at least %d characters", MinSecretLength))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: PORT %d out of range", c.Port))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("config: SESSION_TTL must be positive"))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("config: ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	switch c.StorageBackend {
	case StorageLocal:
	case StorageMinIO:
		if c.MinIOEndpoint == "" || c.MinIOAccessKey == "" || c.MinIOSecretKey == "" {
			errs = append(errs, errors.New("config: STORAGE_BACKEND=minio needs MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.StorageBackend))
	}
	return errs
}

// parser collects conversion errors so Load reports all of them at once.
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) string(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v) // Atoi = ASCII to Integer
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
		return def
	}
	return n
}

func (p *parser) bool(key string, def bool) bool {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s=%q is not a boolean", key, v))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s=%q is not a duration", key, v))
		return def
	}
	return d
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		p.errs = append(p.errs, fmt.Errorf("config: %s=%q is not a log level", key, v))
		return def
	}
	return l
}
