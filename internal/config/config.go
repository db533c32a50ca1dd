// Package config centralises configuration parsing for the fitness client.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"example.com/fitness/internal/auth"
)

// Config captures runtime configuration values for the fitness client.
type Config struct {
	APIURL         string
	HTTPTimeout    time.Duration
	DetailCacheTTL time.Duration // Zero disables caching of recommendation details.

	OIDCClientID    string
	OIDCAuthURL     string
	OIDCTokenURL    string
	OIDCRedirectURL string
	OIDCScopes      []string
	OIDCPrompt      string
	JWTSecret       string // Empty disables signature verification of received tokens.
	JWTIssuer       string

	Store       string // file, sqlite or memory.
	StorePath   string
	CatalogPath string // Optional YAML catalog; empty uses built-in defaults.
	RecentCount int    // Overrides the catalog's recent activity count when positive.

	HTTPAddress  string
	CORSOrigin   string
	LoginTimeout time.Duration
	LogLevel     slog.Level
}

// Load reads an optional .env file and then environment variables into
// Config, applying defaults for a local backend.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("ignoring unreadable .env file", "error", err)
	}

	realm := "http://localhost:8080/api/auth/realms/fitness-autho2/protocol/openid-connect"
	cfg := Config{
		APIURL:          getEnv("FITNESS_API_URL", "http://localhost:8080/api"),
		HTTPTimeout:     getDurationEnv("FITNESS_HTTP_TIMEOUT", 15*time.Second),
		DetailCacheTTL:  getDurationEnv("FITNESS_DETAIL_CACHE_TTL", 5*time.Minute),
		OIDCClientID:    getEnv("OIDC_CLIENT_ID", "oauth2-pkce-client"),
		OIDCAuthURL:     getEnv("OIDC_AUTH_URL", realm+"/auth"),
		OIDCTokenURL:    getEnv("OIDC_TOKEN_URL", realm+"/token"),
		OIDCRedirectURL: getEnv("OIDC_REDIRECT_URL", "http://localhost:5173/callback"),
		OIDCPrompt:      getEnv("OIDC_PROMPT", "login"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", ""),
		Store:           strings.ToLower(getEnv("FITNESS_STORE", "file")),
		CatalogPath:     getEnv("FITNESS_CATALOG", ""),
		RecentCount:     getIntEnv("FITNESS_RECENT_COUNT", 0),
		HTTPAddress:     getEnv("HTTP_ADDRESS", "127.0.0.1:5173"),
		CORSOrigin:      getEnv("CORS_ORIGIN", "http://localhost:5173"),
		LoginTimeout:    getDurationEnv("LOGIN_TIMEOUT", 5*time.Minute),
		LogLevel:        getLevelEnv("LOG_LEVEL", slog.LevelInfo),
	}
	cfg.OIDCScopes = splitAndTrim(getEnv("OIDC_SCOPES", "openid profile offline_access"))
	cfg.StorePath = getEnv("FITNESS_STORE_PATH", defaultStorePath(cfg.Store))
	return cfg
}

// ProviderConfig returns the identity provider settings.
func (c Config) ProviderConfig() auth.ProviderConfig {
	return auth.ProviderConfig{
		ClientID:    c.OIDCClientID,
		AuthURL:     c.OIDCAuthURL,
		TokenURL:    c.OIDCTokenURL,
		RedirectURL: c.OIDCRedirectURL,
		Scopes:      c.OIDCScopes,
		Prompt:      c.OIDCPrompt,
	}
}

// ClaimsConfig returns the token verification settings.
func (c Config) ClaimsConfig() auth.Config {
	return auth.Config{Secret: c.JWTSecret, Issuer: c.JWTIssuer}
}

// Validate reports settings that would make every command fail.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("FITNESS_API_URL must not be empty")
	}
	switch c.Store {
	case "file", "sqlite":
		if c.StorePath == "" {
			return fmt.Errorf("FITNESS_STORE_PATH is required for the %s store", c.Store)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown FITNESS_STORE %q", c.Store)
	}
	return nil
}

func defaultStorePath(kind string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	name := "session.json"
	if kind == "sqlite" {
		name = "session.db"
	}
	return filepath.Join(dir, "fitness", name)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// splitAndTrim accepts comma or space separated lists.
func splitAndTrim(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getLevelEnv(key string, fallback slog.Level) slog.Level {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	return fallback
}
