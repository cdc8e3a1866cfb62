// Package config loads the daemon configuration from the environment,
// with an optional .env file for local runs.
package config

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	// StoreDSN selects the persistence backend: postgres://... for
	// Postgres, "memory", or a SQLite file path.
	StoreDSN string
	// DevToolsURL is the DevTools websocket of a running Chrome; empty
	// launches a local instance.
	DevToolsURL string
	// SelectorsFile overrides the embedded per-site DOM selectors.
	SelectorsFile string

	// Control-API auth. Auth is enabled when a password hash is set,
	// in which case the session keys are required.
	SessionHashKey         []byte
	SessionBlockKey        []byte
	OperatorPasswordBcrypt string

	LogLevel slog.Level
}

func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:             getenv("LISTEN_ADDR", ":8080"),
		StoreDSN:               getenv("STORE_DSN", "tablesniper.db"),
		DevToolsURL:            strings.TrimSpace(os.Getenv("CHROME_DEVTOOLS_URL")),
		SelectorsFile:          strings.TrimSpace(os.Getenv("SELECTORS_FILE")),
		OperatorPasswordBcrypt: strings.TrimSpace(os.Getenv("OPERATOR_PASSWORD_BCRYPT")),
	}

	switch strings.ToLower(getenv("LOG_LEVEL", "info")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return Config{}, fmt.Errorf("invalid LOG_LEVEL %q", os.Getenv("LOG_LEVEL"))
	}

	if cfg.OperatorPasswordBcrypt != "" {
		var err error
		if cfg.SessionHashKey, err = mustB64("SESSION_HASH_KEY"); err != nil {
			return Config{}, err
		}
		if cfg.SessionBlockKey, err = mustB64("SESSION_BLOCK_KEY"); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// AuthEnabled reports whether the control API requires a session.
func (c Config) AuthEnabled() bool { return c.OperatorPasswordBcrypt != "" }

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func mustB64(k string) ([]byte, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return nil, fmt.Errorf("%s is required when OPERATOR_PASSWORD_BCRYPT is set (base64)", k)
	}
	if b, err := base64.StdEncoding.DecodeString(v); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}
