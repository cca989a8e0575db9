package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	APIBaseURL string
	APITimeout time.Duration
	APIRetry   int
	ResetPath  string
	MovePath   string
	AIPath     string

	XUserID    string
	XSessionID string

	Difficulty  string
	PlayerColor string
	AIDelay     time.Duration

	MessagesDir string
	ExportDir   string
	HistoryFile string

	RedisURL   string
	JournalTTL time.Duration

	DatabaseURL string

	SpectateAddr string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		APIBaseURL:  "http://localhost:5000",
		APITimeout:  10 * time.Second,
		APIRetry:    1,
		ResetPath:   "/reset",
		MovePath:    "/make_move",
		AIPath:      "/ai_move",
		Difficulty:  "medium",
		PlayerColor: "white",
		AIDelay:     500 * time.Millisecond,
		ExportDir:   ".",
		HistoryFile: ".chess_history",
		JournalTTL:  24 * time.Hour,
	}

	if v := env("CHESS_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = strings.TrimRight(v, "/")
	}
	if n, ok := envInt("CHESS_API_TIMEOUT_MS"); ok && n > 0 {
		cfg.APITimeout = time.Duration(n) * time.Millisecond
	}
	if n, ok := envInt("CHESS_API_RETRY"); ok && n > 0 {
		cfg.APIRetry = n
	}
	if v := env("CHESS_RESET_PATH"); v != "" {
		cfg.ResetPath = v
	}
	if v := env("CHESS_MOVE_PATH"); v != "" {
		cfg.MovePath = v
	}
	if v := env("CHESS_AI_PATH"); v != "" {
		cfg.AIPath = v
	}

	cfg.XUserID = env("X_USER_ID")
	cfg.XSessionID = env("X_SESSION_ID")

	if v := env("CHESS_DIFFICULTY"); v != "" {
		cfg.Difficulty = strings.ToLower(v)
	}
	if v := env("CHESS_PLAYER_COLOR"); v != "" {
		cfg.PlayerColor = strings.ToLower(v)
	}
	if n, ok := envInt("CHESS_AI_DELAY_MS"); ok && n > 0 {
		cfg.AIDelay = time.Duration(n) * time.Millisecond
	}

	cfg.MessagesDir = env("CHESS_MESSAGES_DIR")
	if v := env("CHESS_EXPORT_DIR"); v != "" {
		cfg.ExportDir = v
	}
	if v := env("CHESS_HISTORY_FILE"); v != "" {
		cfg.HistoryFile = v
	}

	cfg.RedisURL = env("REDIS_URL")
	if n, ok := envInt("CHESS_JOURNAL_TTL_SEC"); ok && n > 0 {
		cfg.JournalTTL = time.Duration(n) * time.Second
	}
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.SpectateAddr = env("CHESS_SPECTATE_ADDR")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("CHESS_API_BASE_URL must be an http(s) URL: %q", c.APIBaseURL)
	}
	switch c.Difficulty {
	case "easy", "medium", "hard":
	default:
		return fmt.Errorf("CHESS_DIFFICULTY must be easy, medium or hard: %q", c.Difficulty)
	}
	switch c.PlayerColor {
	case "white", "black":
	default:
		return fmt.Errorf("CHESS_PLAYER_COLOR must be white or black: %q", c.PlayerColor)
	}
	for _, p := range []string{c.ResetPath, c.MovePath, c.AIPath} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("endpoint paths must start with /")
		}
	}
	return nil
}

// Headers returns the optional identity headers forwarded to the game service.
func (c *AppConfig) Headers() map[string]string {
	m := map[string]string{}
	if c.XUserID != "" {
		m["X-User-Id"] = c.XUserID
	}
	if c.XSessionID != "" {
		m["X-Session-Id"] = c.XSessionID
	}
	return m
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func envInt(k string) (int, bool) {
	v := env(k)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
