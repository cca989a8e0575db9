package config

import (
	"testing"
	"time"
)

var allVars = []string{
	"CHESS_API_BASE_URL", "CHESS_API_TIMEOUT_MS", "CHESS_API_RETRY",
	"CHESS_RESET_PATH", "CHESS_MOVE_PATH", "CHESS_AI_PATH",
	"X_USER_ID", "X_SESSION_ID", "CHESS_DIFFICULTY", "CHESS_PLAYER_COLOR",
	"CHESS_AI_DELAY_MS", "CHESS_MESSAGES_DIR", "CHESS_EXPORT_DIR", "CHESS_HISTORY_FILE",
	"REDIS_URL", "CHESS_JOURNAL_TTL_SEC", "DATABASE_URL", "CHESS_SPECTATE_ADDR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allVars {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:5000" || cfg.APITimeout != 10*time.Second || cfg.APIRetry != 1 {
		t.Fatalf("api defaults = %+v", cfg)
	}
	if cfg.ResetPath != "/reset" || cfg.MovePath != "/make_move" || cfg.AIPath != "/ai_move" {
		t.Fatalf("paths = %s %s %s", cfg.ResetPath, cfg.MovePath, cfg.AIPath)
	}
	if cfg.Difficulty != "medium" || cfg.PlayerColor != "white" || cfg.AIDelay != 500*time.Millisecond {
		t.Fatalf("session defaults = %+v", cfg)
	}
	if cfg.RedisURL != "" || cfg.DatabaseURL != "" || cfg.JournalTTL != 24*time.Hour {
		t.Fatalf("optional stores = %+v", cfg)
	}
	if len(cfg.Headers()) != 0 {
		t.Fatalf("headers = %v", cfg.Headers())
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHESS_API_BASE_URL", " https://chess.example.com/ ")
	t.Setenv("CHESS_API_TIMEOUT_MS", "2500")
	t.Setenv("CHESS_AI_DELAY_MS", "0")
	t.Setenv("CHESS_SPECTATE_ADDR", "127.0.0.1:8090")
	t.Setenv("CHESS_DIFFICULTY", "HARD")
	t.Setenv("CHESS_PLAYER_COLOR", "Black")
	t.Setenv("X_USER_ID", "u-1")
	t.Setenv("CHESS_JOURNAL_TTL_SEC", "60")
	t.Setenv("CHESS_API_RETRY", "nope")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "https://chess.example.com" || cfg.APITimeout != 2500*time.Millisecond {
		t.Fatalf("api = %s %v", cfg.APIBaseURL, cfg.APITimeout)
	}
	if cfg.AIDelay != 500*time.Millisecond || cfg.SpectateAddr != "127.0.0.1:8090" || cfg.Difficulty != "hard" || cfg.PlayerColor != "black" {
		t.Fatalf("session = %+v", cfg)
	}
	if cfg.APIRetry != 1 || cfg.JournalTTL != time.Minute {
		t.Fatalf("retry=%d ttl=%v", cfg.APIRetry, cfg.JournalTTL)
	}
	if h := cfg.Headers(); h["X-User-Id"] != "u-1" || len(h) != 1 {
		t.Fatalf("headers = %v", h)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"CHESS_API_BASE_URL": "localhost:5000",
		"CHESS_DIFFICULTY":   "grandmaster",
		"CHESS_PLAYER_COLOR": "red",
		"CHESS_MOVE_PATH":    "make_move",
	}
	for k, v := range cases {
		clearEnv(t)
		t.Setenv(k, v)
		if _, err := Load(); err == nil {
			t.Fatalf("%s=%q accepted", k, v)
		}
	}
}
