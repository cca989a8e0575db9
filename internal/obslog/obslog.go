package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 전역 로거. 콘솔+파일 동시 출력 지원.
var (
	globalLogger *zap.Logger = zap.NewNop()
)

// L는 전역 로거를 반환.
func L() *zap.Logger { return globalLogger }

// Set replaces the global logger. nil resets it to a no-op logger.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	globalLogger = l
}

// Sync flushes buffered entries of the global logger.
func Sync() { _ = globalLogger.Sync() }

// Defaults are used for variables that are not set in the environment.
// The interactive client keeps the console quiet so log lines do not
// interleave with the board.
type Defaults struct {
	Console bool
	File    string
}

// Settings is the resolved logging configuration.
type Settings struct {
	Level      zapcore.Level
	Format     string
	Console    bool
	ToFile     bool
	FilePath   string
	ShowCaller bool
}

// SettingsFromEnv reads LOG_* variables.
func SettingsFromEnv(d Defaults) Settings {
	if strings.TrimSpace(d.File) == "" {
		d.File = filepath.Join("logs", "client.log")
	}
	s := Settings{
		Level:      parseLevel(getenvDefault("LOG_LEVEL", "info")),
		Console:    strings.EqualFold(getenvDefault("LOG_TO_CONSOLE", fmt.Sprint(d.Console)), "true"),
		ToFile:     strings.EqualFold(getenvDefault("LOG_TO_FILE", "true"), "true"),
		ShowCaller: strings.EqualFold(getenvDefault("LOG_CALLER", "false"), "true"),
		Format:     strings.ToLower(strings.TrimSpace(getenvDefault("LOG_FORMAT", "legacy"))),
		FilePath:   strings.TrimSpace(getenvDefault("LOG_FILE", d.File)),
	}
	if s.Format != "legacy" && s.Format != "json" && s.Format != "console" {
		s.Format = "legacy"
	}
	if s.Format == "legacy" {
		s.ShowCaller = true
	}
	return s
}

// InitFromEnv는 환경설정으로 zap 로거를 초기화.
func InitFromEnv(d Defaults) error {
	logger, err := Build(SettingsFromEnv(d))
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

// Build creates a logger without touching the global one.
func Build(s Settings) (*zap.Logger, error) {
	var cores []zapcore.Core

	if s.Console {
		cores = append(cores, zapcore.NewCore(encoderFor(s.Format), zapcore.AddSync(os.Stderr), s.Level))
	}

	if s.ToFile {
		if err := ensureDir(filepath.Dir(s.FilePath)); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(s.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoderFor(s.Format), zapcore.AddSync(f), s.Level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if s.ShowCaller {
		logger = logger.WithOptions(zap.AddCaller())
	}
	logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, nil
}

func encoderFor(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig(false))
	default:
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// 인코더 설정들
func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig(color bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
