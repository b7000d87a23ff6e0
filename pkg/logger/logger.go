// Package logger держит глобальный slog логгер сервиса и CLI.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log глобальный логгер; до Init пишет через slog.Default
var Log = slog.Default()

const defaultLogFile = "logs/guestrisk.log"

// Config конфигурация логгера
type Config struct {
	Level      string
	Format     string // json, text
	Output     string // stdout, stderr, file
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool

	// Writer перекрывает Output, если задан
	Writer io.Writer
}

// Init JSON в stdout с заданным уровнем
func Init(level string) {
	InitWithConfig(Config{Level: level, Format: "json", Output: "stdout"})
}

// ParseLevel переводит строковый уровень в slog.Level.
// Неизвестное значение даёт info.
func ParseLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// InitWithConfig заменяет глобальный логгер
func InitWithConfig(cfg Config) {
	Log = New(cfg)
}

// New собирает логгер, не трогая глобальный. На debug добавляется source.
func New(cfg Config) *slog.Logger {
	lvl := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}

	w := cfg.Writer
	if w == nil {
		w = openOutput(cfg)
	}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// openOutput: file пишет через lumberjack с ротацией, при ошибке каталога stdout
func openOutput(cfg Config) io.Writer {
	switch cfg.Output {
	case "stderr":
		return os.Stderr
	case "file":
	default:
		return os.Stdout
	}

	path := cfg.FilePath
	if path == "" {
		path = defaultLogFile
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

type ctxKey struct{}

// NewContext кладёт логгер в контекст
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext возвращает логгер из контекста или глобальный Log
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return Log
	}
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return Log
}

// WithRequestID логгер запроса
func WithRequestID(requestID string) *slog.Logger {
	return Log.With("request_id", requestID)
}

func Debug(msg string, args ...any) { Log.Debug(msg, args...) }
func Info(msg string, args ...any) { Log.Info(msg, args...) }
func Warn(msg string, args ...any) { Log.Warn(msg, args...) }
func Error(msg string, args ...any) { Log.Error(msg, args...) }

// Fatal логирует ошибку и завершает процесс с кодом 1
func Fatal(msg string, args ...any) {
	Log.Error(msg, args...)
	os.Exit(1)
}
