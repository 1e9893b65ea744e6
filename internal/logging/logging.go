// Package logging sets up the process-wide slog logger and context-aware helpers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level    string // debug, info, warn, error
	Format   string // json or text
	Output   string // stdout, file, both
	FilePath string
	// rotation, file output only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init builds the handler described by cfg and installs it as slog's default.
func Init(cfg Config) (*slog.Logger, error) {
	var out io.Writer = os.Stdout
	if cfg.Output == "file" || cfg.Output == "both" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, err
		}
		fw := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 10),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
			Compress:   true,
		}
		if cfg.Output == "file" {
			out = fw
		} else {
			out = io.MultiWriter(os.Stdout, fw)
		}
	}
	l := New(out, cfg.Level, cfg.Format)
	slog.SetDefault(l)
	return l, nil
}

// New returns a logger writing to w; used directly by tests.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext returns the default logger tagged with the request id carried by ctx.
func WithContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if ctx == nil {
		return l
	}
	if id := middleware.GetReqID(ctx); id != "" {
		return l.With(slog.String("request_id", id))
	}
	return l
}

func Debug(ctx context.Context, msg string, args ...any) { WithContext(ctx).DebugContext(ctx, msg, args...) }
func Info(ctx context.Context, msg string, args ...any)  { WithContext(ctx).InfoContext(ctx, msg, args...) }
func Warn(ctx context.Context, msg string, args ...any)  { WithContext(ctx).WarnContext(ctx, msg, args...) }
func Error(ctx context.Context, msg string, args ...any) { WithContext(ctx).ErrorContext(ctx, msg, args...) }

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
