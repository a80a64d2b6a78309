// Package log wraps zerolog with the rotation and level conventions the
// rest of the module logs through, grounded on
// AINative-Studio-ainative-code's internal/logger package (same
// zerolog+lumberjack pairing, trimmed to the fields this module's
// verification pipeline and server actually emit).
package log

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	moderrors "github.com/openkitx403/openkitx403/errors"
)

// Level is the minimum severity a Logger emits.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls where and how a Logger writes.
type Config struct {
	Level Level

	// Output is "stdout", "stderr", or a file path.
	Output string

	// EnableRotation routes file output through lumberjack instead of a
	// plain append-mode file handle.
	EnableRotation bool
	MaxSizeMB      int
	MaxBackups     int
	MaxAgeDays     int
	Compress       bool
}

// DefaultConfig returns an info-level, stderr configuration with default
// rotation limits. cmd/openkitx403d builds its Config from its own
// log_level/log_output settings instead.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     "stderr",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	}
}

// Logger is the structured logger every package in this module takes as a
// dependency instead of reaching for a global. The method set mirrors the
// severities the verification pipeline actually distinguishes: Notice for
// one-line lifecycle events, Warning for rejected-but-expected outcomes
// (expired challenge, replay), Info/Debug for operational detail, and
// AuditErr for a verification failure that should survive log rotation
// with full context, regardless of the configured level.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var w io.Writer
	switch cfg.Output {
	case "stdout":
		w = os.Stdout
	case "stderr", "":
		w = os.Stderr
	default:
		if cfg.EnableRotation {
			w = &lumberjack.Logger{
				Filename:   cfg.Output,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   cfg.Compress,
			}
		} else {
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return nil, fmt.Errorf("log: open %s: %w", cfg.Output, err)
			}
			w = f
		}
	}

	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}, nil
}

func parseLevel(l Level) (zerolog.Level, error) {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel, nil
	case InfoLevel, "":
		return zerolog.InfoLevel, nil
	case WarnLevel:
		return zerolog.WarnLevel, nil
	case ErrorLevel:
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("log: unknown level %q", l)
	}
}

type fieldsKey struct{}

// WithRequestID attaches a request-correlation ID (see httpserver, which
// mints one per request with google/uuid) to ctx for later retrieval by
// FromContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, fieldsKey{}, id)
}

// FromContext returns l with the context's request ID attached, if any.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	id, ok := ctx.Value(fieldsKey{}).(string)
	if !ok || id == "" {
		return l
	}
	return &Logger{zl: l.zl.With().Str("request_id", id).Logger()}
}

// With returns a Logger with an additional structured field attached.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// Notice logs a one-line lifecycle event: server start, config reload,
// replay store swap.
func (l *Logger) Notice(msg string) {
	l.zl.Info().Str("severity", "notice").Msg(msg)
}

// Warning logs an expected-but-noteworthy outcome, typically a rejected
// verification.
func (l *Logger) Warning(msg string) {
	l.zl.Warn().Msg(msg)
}

func (l *Logger) Info(msg string)  { l.zl.Info().Msg(msg) }
func (l *Logger) Debug(msg string) { l.zl.Debug().Msg(msg) }

// AuditErr logs err at error level with its full chain, including any
// stack captured by errors.Internal. Always emitted regardless of the
// configured minimum level, because these are the entries operators need
// when diagnosing a verification outage.
func (l *Logger) AuditErr(msg string, err error) {
	ev := l.zl.WithLevel(zerolog.ErrorLevel).Err(err)
	if stack := moderrors.Stack(err); stack != "" {
		ev = ev.Str("stack", stack)
	}
	ev.Msg(msg)
}
