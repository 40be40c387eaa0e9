package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured log field.
type Field = zap.Field

// Logger is what every component receives. Structured methods take
// Fields; the *f variants format like fmt.Sprintf.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	Debugf(template string, args ...any)
	Infof(template string, args ...any)
	Warnf(template string, args ...any)
	Errorf(template string, args ...any)
	Fatalf(template string, args ...any)

	// With returns a child logger carrying fields on every entry.
	With(fields ...Field) Logger

	Sync() error
}

// Field constructors, so callers never import zap.
var (
	String   = zap.String
	Int      = zap.Int
	Uint64   = zap.Uint64
	Bool     = zap.Bool
	Duration = zap.Duration
	Time     = zap.Time
	Error    = zap.Error
)

type zapLogger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// New builds the process logger. pretty selects colored console output,
// otherwise entries are JSON. An unknown level keeps the encoder's default
// (debug for pretty, info for JSON).
func New(level string, pretty bool) Logger {
	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if lvl, ok := parseLevel(level); ok {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	z, err := cfg.Build(zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		panic(fmt.Sprintf("logger: build zap config: %v", err))
	}
	return wrap(z)
}

// NewNop returns a logger that discards everything.
func NewNop() Logger { return wrap(zap.NewNop()) }

func wrap(z *zap.Logger) *zapLogger {
	return &zapLogger{Logger: z, sugar: z.Sugar()}
}

// parseLevel accepts debug, info, warn and error only.
func parseLevel(s string) (zapcore.Level, bool) {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil || lvl > zapcore.ErrorLevel {
		return zapcore.InfoLevel, false
	}
	return lvl, true
}

func (l *zapLogger) Debugf(t string, args ...any) { l.sugar.Debugf(t, args...) }
func (l *zapLogger) Infof(t string, args ...any)  { l.sugar.Infof(t, args...) }
func (l *zapLogger) Warnf(t string, args ...any)  { l.sugar.Warnf(t, args...) }
func (l *zapLogger) Errorf(t string, args ...any) { l.sugar.Errorf(t, args...) }
func (l *zapLogger) Fatalf(t string, args ...any) { l.sugar.Fatalf(t, args...) }

func (l *zapLogger) With(fields ...Field) Logger { return wrap(l.Logger.With(fields...)) }
