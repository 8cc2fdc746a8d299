// Package logger wraps zap with the request-scoped fields every service log line carries.
package logger

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ProductionMode  = "production"
	DevelopmentMode = "development"
)

type Logger struct {
	Logger *zap.Logger
	sugar  *zap.SugaredLogger
}

func wrap(z *zap.Logger) *Logger {
	return &Logger{Logger: z, sugar: z.Sugar()}
}

// New builds a JSON logger in production and a colored console logger otherwise.
func New(mode string) *Logger {
	var cfg zap.Config
	switch mode {
	case ProductionMode:
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return wrap(z.With(zap.String("service", "carelink-chat")))
}

func Nop() *Logger {
	return wrap(zap.NewNop())
}

type fieldKey int

const (
	requestIDField fieldKey = iota
	userIDField
)

var fieldNames = map[fieldKey]string{
	requestIDField: "request_id",
	userIDField:    "user_id",
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDField, requestID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDField, userID)
}

// WithContext returns a child logger carrying request_id and user_id when ctx has them.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	var fields []zap.Field
	for _, key := range []fieldKey{requestIDField, userIDField} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, zap.String(fieldNames[key], v))
		}
	}
	if len(fields) == 0 {
		return l
	}
	return wrap(l.Logger.With(fields...))
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return wrap(l.Logger.With(fields...))
}

func (l *Logger) Named(name string) *Logger {
	return wrap(l.Logger.Named(name))
}

var global atomic.Pointer[Logger]

func SetGlobalLogger(l *Logger) {
	global.Store(l)
}

// GetGlobalLogger never returns nil.
func GetGlobalLogger() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return Nop()
}

func (l *Logger) Debugf(template string, args ...any) { l.sugar.Debugf(template, args...) }
func (l *Logger) Infof(template string, args ...any)  { l.sugar.Infof(template, args...) }
func (l *Logger) Warnf(template string, args ...any)  { l.sugar.Warnf(template, args...) }
func (l *Logger) Errorf(template string, args ...any) { l.sugar.Errorf(template, args...) }

func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
