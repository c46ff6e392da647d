package logger

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu         sync.RWMutex
	baseLogger *zap.Logger
	sugar      *zap.SugaredLogger
)

// Initialize sets up the global logger with the specified level and format ("json" or "console")
func Initialize(level, format string) {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var cfg zap.Config
	if strings.ToLower(format) == "json" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	Set(l)
}

// Set replaces the global logger.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	baseLogger = l
	sugar = l.Sugar()
}

// Get returns the default sugared logger
func Get() *zap.SugaredLogger {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s == nil {
		Initialize("info", "console")
		return Get()
	}
	return s
}

// Zap returns the underlying structured logger for libraries that want one.
func Zap() *zap.Logger {
	Get()
	mu.RLock()
	defer mu.RUnlock()
	return baseLogger
}

// Sync flushes buffered entries.
func Sync() {
	_ = Zap().Sync()
}

func Debug(msg string, args ...any) {
	Get().Debugw(msg, args...)
}

func Info(msg string, args ...any) {
	Get().Infow(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warnw(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Errorw(msg, args...)
}

type requestIDKey struct{}

// ContextWithRequestID stores a correlation id picked up by the *Context helpers.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func fromContext(ctx context.Context) *zap.SugaredLogger {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return Get().With("request_id", id)
	}
	return Get()
}

// InfoContext logs an info message with the request id from ctx
func InfoContext(ctx context.Context, msg string, args ...any) {
	fromContext(ctx).Infow(msg, args...)
}

// ErrorContext logs an error message with the request id from ctx
func ErrorContext(ctx context.Context, msg string, args ...any) {
	fromContext(ctx).Errorw(msg, args...)
}

// WithMethod returns a logger with method name attached
func WithMethod(methodName string) *zap.SugaredLogger {
	return Get().With("method", methodName)
}

// WithService returns a logger with service name attached
func WithService(serviceName string) *zap.SugaredLogger {
	return Get().With("service", serviceName)
}

// EnterMethod logs method entry (process tracking)
func EnterMethod(methodName string, args ...any) {
	allArgs := append([]any{"method", methodName, "event", "enter"}, args...)
	Get().Debugw("→ Method entered", allArgs...)
}

// ExitMethod logs method exit (process tracking)
func ExitMethod(methodName string, args ...any) {
	allArgs := append([]any{"method", methodName, "event", "exit"}, args...)
	Get().Debugw("← Method exited", allArgs...)
}

// ExitMethodWithError logs method exit with error. Expected workflow
// rejections are logged at warn, everything else at error.
func ExitMethodWithError(methodName string, err error, args ...any) {
	allArgs := append([]any{"method", methodName, "event", "exit", "error", err}, args...)
	if isExpected(err) {
		Get().Warnw("← Method exited with error", allArgs...)
		return
	}
	Get().Errorw("← Method exited with error", allArgs...)
}

// ExpectedError is implemented by errors that describe a refused operation
// rather than a fault.
type ExpectedError interface {
	Expected() bool
}

func isExpected(err error) bool {
	var e ExpectedError
	return errors.As(err, &e) && e.Expected()
}

// DatabaseCall logs database operation (debug log for external resources)
func DatabaseCall(operation, query string, args ...any) {
	allArgs := append([]any{"operation", operation, "query", query}, args...)
	Get().Debugw("→ Database call", allArgs...)
}

// DatabaseResult logs database operation result (debug log for external resources)
func DatabaseResult(operation string, rowsAffected int64, err error, args ...any) {
	allArgs := append([]any{"operation", operation, "rows_affected", rowsAffected}, args...)
	if err != nil {
		allArgs = append(allArgs, "error", err)
		Get().Errorw("← Database call failed", allArgs...)
	} else {
		Get().Debugw("← Database call succeeded", allArgs...)
	}
}

// ExternalServiceCall logs external service call (debug log for external resources)
func ExternalServiceCall(service, operation string, args ...any) {
	allArgs := append([]any{"service", service, "operation", operation}, args...)
	Get().Debugw("→ External service call", allArgs...)
}

// ExternalServiceResult logs external service result (debug log for external resources)
func ExternalServiceResult(service, operation string, err error, args ...any) {
	allArgs := append([]any{"service", service, "operation", operation}, args...)
	if err != nil {
		allArgs = append(allArgs, "error", err)
		Get().Errorw("← External service call failed", allArgs...)
	} else {
		Get().Debugw("← External service call succeeded", allArgs...)
	}
}
