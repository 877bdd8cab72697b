// Package logging generalizes the teacher's logger package: a single
// zap.Logger with a console encoder, package-level convenience
// wrappers, and a Scope() that attaches the tenant/conversation/request
// scoping every pipeline stage logs under.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

func init() {
	Log = New("info")
}

// New builds a zap.Logger at the given level ("debug"|"info"|"warn"|"error").
func New(level string) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		CallerKey:    "caller",
		MessageKey:   "msg",
		LineEnding:   zapcore.DefaultLineEnding,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.CapitalColorLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stdout),
		lvl,
	)
	return zap.New(core, zap.AddCaller())
}

// Scope returns a child logger annotated with request-scoping fields
// shared by every component: tenant, conversation, request id.
func Scope(tenantID, conversationID, requestID string) *zap.Logger {
	fields := make([]zap.Field, 0, 3)
	if tenantID != "" {
		fields = append(fields, zap.String("tenant_id", tenantID))
	}
	if conversationID != "" {
		fields = append(fields, zap.String("conversation_id", conversationID))
	}
	if requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	return Log.With(fields...)
}

func Info(msg string, fields ...zap.Field)  { Log.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Log.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }

func Infof(format string, args ...any)  { Log.Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { Log.Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { Log.Error(fmt.Sprintf(format, args...)) }
func Debugf(format string, args ...any) { Log.Debug(fmt.Sprintf(format, args...)) }
