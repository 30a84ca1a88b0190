package monitoring

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ronl/business-api/internal/config"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/logger"
)

type zapLogger struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// NewZapLogger builds the process logger. Format "console" selects a
// human-readable encoder; everything else emits JSON.
func NewZapLogger(cfg *config.LogConfig) (logger.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}
	return newZapLogger(cfg.Format, level, zapcore.AddSync(os.Stdout)), nil
}

func newZapLogger(format string, level zap.AtomicLevel, sink zapcore.WriteSyncer) *zapLogger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, sink, level)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("service", constants.ServiceName))
	return &zapLogger{base: base, level: level}
}

// SetLevel changes the minimum level at runtime. It returns false for an unknown level name.
func SetLevel(l logger.Logger, name string) bool {
	zl, ok := l.(*zapLogger)
	if !ok {
		return false
	}
	return zl.level.UnmarshalText([]byte(strings.ToLower(name))) == nil
}

// Sync flushes buffered entries.
func Sync(l logger.Logger) {
	if zl, ok := l.(*zapLogger); ok {
		_ = zl.base.Sync()
	}
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...logger.Field) {
	l.base.Debug(msg, l.convertFields(ctx, fields)...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...logger.Field) {
	l.base.Info(msg, l.convertFields(ctx, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...logger.Field) {
	l.base.Warn(msg, l.convertFields(ctx, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, err error, fields ...logger.Field) {
	l.base.Error(msg, append(l.convertFields(ctx, fields), zap.Error(err))...)
}

func (l *zapLogger) Fatal(ctx context.Context, msg string, err error, fields ...logger.Field) {
	l.base.Fatal(msg, append(l.convertFields(ctx, fields), zap.Error(err))...)
}

func (l *zapLogger) WithFields(fields ...logger.Field) logger.Logger {
	return &zapLogger{base: l.base.With(l.convertFields(context.Background(), fields)...), level: l.level}
}

func (l *zapLogger) WithComponent(component string) logger.Logger {
	return &zapLogger{base: l.base.With(zap.String("component", component)), level: l.level}
}

func (l *zapLogger) convertFields(ctx context.Context, fields []logger.Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)+2)
	if ctx != nil {
		if requestID, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok && requestID != "" {
			zapFields = append(zapFields, zap.String("request_id", requestID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			zapFields = append(zapFields, zap.String("trace_id", sc.TraceID().String()))
		}
	}
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, logger.SanitizeValue(f.Key, f.Value)))
	}
	return zapFields
}
