// Package logger is the logging port of the business API. Code logs through
// Logger with typed Fields; internal/infrastructure/monitoring backs it with zap.
package logger

import (
	"context"
	"strings"
	"time"
)

// Logger writes leveled, structured log lines. The context carries the trace
// and request identifiers that the backend attaches to each line.
type Logger interface {
	Debug(ctx context.Context, message string, fields ...Field)
	Info(ctx context.Context, message string, fields ...Field)
	Warn(ctx context.Context, message string, fields ...Field)
	Error(ctx context.Context, message string, err error, fields ...Field)

	// Fatal logs and terminates the process.
	Fatal(ctx context.Context, message string, err error, fields ...Field)

	WithFields(fields ...Field) Logger

	// WithComponent tags every line with component, e.g. "operaton" or "audit".
	WithComponent(component string) Logger
}

// Field is one key/value pair of a log line. Values under credential or BSN
// keys are masked by the backend, see SanitizeValue.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Error stores err's message under "error". A nil err yields a nil value.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration renders value in time.Duration notation, e.g. "1.5s".
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Substrings of field keys whose values never reach the log in clear text.
var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"authorization",
	"private_key",
	"bsn",
	"burgerservicenummer",
}

// SanitizeValue masks value when key names a credential or a citizen
// identifier. Strings keep their first and last four characters when longer
// than eight; everything else is replaced outright.
func SanitizeValue(key string, value interface{}) interface{} {
	lowered := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if !strings.Contains(lowered, s) {
			continue
		}
		if str, ok := value.(string); ok && str != "" {
			return mask(str)
		}
		return "***REDACTED***"
	}
	return value
}

func mask(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}
