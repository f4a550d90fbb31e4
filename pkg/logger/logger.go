// Package logger is the logging facade shared by every clusterkeys component.
// Production code plugs in the zap backend from internal/infrastructure/monitoring;
// the JSON writer in this package serves tools and tests.
package logger

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/clusterkeys/pkg/constants"
)

// ================================================================================
// Logger Interface
// ================================================================================

// Logger 结构化日志接口
// Logger is the structured logging interface. Error and Fatal take the error
// separately so every backend records it under the same "error" key.
type Logger interface {
	Debug(ctx context.Context, message string, fields ...Field)
	Info(ctx context.Context, message string, fields ...Field)
	Warn(ctx context.Context, message string, fields ...Field)
	Error(ctx context.Context, message string, err error, fields ...Field)

	// Fatal logs and terminates the process.
	Fatal(ctx context.Context, message string, err error, fields ...Field)

	// WithFields 返回附加固定字段的子日志器
	WithFields(fields ...Field) Logger

	// WithComponent 返回带组件名的子日志器
	WithComponent(component string) Logger

	// SetLevel changes the level of this logger and of every logger derived
	// from the same root.
	SetLevel(level constants.LogLevel)
	GetLevel() constants.LogLevel
}

// ================================================================================
// Fields
// ================================================================================

// Field is one structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field        { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field    { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field          { return Field{Key: key, Value: value} }
func Any(key string, value interface{}) Field    { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d.String()} }
func Time(key string, t time.Time) Field         { return Field{Key: key, Value: t.UTC().Format(time.RFC3339)} }

// Err records err under "error". A nil error yields a nil value.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// ================================================================================
// Levels
// ================================================================================

var levelOrder = map[constants.LogLevel]int{
	constants.LogLevelDebug: 0,
	constants.LogLevelInfo:  1,
	constants.LogLevelWarn:  2,
	constants.LogLevelError: 3,
	constants.LogLevelFatal: 4,
}

// rank orders levels by severity; unknown levels rank as info.
func rank(level constants.LogLevel) int {
	if r, ok := levelOrder[level]; ok {
		return r
	}
	return levelOrder[constants.LogLevelInfo]
}

// ParseLevel maps a config value such as "debug" or "WARNING" to a level.
// Anything unrecognised is info.
func ParseLevel(level string) constants.LogLevel {
	l := strings.ToLower(strings.TrimSpace(level))
	if l == "warning" {
		return constants.LogLevelWarn
	}
	if _, ok := levelOrder[constants.LogLevel(l)]; ok {
		return constants.LogLevel(l)
	}
	return constants.LogLevelInfo
}

// ================================================================================
// Redaction
// ================================================================================

// redactedKeys are substrings of field names whose values never reach a log line
// in clear.
var redactedKeys = []string{"password", "secret", "token", "authorization", "key_material"}

// Sanitize returns value as it may be logged under key. Byte slices are always
// withheld since they may carry key material.
func Sanitize(key string, value interface{}) interface{} {
	if b, ok := value.([]byte); ok {
		return "[" + strconv.Itoa(len(b)) + " bytes withheld]"
	}
	lower := strings.ToLower(key)
	for _, k := range redactedKeys {
		if !strings.Contains(lower, k) {
			continue
		}
		if s, ok := value.(string); ok && len(s) > 8 {
			return s[:4] + "***" + s[len(s)-4:]
		}
		return "***"
	}
	return value
}

//Personal.AI order the ending
