package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/clusterkeys/pkg/constants"
)

// LogEntry is one line written by the JSON logger.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	SpanID    string                 `json:"span_id,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

// contextKeys are copied from the request context into every entry.
var contextKeys = []constants.ContextKey{
	constants.ContextKeyRequestID,
	constants.ContextKeyPurpose,
	constants.ContextKeyNodeID,
}

// sink is shared by a root logger and everything derived from it.
type sink struct {
	mu    sync.Mutex
	out   io.Writer
	level atomic.Value // constants.LogLevel
}

type jsonLogger struct {
	sink      *sink
	component string
	fields    []Field
}

// NewLogger writes one JSON object per line to out (stdout when nil).
func NewLogger(level constants.LogLevel, out io.Writer) Logger {
	if out == nil {
		out = os.Stdout
	}
	s := &sink{out: out}
	s.level.Store(level)
	return &jsonLogger{sink: s}
}

// NewDefaultLogger logs at info level to stdout.
func NewDefaultLogger() Logger {
	return NewLogger(constants.LogLevelInfo, os.Stdout)
}

func (l *jsonLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, constants.LogLevelDebug, msg, fields)
}

func (l *jsonLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, constants.LogLevelInfo, msg, fields)
}

func (l *jsonLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, constants.LogLevelWarn, msg, fields)
}

func (l *jsonLogger) Error(ctx context.Context, msg string, err error, fields ...Field) {
	if err != nil {
		fields = append(fields, Err(err))
	}
	l.write(ctx, constants.LogLevelError, msg, fields)
}

// Fatal is written whatever the level, then the process exits.
func (l *jsonLogger) Fatal(ctx context.Context, msg string, err error, fields ...Field) {
	if err != nil {
		fields = append(fields, Err(err))
	}
	l.write(ctx, constants.LogLevelFatal, msg, fields)
	os.Exit(1)
}

func (l *jsonLogger) WithFields(fields ...Field) Logger {
	return l.derive(l.component, fields)
}

func (l *jsonLogger) WithComponent(component string) Logger {
	return l.derive(component, nil)
}

func (l *jsonLogger) derive(component string, extra []Field) *jsonLogger {
	fields := make([]Field, 0, len(l.fields)+len(extra))
	fields = append(fields, l.fields...)
	fields = append(fields, extra...)
	return &jsonLogger{sink: l.sink, component: component, fields: fields}
}

func (l *jsonLogger) SetLevel(level constants.LogLevel) { l.sink.level.Store(level) }

func (l *jsonLogger) GetLevel() constants.LogLevel {
	return l.sink.level.Load().(constants.LogLevel)
}

func (l *jsonLogger) write(ctx context.Context, level constants.LogLevel, msg string, fields []Field) {
	if level != constants.LogLevelFatal && rank(level) < rank(l.GetLevel()) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     strings.ToUpper(string(level)),
		Component: l.component,
		Message:   msg,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
	}
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			entry.TraceID = sc.TraceID().String()
			entry.SpanID = sc.SpanID().String()
		}
		for _, k := range contextKeys {
			if v := ctx.Value(k); v != nil {
				entry.Fields[string(k)] = v
			}
		}
	}
	if rank(level) >= rank(constants.LogLevelError) {
		// skip write and Error/Fatal
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}
	for _, f := range l.fields {
		entry.Fields[f.Key] = Sanitize(f.Key, f.Value)
	}
	for _, f := range fields {
		entry.Fields[f.Key] = Sanitize(f.Key, f.Value)
	}

	line, err := json.Marshal(entry)
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if err != nil {
		fmt.Fprintf(l.sink.out, "%s %s %s (unencodable fields: %v)\n", entry.Timestamp, entry.Level, msg, err)
		return
	}
	l.sink.out.Write(append(line, '\n'))
}

// ================================================================================
// Slow operation logging
// ================================================================================

// PerformanceLogger warns about operations slower than a threshold and records
// the rest at debug level.
type PerformanceLogger struct {
	log       Logger
	threshold time.Duration
}

// NewPerformanceLogger 创建慢操作日志器，threshold <= 0 时默认 1s
func NewPerformanceLogger(log Logger, threshold time.Duration) *PerformanceLogger {
	if threshold <= 0 {
		threshold = time.Second
	}
	return &PerformanceLogger{log: log.WithComponent("performance"), threshold: threshold}
}

// StartOperation starts timing operation. Call the returned func when it ends.
func (p *PerformanceLogger) StartOperation(ctx context.Context, operation string) func(...Field) {
	start := time.Now()
	return func(fields ...Field) {
		elapsed := time.Since(start)
		fields = append([]Field{
			String("operation", operation),
			Int64("duration_ms", elapsed.Milliseconds()),
		}, fields...)
		if elapsed > p.threshold {
			p.log.Warn(ctx, "Slow operation", fields...)
			return
		}
		p.log.Debug(ctx, "Operation completed", fields...)
	}
}
