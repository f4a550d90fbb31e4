package monitoring

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/pkg/constants"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// zapLogger adapts *zap.Logger to logger.Logger.
type zapLogger struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

var _ logger.Logger = (*zapLogger)(nil)

// NewZapLogger builds a JSON zap logger writing to cfg.OutputPath (stdout when empty).
func NewZapLogger(cfg *config.LogConfig) (logger.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.NewAtomicLevelAt(toZapLevel(logger.ParseLevel(cfg.Level)))

	sink := zapcore.AddSync(os.Stdout)
	if cfg.OutputPath != "" && cfg.OutputPath != "stdout" {
		ws, _, err := zap.Open(cfg.OutputPath)
		if err != nil {
			return nil, err
		}
		sink = ws
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, level)
	return newZapLogger(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)), level), nil
}

func newZapLogger(base *zap.Logger, level zap.AtomicLevel) *zapLogger {
	return &zapLogger{base: base, level: level}
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...logger.Field) {
	l.base.Debug(msg, convertFields(ctx, nil, fields)...)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...logger.Field) {
	l.base.Info(msg, convertFields(ctx, nil, fields)...)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...logger.Field) {
	l.base.Warn(msg, convertFields(ctx, nil, fields)...)
}

func (l *zapLogger) Error(ctx context.Context, msg string, err error, fields ...logger.Field) {
	l.base.Error(msg, convertFields(ctx, err, fields)...)
}

func (l *zapLogger) Fatal(ctx context.Context, msg string, err error, fields ...logger.Field) {
	l.base.Fatal(msg, convertFields(ctx, err, fields)...)
}

func (l *zapLogger) WithFields(fields ...logger.Field) logger.Logger {
	return newZapLogger(l.base.With(convertFields(context.Background(), nil, fields)...), l.level)
}

func (l *zapLogger) WithComponent(component string) logger.Logger {
	return newZapLogger(l.base.With(zap.String("component", component)), l.level)
}

func (l *zapLogger) SetLevel(level constants.LogLevel) {
	l.level.SetLevel(toZapLevel(level))
}

func (l *zapLogger) GetLevel() constants.LogLevel {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return constants.LogLevelDebug
	case zapcore.WarnLevel:
		return constants.LogLevelWarn
	case zapcore.ErrorLevel:
		return constants.LogLevelError
	case zapcore.FatalLevel:
		return constants.LogLevelFatal
	default:
		return constants.LogLevelInfo
	}
}

func toZapLevel(level constants.LogLevel) zapcore.Level {
	switch level {
	case constants.LogLevelDebug:
		return zapcore.DebugLevel
	case constants.LogLevelWarn:
		return zapcore.WarnLevel
	case constants.LogLevelError:
		return zapcore.ErrorLevel
	case constants.LogLevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

var contextKeys = []constants.ContextKey{
	constants.ContextKeyRequestID,
	constants.ContextKeyTraceID,
	constants.ContextKeyPurpose,
	constants.ContextKeyNodeID,
}

func convertFields(ctx context.Context, err error, fields []logger.Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)+len(contextKeys)+1)
	if ctx != nil {
		for _, key := range contextKeys {
			if v, ok := ctx.Value(key).(string); ok && v != "" {
				zapFields = append(zapFields, zap.String(string(key), v))
			}
		}
	}
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, logger.Sanitize(f.Key, f.Value)))
	}
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	return zapFields
}

//Personal.AI order the ending
