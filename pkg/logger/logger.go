package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stagepay/pkg/config"
	"stagepay/pkg/trace"
)

// NewLogger builds the zap logger shared by every binary. CONFIG_ENV=local
// gets the console encoder; LOG_LEVEL overrides the level.
func NewLogger() *zap.Logger {
	l, err := build(config.GetConfigEnv(), config.GetEnv("LOG_LEVEL", ""))
	if err != nil {
		panic(err)
	}
	return l
}

func build(env, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}
	return cfg.Build(zap.Fields(zap.String("service", "stagepay")))
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}
