package log

import (
	"context"
	"log/slog"
	"os"
	"time"

	"bbscraper/config"

	"github.com/lmittmann/tint"
)

func InitializeDefaultLogger() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      config.GetLogLevel(),
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)
}

func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, config.LoggerCtxKey, logger)
}

func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(config.LoggerCtxKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
