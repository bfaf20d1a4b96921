package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AngHelll/AutomationFrameworkP/config"
)

// InitializeDefaultLogger sets the process wide default logger. If logFile
// is non empty, log lines additionally go to a size rotated file.
func InitializeDefaultLogger(logFile string) {
	var w io.Writer = os.Stdout
	if logFile != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    20, // MB
			MaxBackups: 3,
		})
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: config.GetLogLevel()}))
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
