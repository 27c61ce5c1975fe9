package logger

import (
	"log/slog"
	"os"

	"github.com/remitgrid-transfer-core/internal/config"
)

// NewLogger builds the JSON slog logger both binaries share. Unknown level
// strings fall back to info rather than failing startup.
func NewLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
		// Source locations are only worth the log volume when debugging.
		AddSource: level == slog.LevelDebug,
	})

	log := slog.New(handler).With("service", cfg.Application.Name)
	log.Info("logger initialized", "level", level)
	return log
}
