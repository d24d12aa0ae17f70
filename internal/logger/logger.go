package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/zhirschtritt/deals/internal/config"
)

func New(cfg *config.Config) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg)
}

// NewWithWriter builds the process logger: JSON for machines, tint-coloured
// text for a terminal.
func NewWithWriter(w io.Writer, cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	if cfg.LogFormat == config.LogFormatText {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		})
	}

	return slog.New(handler)
}
