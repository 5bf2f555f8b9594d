package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the process-wide compiler logger.
var Logger zerolog.Logger

func init() {
	level := zerolog.InfoLevel
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		if parsed, err := zerolog.ParseLevel(envLevel); err == nil {
			level = parsed
		}
	}

	zerolog.SetGlobalLevel(level)
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Configure replaces Logger. format is "json" or "console".
func Configure(level, format string) error {
	return ConfigureWriter(level, format, os.Stderr)
}

func ConfigureWriter(level, format string, w io.Writer) error {
	if level == "" {
		level = "info"
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	switch format {
	case "", "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	zerolog.SetGlobalLevel(parsed)
	Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}
