package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Development gets a human readable console
// writer, every other environment writes JSON lines to stdout.
func New(environment string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		return zerolog.New(output).Level(level).With().Timestamp().Str("service", "contracts").Logger()
	}

	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", "contracts").Logger()
}
