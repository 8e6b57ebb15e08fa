package logger

import (
	"os"

	"github.com/quotaguard/rls-gateway/config"
	"github.com/rs/zerolog"
)

// New returns a zerolog.Logger configured for the given environment.
// Development gets a human-readable console writer; anything else gets
// structured JSON on stdout, matching how the service is expected to be
// consumed by a log aggregator in production.
func New(cfg *config.Config) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var log zerolog.Logger
	if cfg.IsDevelopment() {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		log = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return log.With().Str("service", cfg.AppName).Logger()
}
