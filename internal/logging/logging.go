package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// viper keys, bound to flags by the root command
const (
	LevelKey   = "log.level"
	FormatKey  = "log.format"
	NoColorKey = "log.no_color"
)

// InitDefault sets up a console logger before flags and config are parsed.
func InitDefault() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log.Logger
}

// Init configures the global logger from viper. If out is nil, logs go to stderr.
func Init(out io.Writer) {
	if out == nil {
		out = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString(LevelKey)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	switch strings.ToLower(viper.GetString(FormatKey)) {
	case "json":
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	default:
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    viper.GetBool(NoColorKey),
			TimeFormat: time.Kitchen,
		}).With().Timestamp().Logger()
	}

	// requests without a logger in their context still log somewhere
	zerolog.DefaultContextLogger = &log.Logger

	if err != nil {
		log.Warn().Str("level", viper.GetString(LevelKey)).Msg("unknown log level, falling back to info")
	}
}

type correlationKey struct{}

// WithCorrelationID stores the request's correlation ID in ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation ID stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
