// Package logger configures the global zerolog logger for the application
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// Flags are the command line level overrides. The first set flag wins in
// the order debug, trace, info.
type Flags struct {
	Debug bool
	Trace bool
	Info  bool
}

// Level picks the log level for an environment, applying flag overrides.
func Level(environment string, flags Flags) zerolog.Level {
	var logLevel zerolog.Level
	switch environment {
	case "dev", "test":
		logLevel = zerolog.TraceLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	switch {
	case flags.Debug:
		logLevel = zerolog.DebugLevel
	case flags.Trace:
		logLevel = zerolog.TraceLevel
	case flags.Info:
		logLevel = zerolog.InfoLevel
	}
	return logLevel
}

// Init sets up the global logger with console output on stderr.
// Example usage:
//
//	logger.Init(cfg.Environment, logger.Flags{Debug: debug}) <- inside the cobra command
func Init(environment string, flags Flags) {
	InitWithWriter(os.Stderr, environment, flags)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(w io.Writer, environment string, flags Flags) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Caller().Logger()

	environment = strings.ToLower(environment)
	if environment == "" {
		environment = "prod"
	}

	logLevel := Level(environment, flags)
	zerolog.SetGlobalLevel(logLevel)

	switch environment {
	case "dev", "test":
		log.Info().Str("environment", environment).Msg("Development/Test environment detected - enabling all log levels")
	case "prod":
		log.Info().Str("environment", environment).Msg("Production environment detected - enabling info level and above")
	default:
		log.Warn().Str("environment", environment).Msg("Unknown environment - defaulting to production log level (info and above)")
	}
	log.Info().Str("level", logLevel.String()).Msg("log level set")
}
