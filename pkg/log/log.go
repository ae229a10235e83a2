package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogging routes the global logger to a console writer on stderr and sets
// the level by name (trace, debug, info, warn, error). Unknown names fall back
// to info.
func InitLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339Nano})

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// With returns a child logger carrying the component name, for packages that
// want structured fields rather than the printf helpers below.
func With(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

func Error(msg string) {
	log.Error().Msg(msg)
}

func Errorf(format string, a ...interface{}) {
	log.Error().Msgf(format, a...)
}

func Warn(msg string) {
	log.Warn().Msg(msg)
}

func Warnf(format string, a ...interface{}) {
	log.Warn().Msgf(format, a...)
}

func Info(msg string) {
	log.Info().Msg(msg)
}

func Infof(format string, a ...interface{}) {
	log.Info().Msgf(format, a...)
}

func Debug(msg string) {
	log.Debug().Msg(msg)
}

func Debugf(format string, a ...interface{}) {
	log.Debug().Msgf(format, a...)
}

func Tracef(format string, a ...interface{}) {
	log.Trace().Msgf(format, a...)
}

func Fatalf(format string, a ...interface{}) {
	log.Fatal().Msgf(format, a...)
}
