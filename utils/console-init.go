package utils

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/logrusorgru/aurora"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// ConsoleInit configures the global zerolog logger and returns a logger
// tagged with the application name. With jsonLogs set, events are written
// as JSON lines to stderr, otherwise a human-readable console writer is used.
func ConsoleInit(name string, jsonLogs bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if jsonLogs {
		zlog.Logger = zerolog.New(os.Stderr).
			With().Timestamp().Logger().
			Hook(LineInfoHook{})
	} else {
		zlog.Logger = zlog.
			Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "02/01 15:04:05"}).
			Hook(LineInfoHook{})
	}

	if name == "" {
		return zlog.Logger
	}
	return zlog.With().Str("app", name).Logger()
}

// SetVerbosity maps a -v style flag onto the global zerolog level.
func SetVerbosity(verbose bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Fatalf prints an error to stderr and exits, for failures that happen
// before the logger is ready.
func Fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", aurora.Red("ERR"), fmt.Sprintf(format, args...))
	os.Exit(1)
}

type LineInfoHook struct{}

func (h LineInfoHook) Run(e *zerolog.Event, l zerolog.Level, msg string) {
	if l >= zerolog.InfoLevel {
		_, file, line, ok := runtime.Caller(3)
		if ok {
			if idx := strings.Index(file, "scribe-agents/"); idx >= 0 {
				file = file[idx+len("scribe-agents/"):]
			}
			e.Str("line", fmt.Sprintf("%s:%d", file, line))
		}
	}
}
