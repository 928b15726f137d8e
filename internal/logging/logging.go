// Package logging contains helpers for setting up ldlog loggers and for logging HTTP requests.
package logging

import (
	"log"
	"os"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// MakeDefaultLoggers returns loggers that write to standard error at Info level and above.
func MakeDefaultLoggers() ldlog.Loggers {
	return MakeLoggers(ldlog.Info)
}

// MakeLoggers returns loggers that write timestamped output to standard error, ignoring anything below
// the minimum level.
func MakeLoggers(minLevel ldlog.LogLevel) ldlog.Loggers {
	loggers := ldlog.Loggers{}
	loggers.SetBaseLogger(log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds))
	loggers.SetMinLevel(minLevel)
	return loggers
}
