package build

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
)

// LogWriter is the io.Writer used by the logging backend. It writes to both
// stdout and, if set, the write-end pipe of the log rotator.
type LogWriter struct {
	// RotatorPipe is the write-end pipe for writing to the log rotator. It
	// is written to by the Write method of the LogWriter type. May be nil,
	// in which case only stdout is written to.
	RotatorPipe *io.PipeWriter
}

// Write writes the byte slice to stdout, and the log rotator if present.
func (w *LogWriter) Write(b []byte) (int, error) {
	os.Stdout.Write(b)

	if w.RotatorPipe != nil {
		w.RotatorPipe.Write(b)
	}

	return len(b), nil
}

// NewSubLogger constructs a new subsystem logger from the given sublogger
// generator. If no generator is provided, logging is disabled for the
// subsystem.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	if genSubLogger != nil {
		return genSubLogger(subsystem)
	}

	return btclog.Disabled
}

// SubLoggers is a type that holds a map of subsystem loggers keyed by their
// subsystem name.
type SubLoggers map[string]btclog.Logger

// SupportedSubsystems returns a sorted slice of the registered subsystem
// names.
func (s SubLoggers) SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(s))
	for subsysID := range s {
		subsystems = append(subsystems, subsysID)
	}

	sort.Strings(subsystems)
	return subsystems
}

// SetLogLevel assigns an individual subsystem logger a new log level.
func (s SubLoggers) SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := s[subsystemID]
	if !ok {
		return
	}

	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels assigns all registered subsystem loggers the same new log
// level.
func (s SubLoggers) SetLogLevels(logLevel string) {
	for subsystemID := range s {
		s.SetLogLevel(subsystemID, logLevel)
	}
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. An appropriate error is returned if anything is
// invalid. The debug level is either a single level applied to all
// subsystems, or a comma separated list of subsystem=level pairs.
func ParseAndSetDebugLevels(debugLevel string, loggers SubLoggers) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") &&
		!strings.Contains(debugLevel, "=") {

		// Validate debug log level.
		if _, ok := btclog.LevelFromString(debugLevel); !ok {
			return ErrInvalidDebugLevel(debugLevel)
		}

		loggers.SetLogLevels(debugLevel)
		return nil
	}

	// Split the specified string into subsystem/level pairs and set the
	// levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return ErrInvalidDebugLevel(debugLevel)
		}

		fields := strings.Split(logLevelPair, "=")
		if len(fields) != 2 {
			return ErrInvalidDebugLevel(debugLevel)
		}

		subsysID, logLevel := fields[0], fields[1]

		if _, ok := loggers[subsysID]; !ok {
			return ErrUnknownSubsystem(subsysID)
		}

		if _, ok := btclog.LevelFromString(logLevel); !ok {
			return ErrInvalidDebugLevel(logLevel)
		}

		loggers.SetLogLevel(subsysID, logLevel)
	}

	return nil
}
