package signerd

import (
	"github.com/btcsuite/btclog"

	"github.com/reef-chain/signerd/build"
	"github.com/reef-chain/signerd/keystore"
	"github.com/reef-chain/signerd/monitoring"
	"github.com/reef-chain/signerd/session"
	"github.com/reef-chain/signerd/signal"
	"github.com/reef-chain/signerd/signerdb"
)

// Loggers per subsystem. A single backend logger is created and all subsystem
// loggers created from it will write to the backend. When adding new
// subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
var (
	logWriter = &build.LogWriter{}

	// backendLog is the logging backend used to create all subsystem
	// loggers.
	backendLog = btclog.NewBackend(logWriter)

	// logRotator is one of the logging outputs. It should be closed on
	// application shutdown.
	logRotator = build.NewRotatingLogWriter()

	sgnrLog = build.NewSubLogger("SGNR", backendLog.Logger)
	srvrLog = build.NewSubLogger("SRVR", backendLog.Logger)
	sessLog = build.NewSubLogger("SESS", backendLog.Logger)
	keysLog = build.NewSubLogger("KEYS", backendLog.Logger)
	sgdbLog = build.NewSubLogger("SGDB", backendLog.Logger)
	promLog = build.NewSubLogger("PROM", backendLog.Logger)
	sgnlLog = build.NewSubLogger("SGNL", backendLog.Logger)
)

// Initialize package-global logger variables.
func init() {
	session.UseLogger(sessLog)
	keystore.UseLogger(keysLog)
	signerdb.UseLogger(sgdbLog)
	monitoring.UseLogger(promLog)
	signal.UseLogger(sgnlLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = build.SubLoggers{
	"SGNR": sgnrLog,
	"SRVR": srvrLog,
	"SESS": sessLog,
	"KEYS": keysLog,
	"SGDB": sgdbLog,
	"PROM": promLog,
	"SGNL": sgnlLog,
}

// initLogRotator initializes the logging rotator to write logs to logFile and
// create roll files in the same directory. It must be called before the
// package-global log rotator variables are used.
func initLogRotator(logFile string, maxLogFileSize, maxLogFiles int) error {
	err := logRotator.InitLogRotator(logFile, maxLogFileSize, maxLogFiles)
	if err != nil {
		return err
	}

	logWriter.RotatorPipe = logRotator.Pipe()

	return nil
}
