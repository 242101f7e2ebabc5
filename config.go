package signerd

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/reef-chain/signerd/build"
	"github.com/reef-chain/signerd/netparams"
	"github.com/reef-chain/signerd/session"
)

const (
	defaultConfigFilename = "signerd.conf"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "signerd.log"
	defaultDBFilename     = "signer.db"
	defaultLogLevel       = "info"

	// DefaultListenAddr is the address the websocket endpoints are served
	// on. Only the extension running on the same machine is expected to
	// connect, so we bind to localhost by default.
	DefaultListenAddr = "localhost:8935"
)

var (
	// DefaultSignerDir is the default directory where signerd tries to
	// find its configuration file and data.
	DefaultSignerDir = defaultHomeDir()

	// DefaultConfigFile is the default full path of signerd's
	// configuration file.
	DefaultConfigFile = filepath.Join(DefaultSignerDir, defaultConfigFilename)

	defaultDataDir = filepath.Join(DefaultSignerDir, defaultDataDirname)
	defaultLogDir  = filepath.Join(DefaultSignerDir, defaultLogDirname)
)

// Config defines the configuration options for signerd.
//
// See LoadConfig for further details regarding the configuration loading
// and parsing process.
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	SignerDir  string `long:"signerdir" description:"The base directory that contains signerd's data, logs and configuration file"`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"The directory to store signerd's data within"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	MaxLogFiles    int `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int `long:"maxlogfilesize" description:"Maximum logfile size in MB"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	Listen     string `long:"listen" description:"Address to serve the extension websocket endpoints on"`
	Network    string `long:"network" description:"Reef network to target {mainnet, testnet}" choice:"mainnet" choice:"testnet"`
	Prometheus string `long:"prometheus" description:"Address to export Prometheus metrics on (disabled when empty)"`

	MaxPendingRequests int           `long:"maxpendingrequests" description:"Maximum number of outstanding requests of a single kind awaiting a user decision"`
	PasswordTimeout    time.Duration `long:"passwordtimeout" description:"How long a remembered password keeps an account unlocked"`
	SweepInterval      time.Duration `long:"sweepinterval" description:"How often expired account unlocks are proactively relocked (0 disables the sweeper)"`

	// ActiveNetwork is the Reef network resolved from the Network option.
	ActiveNetwork netparams.Network

	// DBPath is the full path of the bbolt database file, derived from
	// DataDir.
	DBPath string
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		SignerDir:          DefaultSignerDir,
		ConfigFile:         DefaultConfigFile,
		DataDir:            defaultDataDir,
		LogDir:             defaultLogDir,
		MaxLogFiles:        build.DefaultMaxLogFiles,
		MaxLogFileSize:     build.DefaultMaxLogFileSize,
		DebugLevel:         defaultLogLevel,
		Listen:             DefaultListenAddr,
		Network:            string(netparams.Mainnet),
		MaxPendingRequests: session.DefaultMaxPendingRequests,
		PasswordTimeout:    session.DefaultPasswordTimeout,
		SweepInterval:      session.DefaultSweepInterval,
	}
}

// LoadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig() (*Config, error) {
	// Pre-parse the command line options to pick up an alternative config
	// file.
	preCfg := DefaultConfig()
	if _, err := flags.Parse(&preCfg); err != nil {
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", build.Version(),
			"commit="+build.Commit)
		os.Exit(0)
	}

	// If the config file path has not been modified by the user, then
	// we'll use the default config file path. However, if the user has
	// modified their signerdir, then we should assume they intend to use
	// the config file within it.
	configFileDir := CleanAndExpandPath(preCfg.SignerDir)
	configFilePath := CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultSignerDir {
		if configFilePath == DefaultConfigFile {
			configFilePath = filepath.Join(
				configFileDir, defaultConfigFilename,
			)
		}
	}

	// Next, load any additional configuration options from the file.
	var configFileError error
	cfg := preCfg
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		if _, ok := err.(*flags.IniError); ok {
			return nil, err
		}

		configFileError = err
	}

	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	cleanCfg, err := ValidateConfig(cfg, usageMessage)
	if err != nil {
		return nil, err
	}

	// Warn about missing config file only after all other configuration
	// is done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		sgnrLog.Warnf("%v", configFileError)
	}

	return cleanCfg, nil
}

// ValidateConfig checks the given configuration to be sane. This makes sure
// no illegal values or combination of values are set. All file system paths
// are normalized. The cleaned up config is returned on success.
func ValidateConfig(cfg Config, usageMessage string) (*Config, error) {
	// If the provided signerd directory is not the default, we'll modify
	// the path to all of the files and directories that will live within
	// it.
	signerDir := CleanAndExpandPath(cfg.SignerDir)
	if signerDir != DefaultSignerDir {
		cfg.DataDir = filepath.Join(signerDir, defaultDataDirname)
		cfg.LogDir = filepath.Join(signerDir, defaultLogDirname)
	}

	// As soon as we're done parsing configuration options, ensure all
	// paths to directories and files are cleaned and expanded before
	// attempting to use them later on.
	cfg.DataDir = CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = CleanAndExpandPath(cfg.LogDir)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w",
			err)
	}

	cfg.DBPath = filepath.Join(cfg.DataDir, defaultDBFilename)

	network, err := netparams.Get(netparams.NetworkID(cfg.Network))
	if err != nil {
		return nil, err
	}
	cfg.ActiveNetwork = network

	if cfg.MaxPendingRequests <= 0 {
		return nil, fmt.Errorf("maxpendingrequests must be positive")
	}
	if cfg.PasswordTimeout <= 0 {
		return nil, fmt.Errorf("passwordtimeout must be positive")
	}

	// Initialize logging at the default logging level.
	err = initLogRotator(
		filepath.Join(cfg.LogDir, defaultLogFilename),
		cfg.MaxLogFileSize, cfg.MaxLogFiles,
	)
	if err != nil {
		return nil, err
	}

	// Parse, validate, and set debug log level(s).
	err = build.ParseAndSetDebugLevels(cfg.DebugLevel, subsystemLoggers)
	if err != nil {
		err = fmt.Errorf("%w\n%s", err, usageMessage)
		_, _ = fmt.Fprintln(os.Stderr, err)
		return nil, err
	}

	return &cfg, nil
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// defaultHomeDir returns the default base directory, ~/.signerd on unix
// style systems.
func defaultHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".signerd"
	}

	return filepath.Join(homeDir, ".signerd")
}
