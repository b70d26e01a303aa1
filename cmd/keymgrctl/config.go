// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btckeymgr/internal/cfgutil"
	"github.com/btcsuite/btckeymgr/keycache"
	"github.com/btcsuite/btckeymgr/keymgr"
	"github.com/btcsuite/btckeymgr/netparams"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "keymgrctl.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "keymgrctl.log"
	defaultNetwork        = "mainnet"
	defaultScheme         = "bip44"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
)

var (
	keymgrctlHomeDir  = btcutil.AppDataDir("keymgrctl", false)
	defaultConfigFile = filepath.Join(keymgrctlHomeDir, defaultConfigFilename)
	defaultDataDir    = keymgrctlHomeDir
)

type config struct {
	// General application behavior
	ConfigFile     *cfgutil.ExplicitString `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir        *cfgutil.ExplicitString `short:"b" long:"datadir" description:"Directory to store the key cache"`
	LogDir         string                  `long:"logdir" description:"Directory to log output (default: <datadir>/logs)"`
	MaxLogFiles    int                     `long:"maxlogfiles" description:"Maximum rolled logfiles to keep"`
	MaxLogFileSize int                     `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	DebugLevel     string                  `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	// Wallet options
	Network     string `short:"n" long:"network" description:"Network profile to use"`
	Scheme      string `long:"scheme" description:"Derivation scheme {bip32, bip44, bip49}"`
	Account     uint32 `long:"account" description:"Account number below the purpose and coin type"`
	GapLimit    int    `long:"gaplimit" description:"Unused addresses kept ahead of the last used one"`
	PublicOnly  bool   `long:"publiconly" description:"Never write private keys to the key cache"`
	EncryptKeys bool   `long:"encryptkeys" description:"Seal cached private keys with a passphrase"`

	// Transaction options
	FeeRate *cfgutil.FeeRateFlag `long:"feerate" description:"Fee rate used when a request carries none"`
	MaxFee  *cfgutil.AmountFlag  `long:"maxfee" description:"Refuse to build transactions paying more than this fee (0 disables the cap)"`

	net    *netparams.Params
	scheme keymgr.Scheme
}

// defaultConfig returns the configuration used before any option is parsed.
func defaultConfig() *config {
	return &config{
		ConfigFile:     cfgutil.NewExplicitString(defaultConfigFile),
		DataDir:        cfgutil.NewExplicitString(defaultDataDir),
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		DebugLevel:     defaultLogLevel,
		Network:        defaultNetwork,
		Scheme:         defaultScheme,
		GapLimit:       keymgr.DefaultGapLimit,
		FeeRate:        cfgutil.NewFeeRateFlag(1),
		MaxFee:         cfgutil.NewAmountFlag(0),
	}
}

// preConfig holds the options needed to locate the configuration file.
type preConfig struct {
	ConfigFile *cfgutil.ExplicitString `short:"C" long:"configfile"`
	DataDir    *cfgutil.ExplicitString `short:"b" long:"datadir"`
}

// configFilePath returns the configuration file to read and whether it was
// named explicitly. A data directory passed on the command line moves the
// default file along with it.
func configFilePath(args []string) (string, bool, error) {
	pre := preConfig{
		ConfigFile: cfgutil.NewExplicitString(defaultConfigFile),
		DataDir:    cfgutil.NewExplicitString(defaultDataDir),
	}
	parser := flags.NewParser(&pre, flags.IgnoreUnknown|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		return "", false, err
	}

	if !pre.ConfigFile.ExplicitlySet() && pre.DataDir.ExplicitlySet() {
		return filepath.Join(
			cfgutil.CleanAndExpandPath(pre.DataDir.Value),
			defaultConfigFilename,
		), false, nil
	}

	return cfgutil.CleanAndExpandPath(pre.ConfigFile.Value),
		pre.ConfigFile.ExplicitlySet(), nil
}

// loadConfigFile applies the options of the configuration file to the
// parser's data. Only a missing file that was named explicitly is an error.
func loadConfigFile(parser *flags.Parser, args []string) error {
	path, explicit, err := configFilePath(args)
	if err != nil {
		return err
	}

	exists, err := cfgutil.FileExists(path)
	if err != nil {
		return err
	}
	if !exists {
		if explicit {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return nil
	}

	log.Debugf("Reading config file %s", path)

	return flags.NewIniParser(parser).ParseFile(path)
}

// validate checks the parsed options and fills the derived fields.
func (c *config) validate() error {
	var err error
	c.net, err = netparams.ByName(c.Network)
	if err != nil {
		return fmt.Errorf("%w (known networks: %s)", err,
			strings.Join(netparams.Names(), ", "))
	}

	c.scheme, err = keymgr.ParseScheme(c.Scheme)
	if err != nil {
		return err
	}

	if c.GapLimit < 1 {
		return fmt.Errorf("gap limit must be positive, not %d",
			c.GapLimit)
	}
	if c.MaxLogFileSize < 1 {
		return fmt.Errorf("max log file size must be positive, not %d",
			c.MaxLogFileSize)
	}
	if c.MaxFee.Amount < 0 {
		return fmt.Errorf("negative max fee %v", c.MaxFee.Amount)
	}

	c.DataDir.Value = cfgutil.CleanAndExpandPath(c.DataDir.Value)
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.DataDir.Value, defaultLogDirname)
	}
	c.LogDir = cfgutil.CleanAndExpandPath(c.LogDir)

	return nil
}

// cacheDir is the directory holding the key cache of the selected network.
func (c *config) cacheDir() string {
	return filepath.Join(c.DataDir.Value, c.net.Name)
}

// accountDescriptor identifies the key tree a cache was created for.
func (c *config) accountDescriptor() string {
	return fmt.Sprintf("%s/%s/%d", c.net.Name, c.scheme, c.Account)
}

// setup validates the options and starts logging. Every command calls it
// before doing any work.
func (c *config) setup() error {
	if err := c.validate(); err != nil {
		return err
	}

	logFile := filepath.Join(c.LogDir, c.net.Name, defaultLogFilename)
	err := logWriter.InitLogRotator(
		logFile, int64(c.MaxLogFileSize*1024), c.MaxLogFiles,
	)
	if err != nil {
		return err
	}

	if err := parseAndSetDebugLevels(c.DebugLevel); err != nil {
		return err
	}

	log.Debugf("Using network %s, scheme %s, account %d", c.net.Name,
		c.scheme, c.Account)

	return nil
}

// cacheOptions returns the key cache options selected by the flags. The
// passphrase is read when private keys are to be sealed.
func (c *config) cacheOptions() ([]keycache.Option, error) {
	var opts []keycache.Option
	if c.PublicOnly {
		opts = append(opts, keycache.WithPublicOnly())
	}
	if c.EncryptKeys && !c.PublicOnly {
		passphrase, err := readPassphrase()
		if err != nil {
			return nil, err
		}
		opts = append(opts, keycache.WithPassphrase([]byte(passphrase)))
	}

	return opts, nil
}

// usageError reports whether err is a help request of the flags package.
func usageError(err error) bool {
	var e *flags.Error
	return errors.As(err, &e) && e.Type == flags.ErrHelp
}
