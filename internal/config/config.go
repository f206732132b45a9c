package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/jessevdk/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/picopayments/picopayments-client/internal/channel"
	"github.com/picopayments/picopayments-client/internal/database"
	"github.com/picopayments/picopayments-client/internal/electrum"
	"github.com/picopayments/picopayments-client/internal/logger"
	"github.com/picopayments/picopayments-client/internal/onchain"
	"github.com/picopayments/picopayments-client/internal/utils"
	"github.com/picopayments/picopayments-client/internal/wallet"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

type HubOptions struct {
	Url      string `long:"hub.url" description:"Url of the hub api, defaults to the public hub of the network"`
	Username string `long:"hub.username" description:"Username for basic authentication at the hub"`
	Password string `long:"hub.password" description:"Password for basic authentication at the hub"`
	NoVerify bool   `long:"hub.no-verify" description:"Disables verification of the hub tls certificate"`
}

type ChainOptions struct {
	Backend     string            `long:"chain.backend" description:"Source of chain data (hub, esplora, electrum)"`
	Esplora     []string          `long:"chain.esplora" description:"Esplora api url, can be given multiple times"`
	Electrum    *electrum.Options `group:"Electrum Options"`
	HubFallback bool              `long:"chain.hub-fallback" description:"Fall back to the hub if no other chain backend is reachable"`
	Clearance   uint32            `long:"chain.clearance" description:"Safety margin in blocks subtracted from the deposit expiry when computing its ttl"`
}

type Config struct {
	DataDir string `short:"d" long:"datadir" description:"Data directory of picopayments"`

	ConfigFile string `short:"c" long:"configfile" description:"Path to configuration file"`

	LogFile    string `short:"l" long:"logfile" description:"Path to the log file"`
	LogLevel   string `long:"loglevel" description:"Log level (fatal, error, warn, info, debug, silly)"`
	LogMaxSize int    `long:"logmaxsize" description:"Maximum size of the log file in megabytes before it gets rotated"`
	LogMaxAge  int    `long:"logmaxage" description:"Maximum age of old log files in days before they get deleted"`

	Log logger.Options

	Network string `long:"network" description:"Network to use (mainnet, testnet, regtest)"`
	Wallet  string `long:"wallet" description:"Path to the wallet key file"`

	Hub      *HubOptions        `group:"Hub Options"`
	Chain    *ChainOptions      `group:"Chain Options"`
	Database *database.Database `group:"Database Options"`
}

// ParsedNetwork returns the network settings of the configured network.
func (c *Config) ParsedNetwork() (*mpc.Network, error) {
	return mpc.ParseChain(c.Network)
}

// LoadConfig parses the global options out of args, applies the config file
// and returns the arguments it did not understand.
func LoadConfig(args []string) (*Config, []string, error) {
	dataDir, err := utils.GetDefaultDataDir()
	if err != nil {
		return nil, nil, err
	}

	cfg := Config{
		DataDir: dataDir,

		LogLevel:   "info",
		LogMaxSize: 5,
		LogMaxAge:  30,

		Network: "mainnet",

		Hub: &HubOptions{},
		Chain: &ChainOptions{
			Backend:   string(onchain.BackendHub),
			Electrum:  &electrum.Options{},
			Clearance: channel.DefaultClearance,
		},
		Database: &database.Database{},
	}

	parser := flags.NewParser(&cfg, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, nil, fmt.Errorf("could not parse arguments: %w", err)
	}

	cfg.DataDir = utils.ExpandHomeDir(cfg.DataDir)
	cfg.ConfigFile = utils.ExpandDefaultPath(cfg.DataDir, cfg.ConfigFile, "picopayments.toml")

	if cfg.ConfigFile != "" && utils.FileExists(cfg.ConfigFile) {
		if _, err := toml.DecodeFile(cfg.ConfigFile, &cfg); err != nil {
			return nil, nil, fmt.Errorf("could not read config file: %w", err)
		}
	}

	// parse a second time to ensure cli flags go over config values
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, fmt.Errorf("could not parse arguments: %w", err)
	}

	network, err := cfg.ParsedNetwork()
	if err != nil {
		return nil, nil, err
	}
	if _, err := onchain.ParseBackend(cfg.Chain.Backend); err != nil {
		return nil, nil, err
	}
	if cfg.Chain.Backend == string(onchain.BackendEsplora) && len(cfg.Chain.Esplora) == 0 {
		return nil, nil, errors.New("esplora backend requires at least one esplora url")
	}

	if cfg.Hub.Url == "" {
		cfg.Hub.Url = network.DefaultHubUrl
	}

	if err := createDirIfNotExists(cfg.DataDir); err != nil {
		return nil, nil, err
	}

	cfg.LogFile = utils.ExpandDefaultPath(cfg.DataDir, utils.ExpandHomeDir(cfg.LogFile), "picopayments.log")
	cfg.Log = logger.Options{
		Level: cfg.LogLevel,
		Logger: &lumberjack.Logger{
			Filename: cfg.LogFile,
			MaxAge:   cfg.LogMaxAge,
			MaxSize:  cfg.LogMaxSize,
		},
	}
	cfg.Database.Path = utils.ExpandDefaultPath(cfg.DataDir, utils.ExpandHomeDir(cfg.Database.Path), network.Name+".db")
	cfg.Wallet = utils.ExpandHomeDir(cfg.Wallet)
	if cfg.Wallet == "" {
		cfg.Wallet = wallet.DefaultPath(cfg.DataDir, network)
	}

	return &cfg, rest, nil
}

func createDirIfNotExists(dir string) error {
	if !utils.FileExists(dir) {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("could not create directory: %w", err)
		}
	}
	return nil
}
