// Package config loads the collector configuration from command-line flags,
// environment variables and an optional config file, and parses the switch
// inventory file.
package config

import (
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/mutker/nexmon/internal/encoder"
	"codeberg.org/mutker/nexmon/internal/errors"
)

const (
	defaultStateDir = "/var/lib/nexmon/state"
	envPrefix       = "NEXMON"
	configFileEnv   = "NEXMON_CONFIG"
	configFilePath  = "/etc/nexmon.toml"
)

type Config struct {
	InventoryFile string
	OutputFormat  string

	// Command-output source feature flags
	Burst       bool `mapstructure:"burst"`
	PFCWD       bool `mapstructure:"pfcwd"`
	BufferStats bool `mapstructure:"bufferstats"`

	VerifyOnly bool `mapstructure:"verify_only"`
	Verbosity  int  `mapstructure:"verbosity"`

	StateDir        string  `mapstructure:"state_dir"`
	ArchiveDB       string  `mapstructure:"archive_db"`
	LogFile         string  `mapstructure:"log_file"`
	MaxRateHeadroom float64 `mapstructure:"max_rate_headroom"`
}

// CLIEnabled reports whether any command-output feature is requested, which
// is what decides whether the interactive session source runs at all.
func (c *Config) CLIEnabled() bool {
	return c.Burst || c.PFCWD || c.BufferStats
}

// Load parses args (without the program name) into a validated Config.
// Positional arguments: inventory file path and output format. Flags and the
// optional config file fill in the rest.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()
	config := &Config{}

	flags := pflag.NewFlagSet("nexmon", pflag.ContinueOnError)
	flags.Bool("burst", false, "Pull queuing burst-detect stats over the command-output source")
	flags.Bool("pfcwd", false, "Pull PFC watchdog stats over the command-output source")
	flags.Bool("bufferstats", false, "Pull buffer occupancy stats and clear buffer counters")
	flags.BoolP("verify-only", "V", false, "Verify connection and stats pull but do not print output")
	flags.CountP("verbose", "v", "Increase log verbosity (-v warn, -vv info, -vvv debug)")
	flags.String("state-dir", defaultStateDir, "Directory for per-switch counter state files")
	flags.String("archive-db", "", "Optional sqlite database archiving emitted records")
	flags.String("log-file", "", "Rotating log file path (default: log to stderr)")
	flags.Float64("max-rate-headroom", 0, "Plausible-rate ceiling as a multiple of nominal link speed")

	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	positional := flags.Args()
	if len(positional) < 2 {
		return nil, errFactory.WithMessage(ErrMissingArguments,
			"usage: nexmon [flags] <inventory-file> <influxdb-lp|dict>")
	}
	config.InventoryFile = positional[0]
	config.OutputFormat = positional[1]

	v := viper.New()
	v.SetDefault("state_dir", defaultStateDir)
	v.SetDefault("max_rate_headroom", 2.0)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path := configFile(); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != configFilePath {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	// Command line flags override config file values
	bind := map[string]string{
		"burst":             "burst",
		"pfcwd":             "pfcwd",
		"bufferstats":       "bufferstats",
		"verify-only":       "verify_only",
		"verbose":           "verbosity",
		"state-dir":         "state_dir",
		"archive-db":        "archive_db",
		"log-file":          "log_file",
		"max-rate-headroom": "max_rate_headroom",
	}
	flags.Visit(func(f *pflag.Flag) {
		key, ok := bind[f.Name]
		if !ok {
			return
		}
		switch f.Value.Type() {
		case "bool":
			val, err := flags.GetBool(f.Name)
			if err == nil {
				v.Set(key, val)
			}
		case "count":
			val, err := flags.GetCount(f.Name)
			if err == nil {
				v.Set(key, val)
			}
		case "float64":
			val, err := flags.GetFloat64(f.Name)
			if err == nil {
				v.Set(key, val)
			}
		default:
			v.Set(key, f.Value.String())
		}
	})

	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if !encoder.Format(c.OutputFormat).IsValid() {
		return errFactory.WithData(ErrInvalidFormat, c.OutputFormat)
	}
	if c.MaxRateHeadroom <= 0 {
		return errFactory.WithData(ErrInvalidHeadroom, c.MaxRateHeadroom)
	}

	return nil
}

func configFile() string {
	if path := os.Getenv(configFileEnv); path != "" {
		return path
	}

	return configFilePath
}
