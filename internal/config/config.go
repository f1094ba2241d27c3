package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andreyvit/docstore"
)

// Config holds all configuration for docscript
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Verbose enables per-operation engine traces at debug level
	Verbose bool `mapstructure:"verbose"`

	// Storage tuning
	NoSync   bool `mapstructure:"no_sync"`
	MmapSize int  `mapstructure:"mmap_size"`
}

// AddFlags registers the configuration flags on cmd and its subcommands.
func AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file path")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Trace every storage operation")
	cmd.PersistentFlags().Bool("no-sync", false, "Skip fsync on commit")
	cmd.PersistentFlags().Int("mmap-size", 0, "Initial mmap size in bytes (0 for the default)")
}

// Load reads configuration from flags, an optional config file and
// DOCSCRIPT_* environment variables.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("DOCSCRIPT")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("verbose", false)
	v.SetDefault("no_sync", false)
	v.SetDefault("mmap_size", 0)
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"log-level":  "log_level",
		"log-format": "log_format",
		"verbose":    "verbose",
		"no-sync":    "no_sync",
		"mmap-size":  "mmap_size",
	}

	for name, key := range flags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(name)
		}
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}

	return nil
}

func validate(cfg *Config) error {
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q, wanted text or json", cfg.LogFormat)
	}
	if cfg.MmapSize < 0 {
		return fmt.Errorf("mmap_size must not be negative, got %d", cfg.MmapSize)
	}
	return nil
}

// DBOptions returns the storage options for databases opened by scripts.
func (cfg *Config) DBOptions() docstore.Options {
	return docstore.Options{
		Verbose:  cfg.Verbose,
		NoSync:   cfg.NoSync,
		MmapSize: cfg.MmapSize,
	}
}

// ConfigureLogger applies the log level and format to logger.
func (cfg *Config) ConfigureLogger(logger *logrus.Logger) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: true,
		})
	}
}
