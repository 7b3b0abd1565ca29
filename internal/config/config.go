// Package config provides configuration management for rsnap using Viper.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/thoreinstein/rsnap/internal/paths"
	"github.com/thoreinstein/rsnap/internal/retention"
	"github.com/thoreinstein/rsnap/internal/transfer"
)

// Config represents the top-level configuration structure.
type Config struct {
	Version   int            `mapstructure:"version" yaml:"version"`
	Target    Target         `mapstructure:"target" yaml:"target"`
	Includes  []string       `mapstructure:"includes" yaml:"includes"`
	Excludes  []string       `mapstructure:"excludes" yaml:"excludes"`
	Rsync     Rsync          `mapstructure:"rsync" yaml:"rsync"`
	Retention RetentionRules `mapstructure:"retention" yaml:"retention"`
	Schedule  string         `mapstructure:"schedule" yaml:"schedule"`
}

// Target locates the backup destination root, locally or over ssh.
type Target struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Host          string `mapstructure:"host" yaml:"host"`
	User          string `mapstructure:"user" yaml:"user"`
	Port          int    `mapstructure:"port" yaml:"port"`
	SSHConfigFile string `mapstructure:"ssh_config_file" yaml:"ssh_config_file"`
	SSHKeyFile    string `mapstructure:"ssh_key_file" yaml:"ssh_key_file"`
	SSHKnownHosts string `mapstructure:"ssh_known_hosts_file" yaml:"ssh_known_hosts_file"`
}

// IsRemote reports whether the target lives on another host.
func (t Target) IsRemote() bool {
	return t.Host != ""
}

// Rsync holds transfer-mechanism settings.
type Rsync struct {
	Binary         string `mapstructure:"binary" yaml:"binary"`
	SSHBinary      string `mapstructure:"ssh_binary" yaml:"ssh_binary"`
	ACLs           bool   `mapstructure:"acls" yaml:"acls"`
	XAttrs         bool   `mapstructure:"xattrs" yaml:"xattrs"`
	PruneEmptyDirs bool   `mapstructure:"prune_empty_dirs" yaml:"prune_empty_dirs"`
}

// RetentionRules is the generational retention rule list.
type RetentionRules []retention.Rule

// Init initializes Viper with default configuration.
// Call this once at application startup before accessing config values.
func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".")
	viper.AddConfigPath(paths.ConfigDir())

	viper.SetEnvPrefix("RSNAP")
	viper.AutomaticEnv()

	viper.SetDefault("version", 1)
	viper.SetDefault("rsync.binary", transfer.DefaultRsyncBinary)
	viper.SetDefault("rsync.ssh_binary", transfer.DefaultSSHBinary)
	viper.SetDefault("rsync.acls", true)
	viper.SetDefault("rsync.xattrs", true)
	viper.SetDefault("rsync.prune_empty_dirs", true)
	viper.SetDefault("retention", DefaultRetention())
}

// DefaultRetention is the rule set applied when the config file carries
// none: a week of dailies, a month of weeklies, a year of monthlies and
// two yearlies.
func DefaultRetention() []map[string]any {
	return []map[string]any{
		{"period": string(retention.PeriodDaily), "keep": 7},
		{"period": string(retention.PeriodWeekly), "keep": 4},
		{"period": string(retention.PeriodMonthly), "keep": 12},
		{"period": string(retention.PeriodYearly), "keep": 2},
	}
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations.
// Returns the loaded configuration or default values if no file is found (when path is empty).
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if path != "" {
				return nil, fmt.Errorf("config file not found at %s: %w", path, err)
			}
			// Implicit load without a config file falls back to defaults.
		} else {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
