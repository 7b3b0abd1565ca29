package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/thoreinstein/rsnap/internal/paths"
	"github.com/thoreinstein/rsnap/internal/retention"
	"github.com/thoreinstein/rsnap/internal/transfer"
	"github.com/thoreinstein/rsnap/pkg/fileutil"
)

// Default returns a configuration with sensible defaults. The target and
// includes are left empty: they have no universal default and validation
// rejects a config without them.
func Default() *Config {
	return &Config{
		Version: 1,
		Rsync: Rsync{
			Binary:         transfer.DefaultRsyncBinary,
			SSHBinary:      transfer.DefaultSSHBinary,
			ACLs:           true,
			XAttrs:         true,
			PruneEmptyDirs: true,
		},
		Retention: RetentionRules{
			{Period: retention.PeriodDaily, Keep: 7},
			{Period: retention.PeriodWeekly, Keep: 4},
			{Period: retention.PeriodMonthly, Keep: 12},
			{Period: retention.PeriodYearly, Keep: 2},
		},
	}
}

// WriteDefault writes the default configuration to the standard config
// file location, refusing to overwrite an existing file. It returns the
// path written.
func WriteDefault() (string, error) {
	file := paths.ConfigFile()

	if _, err := os.Stat(file); err == nil {
		return "", fmt.Errorf("config file already exists at %s", file)
	}

	if err := paths.EnsureDir(filepath.Dir(file), paths.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	if err := fileutil.AtomicWriteYAML(file, Default()); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	return file, nil
}
