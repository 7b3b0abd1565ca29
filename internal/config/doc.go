// Package config provides configuration management for the rsnap CLI.
//
// # Configuration File
//
// The default configuration file location is ~/.config/rsnap/config.yaml.
// The configuration file uses YAML format with the following structure:
//
//	version: 1
//	target:
//	  path: /mnt/backups/laptop
//	  host: nas.example.com   # optional, empty means local
//	  user: backup            # optional
//	includes:
//	  - /etc
//	  - /home/jan
//	excludes:
//	  - "*.cache"
//	retention:
//	  - period: daily
//	    keep: 7
//	  - period: weekly
//	    keep: 4
//	schedule: "0 2 * * *"     # optional, used by the daemon command
//
// # Loading Configuration
//
// Call [Init] once at startup, then [Load]:
//
//	config.Init()
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
//
// # Validation
//
// Loaded configurations are checked with [Validate], which returns every
// problem at once rather than stopping at the first:
//
//	errs := config.Validate(cfg)
//	if len(errs) > 0 {
//	    for _, e := range errs {
//	        fmt.Println(e)
//	    }
//	}
package config
