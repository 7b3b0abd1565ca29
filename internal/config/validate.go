package config

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validation errors for configuration fields.
var (
	// ErrVersionTooLow indicates the version field is below the minimum.
	ErrVersionTooLow = errors.New("version must be >= 1")

	// ErrTargetPathRequired indicates the target path is missing.
	ErrTargetPathRequired = errors.New("target path is required")

	// ErrNoIncludes indicates there is nothing to back up.
	ErrNoIncludes = errors.New("at least one include path is required")

	// ErrIncludeNotAbsolute indicates an include is not an absolute path.
	ErrIncludeNotAbsolute = errors.New("include paths must be absolute")

	// ErrInvalidPort indicates an out-of-range ssh port.
	ErrInvalidPort = errors.New("port must be between 1 and 65535")

	// ErrInvalidPath indicates a path value is malformed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidSchedule indicates an unparsable cron schedule.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Validate checks a Config for validity.
// Returns nil if valid, or a slice of validation errors.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	if cfg.Version < 1 {
		errs = append(errs, ErrVersionTooLow)
	}

	if cfg.Target.Path == "" {
		errs = append(errs, ErrTargetPathRequired)
	} else if err := validatePath(cfg.Target.Path); err != nil {
		errs = append(errs, &PathError{Field: "target.path", Path: cfg.Target.Path, Err: err})
	}

	if cfg.Target.Port != 0 && (cfg.Target.Port < 1 || cfg.Target.Port > 65535) {
		errs = append(errs, ErrInvalidPort)
	}

	if len(cfg.Includes) == 0 {
		errs = append(errs, ErrNoIncludes)
	}
	for _, include := range cfg.Includes {
		if err := validatePath(include); err != nil {
			errs = append(errs, &PathError{Field: "includes", Path: include, Err: err})
			continue
		}
		if !filepath.IsAbs(include) {
			errs = append(errs, &PathError{Field: "includes", Path: include, Err: ErrIncludeNotAbsolute})
		}
	}

	for _, rule := range cfg.Retention {
		if err := rule.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, &ScheduleError{Schedule: cfg.Schedule, Err: ErrInvalidSchedule})
		}
	}

	return errs
}

// validatePath checks if a path string is well-formed.
// It does not check if the path exists, only that it's syntactically valid.
func validatePath(path string) error {
	if path == "" {
		return nil
	}

	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}

	cleaned := filepath.Clean(path)
	if cleaned == "" || cleaned == "." {
		return ErrInvalidPath
	}

	return nil
}

// PathError represents an error for a specific path field.
type PathError struct {
	Field string
	Path  string
	Err   error
}

func (e *PathError) Error() string {
	return e.Field + ": " + e.Err.Error() + ": " + e.Path
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ScheduleError represents an error for the daemon schedule.
type ScheduleError struct {
	Schedule string
	Err      error
}

func (e *ScheduleError) Error() string {
	return e.Err.Error() + ": " + e.Schedule
}

func (e *ScheduleError) Unwrap() error {
	return e.Err
}
