package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"path"

	"github.com/thoreinstein/rsnap/internal/config"
	"github.com/thoreinstein/rsnap/internal/engine"
	"github.com/thoreinstein/rsnap/internal/snapshot"
)

// BinaryCheck verifies that an external executable can be found.
type BinaryCheck struct {
	name   string
	binary string
}

var _ Check = (*BinaryCheck)(nil)

// NewRsyncBinaryCheck checks for the configured rsync executable.
func NewRsyncBinaryCheck(binary string) *BinaryCheck {
	return &BinaryCheck{name: "rsync-binary", binary: binary}
}

// NewSSHBinaryCheck checks for the configured ssh executable.
func NewSSHBinaryCheck(binary string) *BinaryCheck {
	return &BinaryCheck{name: "ssh-binary", binary: binary}
}

// Name returns the unique identifier for this check.
func (c *BinaryCheck) Name() string {
	return c.name
}

// Category returns the grouping for this check.
func (c *BinaryCheck) Category() string {
	return "transfer"
}

// Run executes the binary lookup.
func (c *BinaryCheck) Run(_ context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.name,
		Category: c.Category(),
		Details:  map[string]any{"binary": c.binary},
	}

	resolved, err := exec.LookPath(c.binary)
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s not found", c.binary)
		result.FixHint = fmt.Sprintf("Install %s or set its path in the config file", path.Base(c.binary))
		return result
	}

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("found %s", resolved)
	return result
}

// ConfigCheck validates the loaded configuration.
type ConfigCheck struct {
	cfg *config.Config
}

var _ Check = (*ConfigCheck)(nil)

// NewConfigCheck creates a configuration validity check.
func NewConfigCheck(cfg *config.Config) *ConfigCheck {
	return &ConfigCheck{cfg: cfg}
}

// Name returns the unique identifier for this check.
func (c *ConfigCheck) Name() string {
	return "config-valid"
}

// Category returns the grouping for this check.
func (c *ConfigCheck) Category() string {
	return "config"
}

// Run executes the configuration validation.
func (c *ConfigCheck) Run(_ context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
	}

	errs := config.Validate(c.cfg)
	if len(errs) == 0 {
		result.Status = SeverityPass
		result.Message = "configuration is valid"
		return result
	}

	problems := make([]string, 0, len(errs))
	for _, err := range errs {
		problems = append(problems, err.Error())
	}

	result.Status = SeverityError
	result.Message = fmt.Sprintf("%d configuration problem(s)", len(errs))
	result.Details = map[string]any{"problems": problems}
	result.FixHint = "Edit the config file and re-run rsnap doctor"
	return result
}

// TargetCheck verifies the backup target root can be reached and listed.
type TargetCheck struct {
	io   snapshot.IO
	root string
}

var _ Check = (*TargetCheck)(nil)

// NewTargetCheck creates a target reachability check.
func NewTargetCheck(io snapshot.IO, root string) *TargetCheck {
	return &TargetCheck{io: io, root: root}
}

// Name returns the unique identifier for this check.
func (c *TargetCheck) Name() string {
	return "target-reachable"
}

// Category returns the grouping for this check.
func (c *TargetCheck) Category() string {
	return "target"
}

// Run executes the reachability check by listing the snapshot root.
func (c *TargetCheck) Run(ctx context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"root": c.root},
	}

	repo := snapshot.NewRepository(c.io, c.root)
	snapshots, err := repo.List(ctx)
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("cannot list target: %v", err)
		result.FixHint = "Check connectivity, permissions and the target path"
		return result
	}

	complete := 0
	for _, s := range snapshots {
		if s.Status == snapshot.StatusComplete {
			complete++
		}
	}

	result.Status = SeverityPass
	result.Message = fmt.Sprintf("target reachable, %d snapshot(s), %d complete", len(snapshots), complete)
	return result
}

// LockCheck reports whether a run lock is currently held on the target.
// A lock with no active run behind it usually means a run was killed
// without cleanup.
type LockCheck struct {
	io   snapshot.IO
	root string
}

var _ Check = (*LockCheck)(nil)

// NewLockCheck creates a lock inspection check.
func NewLockCheck(io snapshot.IO, root string) *LockCheck {
	return &LockCheck{io: io, root: root}
}

// Name returns the unique identifier for this check.
func (c *LockCheck) Name() string {
	return "run-lock"
}

// Category returns the grouping for this check.
func (c *LockCheck) Category() string {
	return "target"
}

// Run inspects the lock directory.
func (c *LockCheck) Run(ctx context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
	}

	lockPath := path.Join(c.root, engine.LockDirName)
	held, err := c.io.Exists(ctx, lockPath)
	if err != nil {
		result.Status = SeverityWarning
		result.Message = fmt.Sprintf("cannot inspect lock: %v", err)
		return result
	}
	if !held {
		result.Status = SeverityPass
		result.Message = "no run lock held"
		return result
	}

	result.Status = SeverityWarning
	result.Message = "a run lock is held"
	result.Details = map[string]any{"lock": lockPath}
	if owner, err := c.io.ReadFile(ctx, path.Join(lockPath, "owner")); err == nil {
		result.Details["owner"] = string(owner)
	}
	result.FixHint = "If no backup is running, remove the lock directory on the target"
	return result
}
