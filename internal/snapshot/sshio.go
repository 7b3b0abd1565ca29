package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/thoreinstein/rsnap/internal/errors"
)

// SSH implements IO against a remote target by shelling out to the ssh
// binary, the same transport the transfer step rides on. Each operation is
// one short remote command; authentication is whatever the user's ssh
// setup provides (key file, agent, config), never handled here.
type SSH struct {
	// Host is the remote host name or address. Required.
	Host string

	// User is the remote username. Optional.
	User string

	// Port is the remote port. 0 means ssh's default.
	Port int

	// Binary is the ssh executable. Defaults to "ssh".
	Binary string

	// ConfigFile, KeyFile and KnownHostsFile are passed through to ssh
	// when set.
	ConfigFile     string
	KeyFile        string
	KnownHostsFile string
}

var _ IO = (*SSH)(nil)

// command builds an exec.Cmd running the given shell snippet remotely.
func (s *SSH) command(ctx context.Context, script string) *exec.Cmd {
	binary := s.Binary
	if binary == "" {
		binary = "ssh"
	}

	args := []string{
		"-o", "BatchMode=yes",
		"-o", "NumberOfPasswordPrompts=0",
	}
	if s.ConfigFile != "" {
		args = append(args, "-F", s.ConfigFile)
	}
	if s.KeyFile != "" {
		args = append(args, "-i", s.KeyFile)
	}
	if s.KnownHostsFile != "" {
		args = append(args, "-o", "UserKnownHostsFile="+s.KnownHostsFile)
	}
	if s.Port != 0 {
		args = append(args, "-p", fmt.Sprint(s.Port))
	}

	host := s.Host
	if s.User != "" {
		host = s.User + "@" + host
	}
	args = append(args, host, "--", script)

	return exec.CommandContext(ctx, binary, args...)
}

// run executes a remote shell snippet and returns its stdout.
func (s *SSH) run(ctx context.Context, script string, stdin []byte) ([]byte, error) {
	cmd := s.command(ctx, script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errors.Wrapf(err, "ssh %s: %s", s.Host, msg)
	}
	return stdout.Bytes(), nil
}

// shellQuote wraps a path in single quotes, escaping embedded quotes, so it
// survives the remote shell untouched.
func shellQuote(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

// ReadDir returns the entry names of a remote directory.
func (s *SSH) ReadDir(ctx context.Context, dir string) ([]string, error) {
	out, err := s.run(ctx, "ls -1A "+shellQuote(dir), nil)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// ReadFile returns the contents of a small remote file.
func (s *SSH) ReadFile(ctx context.Context, path string) ([]byte, error) {
	// Report missing files the way the local implementation does, so the
	// repository can classify manifest-less snapshots uniformly.
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, os.ErrNotExist
	}
	return s.run(ctx, "cat "+shellQuote(path), nil)
}

// WriteFile writes data to a remote path via a temp file + rename.
func (s *SSH) WriteFile(ctx context.Context, path string, data []byte) error {
	q := shellQuote(path)
	tmp := shellQuote(path + ".tmp")
	_, err := s.run(ctx, fmt.Sprintf("cat > %s && mv %s %s", tmp, tmp, q), data)
	return err
}

// Mkdir creates a single remote directory, failing if it already exists.
func (s *SSH) Mkdir(ctx context.Context, dir string) error {
	_, err := s.run(ctx, "mkdir "+shellQuote(dir), nil)
	return err
}

// MkdirAll creates a remote directory and any missing parents.
func (s *SSH) MkdirAll(ctx context.Context, dir string) error {
	_, err := s.run(ctx, "mkdir -p "+shellQuote(dir), nil)
	return err
}

// Remove removes a single remote file or empty directory.
func (s *SSH) Remove(ctx context.Context, path string) error {
	q := shellQuote(path)
	_, err := s.run(ctx, fmt.Sprintf("if [ -d %s ]; then rmdir %s; else rm -f %s; fi", q, q, q), nil)
	return err
}

// RemoveAll removes a remote path and everything below it.
func (s *SSH) RemoveAll(ctx context.Context, path string) error {
	_, err := s.run(ctx, "rm -rf "+shellQuote(path), nil)
	return err
}

// Exists reports whether a remote path exists.
func (s *SSH) Exists(ctx context.Context, path string) (bool, error) {
	out, err := s.run(ctx, fmt.Sprintf("test -e %s && echo yes || echo no", shellQuote(path)), nil)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) == "yes", nil
}
