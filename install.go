package jumpbridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Installer fetches a package so that a subsequent load of the module of
// the same name can succeed. It reports success only; failure details go to
// the log.
type Installer interface {
	Install(ctx context.Context, pkg string) bool
}

// InstallerFunc adapts a function to the Installer interface.
type InstallerFunc func(ctx context.Context, pkg string) bool

func (f InstallerFunc) Install(ctx context.Context, pkg string) bool { return f(ctx, pkg) }

// NopInstaller never installs anything.
type NopInstaller struct{}

func (NopInstaller) Install(context.Context, string) bool { return false }

// DefaultInstallTimeout bounds a single install attempt.
const DefaultInstallTimeout = 120 * time.Second

// DefaultRestrictedSignatures are output fragments that indicate the primary
// install location is not writable, which warrants the fallback command.
var DefaultRestrictedSignatures = []string{
	"externally-managed-environment",
	"Permission denied",
	"permission denied",
	"write permissions",
	"EACCES",
}

// CommandInstaller installs packages by running an external command with
// the package name appended, e.g. "luarocks install --tree /srv/rocks".
type CommandInstaller struct {
	// Command is the argv prefix of the primary install command.
	Command []string

	// FallbackCommand is tried once when the primary command fails with a
	// restricted-environment signature. Empty disables the retry.
	FallbackCommand []string

	// Timeout bounds each attempt. Zero means DefaultInstallTimeout.
	Timeout time.Duration

	// RestrictedSignatures overrides DefaultRestrictedSignatures when set.
	RestrictedSignatures []string

	// Env is appended to the current environment for every attempt.
	Env []string

	Logger *slog.Logger
}

// LuaRocksInstaller installs into tree, falling back to the user's local tree.
func LuaRocksInstaller(tree string, logger *slog.Logger) *CommandInstaller {
	return &CommandInstaller{
		Command:         []string{"luarocks", "install", "--tree", tree},
		FallbackCommand: []string{"luarocks", "install", "--local"},
		Logger:          logger,
	}
}

func (ci *CommandInstaller) Install(ctx context.Context, pkg string) bool {
	logger := ci.logger().With("package", pkg)
	if len(ci.Command) == 0 {
		logger.Warn("no install command configured")
		return false
	}
	if pkg == "" || strings.HasPrefix(pkg, "-") {
		logger.Warn("refusing to install invalid package name")
		return false
	}

	output, err := ci.run(ctx, ci.Command, pkg)
	if err == nil {
		logger.Info("package installed")
		return true
	}

	if len(ci.FallbackCommand) > 0 && ci.restricted(output) {
		logger.Info("install location restricted, retrying with fallback", "error", err)
		output, err = ci.run(ctx, ci.FallbackCommand, pkg)
		if err == nil {
			logger.Info("package installed with fallback command")
			return true
		}
	}

	logger.Warn("package install failed", "error", err, "output", lastLines(output, 20))
	return false
}

// run executes one attempt and returns the combined output.
func (ci *CommandInstaller) run(ctx context.Context, argv []string, pkg string) (string, error) {
	timeout := ci.Timeout
	if timeout <= 0 {
		timeout = DefaultInstallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, argv[1:]...), pkg)
	cmd := exec.CommandContext(ctx, argv[0], args...)
	if len(ci.Env) > 0 {
		cmd.Env = append(os.Environ(), ci.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	output := stdoutBuf.String() + stderrBuf.String()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return output, fmt.Errorf("install of %s timed out after %s", pkg, timeout)
		}
		return output, fmt.Errorf("error installing package: %v, stderr: %s", err, strings.TrimSpace(stderrBuf.String()))
	}
	return output, nil
}

func (ci *CommandInstaller) restricted(output string) bool {
	signatures := ci.RestrictedSignatures
	if len(signatures) == 0 {
		signatures = DefaultRestrictedSignatures
	}
	for _, sig := range signatures {
		if strings.Contains(output, sig) {
			return true
		}
	}
	return false
}

func (ci *CommandInstaller) logger() *slog.Logger {
	if ci.Logger != nil {
		return ci.Logger
	}
	return slog.Default()
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
