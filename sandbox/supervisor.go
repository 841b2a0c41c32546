package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Execution modes reported by Supervisor.Mode
const (
	ModeNsjail     = "nsjail"
	ModeSubprocess = "subprocess"
)

// Supervisor spawns harness programs, directly or under the isolation tool,
// and bounds their lifetime.
type Supervisor struct {
	logger    *zap.Logger
	config    *Config
	cmdRunner CommandRunner
	fs        FileSystem
}

// NewSupervisor creates a Supervisor
func NewSupervisor(logger *zap.Logger, config *Config, cmdRunner CommandRunner, fs FileSystem) *Supervisor {
	return &Supervisor{
		logger:    logger,
		config:    config,
		cmdRunner: cmdRunner,
		fs:        fs,
	}
}

// Mode reports whether executions will be isolated by nsjail right now.
func (s *Supervisor) Mode() string {
	if s.sandboxAvailable() {
		return ModeNsjail
	}
	return ModeSubprocess
}

func (s *Supervisor) sandboxAvailable() bool {
	if !s.config.UseSandbox {
		return false
	}
	exists, err := s.fs.FileExists(s.config.SandboxBinary)
	return err == nil && exists
}

// Run executes the harness at harnessPath and returns its raw output. The
// returned error is an *Error of kind KindTimeout or KindSpawn; in both cases
// the child and its process group are gone when Run returns.
func (s *Supervisor) Run(ctx context.Context, harnessPath string) (Outcome, error) {
	args, budget := s.command(harnessPath)

	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	outcome, err := s.cmdRunner.RunCommand(runCtx, Command{
		Args:           args,
		Dir:            s.workdir(),
		Env:            s.environment(),
		MaxOutputBytes: s.config.MaxOutputBytes,
	})

	// A run that completed cleanly right at the budget is not a timeout.
	failed := err != nil || outcome.ExitCode != 0
	if failed && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return outcome, newError(KindTimeout,
			fmt.Sprintf("Script execution timed out after %s", budget), runCtx.Err())
	}

	if err != nil {
		return outcome, newError(KindSpawn, fmt.Sprintf("Execution error: %v", err), err)
	}

	return outcome, nil
}

// command builds the argument vector and the wall-clock budget. The isolation
// tool gets extra grace for its own startup.
func (s *Supervisor) command(harnessPath string) ([]string, time.Duration) {
	if !s.config.UseSandbox {
		return []string{s.config.Interpreter, harnessPath}, s.config.Timeout
	}

	if !s.sandboxAvailable() {
		s.logger.Warn("sandbox binary not found, falling back to direct execution",
			zap.String("nsjail_path", s.config.SandboxBinary))
		return []string{s.config.Interpreter, harnessPath}, s.config.Timeout
	}

	return []string{
		s.config.SandboxBinary,
		"--config", s.config.SandboxConfig,
		"--",
		s.config.Interpreter, s.jailPath(harnessPath),
	}, s.config.Timeout + s.config.Grace
}

// jailPath maps a host harness path to where the jail mounts it.
func (s *Supervisor) jailPath(harnessPath string) string {
	if s.config.JailScriptDir == "" {
		return harnessPath
	}
	return filepath.Join(s.config.JailScriptDir, filepath.Base(harnessPath))
}

func (s *Supervisor) workdir() string {
	if s.config.Workdir != "" {
		return s.config.Workdir
	}
	return os.TempDir()
}

// environment builds the child's environment from scratch; nothing from the
// service's own environment leaks through except PATH.
func (s *Supervisor) environment() []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = "/usr/local/bin:/usr/bin:/bin"
	}
	env := []string{
		"PATH=" + path,
		"HOME=" + s.workdir(),
		"LANG=C.UTF-8",
		"PYTHONIOENCODING=utf-8",
		"PYTHONDONTWRITEBYTECODE=1",
	}

	keys := make([]string, 0, len(s.config.Env))
	for key := range s.config.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, fmt.Sprintf("%s=%s", key, s.config.Env[key]))
	}
	return env
}
