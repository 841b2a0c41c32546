// Package sandbox provides secure script execution capabilities.
//
// The Engine ties the pipeline together: validate, compose the harness, write
// it to a uniquely named file, supervise the interpreter, extract the result
// and remove the file again.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/metrics"
)

// internalMessage is all a caller learns about faults in the engine itself.
const internalMessage = "Internal server error"

// Engine executes untrusted scripts
type Engine struct {
	logger     *zap.Logger
	config     *Config
	validator  *Validator
	supervisor *Supervisor
	cmdRunner  CommandRunner
	fs         FileSystem
}

// EngineOption defines a functional option for Engine
type EngineOption func(*Engine)

// WithCommandRunner sets the CommandRunner for Engine
func WithCommandRunner(cmdRunner CommandRunner) EngineOption {
	return func(e *Engine) {
		e.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem for Engine
func WithFileSystem(fs FileSystem) EngineOption {
	return func(e *Engine) {
		e.fs = fs
	}
}

// NewEngine creates a new Engine with default implementations and optional interfaces
func NewEngine(logger *zap.Logger, config *Config, opts ...EngineOption) *Engine {
	engine := &Engine{
		logger:    logger,
		config:    config,
		cmdRunner: &RealCommandRunner{}, // Default implementation
		fs:        &RealFileSystem{},    // Default implementation
	}

	// Apply options
	for _, opt := range opts {
		opt(engine)
	}

	engine.validator = NewValidator(logger, config.Policy, config.MaxScriptBytes, config.DenyPatterns)
	engine.supervisor = NewSupervisor(logger, config, engine.cmdRunner, engine.fs)

	return engine
}

// Mode reports the isolation mode new executions will use.
func (e *Engine) Mode() string {
	return e.supervisor.Mode()
}

// Validate runs the pre-execution checks only.
func (e *Engine) Validate(script string) error {
	return e.validator.Validate(script)
}

// Execute runs script and always returns a structured Result; it never
// panics and never returns internal details to the caller. Cancelling ctx
// does not stop a running script: the configured deadline is the only bound.
func (e *Engine) Execute(ctx context.Context, script string) (result Result) {
	id := uuid.NewString()
	log := e.logger.With(zap.String("execution_id", id))
	mode := e.Mode()

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during execution", zap.Any("panic", r), zap.Stack("stack"))
			result = failure(newError(KindInternal, internalMessage, fmt.Errorf("panic: %v", r)))
		}
		metrics.ExecutionsTotal.WithLabelValues(outcomeLabel(result), mode).Inc()
	}()

	if err := e.validator.Validate(script); err != nil {
		var verr *Error
		if errors.As(err, &verr) {
			metrics.ValidationRejectionsTotal.WithLabelValues(string(verr.Reason)).Inc()
			log.Info("script rejected", zap.String("reason", string(verr.Reason)))
			return failure(verr)
		}
		return e.internal(log, err)
	}

	harnessPath, cleanup, err := e.stage(id, Compose(script))
	if err != nil {
		return e.internal(log, err)
	}
	defer cleanup(log)

	outcome, err := e.supervise(ctx, harnessPath)
	metrics.ExecutionDuration.WithLabelValues(mode).Observe(outcome.Duration.Seconds())

	log.Info("script process finished",
		zap.String("mode", mode),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Duration("duration", outcome.Duration),
		zap.Int("stdout_len", len(outcome.Stdout)),
		zap.Int("stderr_len", len(outcome.Stderr)))

	if err != nil {
		var execErr *Error
		if errors.As(err, &execErr) {
			log.Warn("script execution failed", zap.String("kind", string(execErr.Kind)), zap.Error(err))
			return failure(execErr)
		}
		return e.internal(log, err)
	}

	if outcome.StdoutTruncated {
		return failure(newError(KindOutputLimit,
			fmt.Sprintf("Script output exceeded %d bytes", e.config.MaxOutputBytes), nil))
	}

	return Extract(outcome)
}

func (e *Engine) supervise(ctx context.Context, harnessPath string) (Outcome, error) {
	metrics.ActiveExecutions.Inc()
	defer metrics.ActiveExecutions.Dec()
	return e.supervisor.Run(context.WithoutCancel(ctx), harnessPath)
}

func (e *Engine) internal(log *zap.Logger, err error) Result {
	log.Error("internal execution error", zap.Error(err))
	return failure(newError(KindInternal, internalMessage, err))
}

// stage writes the harness source to a fresh file and returns its path with
// a cleanup func that removes it. Removal errors are logged and swallowed.
func (e *Engine) stage(id, source string) (string, func(*zap.Logger), error) {
	dir := e.config.ScriptDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := e.fs.MkdirAll(dir, DirPermission); err != nil {
		return "", nil, fmt.Errorf("failed to create script dir: %w", err)
	}

	path := filepath.Join(dir, "harness-"+id+".py")
	if err := e.fs.WriteFile(path, []byte(source), HarnessPermission); err != nil {
		return "", nil, fmt.Errorf("failed to write harness: %w", err)
	}

	cleanup := func(log *zap.Logger) {
		if err := e.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			metrics.CleanupFailuresTotal.Inc()
			log.Error("failed to remove harness file", zap.String("path", path), zap.Error(err))
		}
	}
	return path, cleanup, nil
}

func outcomeLabel(r Result) string {
	if r.Failure == nil {
		return "success"
	}
	return string(r.Failure.Kind)
}
