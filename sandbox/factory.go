package sandbox

import (
	"fmt"

	"go.uber.org/zap"
)

// New checks config and creates an Engine for it
func New(logger *zap.Logger, config Config, opts ...EngineOption) (*Engine, error) {
	if config.Interpreter == "" {
		return nil, fmt.Errorf("interpreter must be set")
	}
	if config.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got: %s", config.Timeout)
	}

	switch config.Policy {
	case PolicyWarn, PolicyBlock:
	case "":
		config.Policy = PolicyWarn
	default:
		return nil, fmt.Errorf("unsupported validation policy: %s", config.Policy)
	}

	engine := NewEngine(logger, &config, opts...)

	logger.Info("execution engine ready",
		zap.String("mode", engine.Mode()),
		zap.Bool("nsjail_requested", config.UseSandbox),
		zap.Bool("nsjail_available", engine.supervisor.sandboxAvailable()),
		zap.String("interpreter", config.Interpreter),
		zap.Duration("timeout", config.Timeout),
		zap.String("validation_policy", config.Policy))

	return engine, nil
}
