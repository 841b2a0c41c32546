package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/isdmx/scriptbox/sandbox"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// SCRIPTBOX_SANDBOX_TIMEOUT_SEC.
const EnvPrefix = "SCRIPTBOX"

// ConfigPathEnv names an explicit configuration file to load.
const ConfigPathEnv = "SCRIPTBOX_CONFIG"

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Sandbox    SandboxConfig    `mapstructure:"sandbox"`
	Validation ValidationConfig `mapstructure:"validation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport          string `mapstructure:"transport"`
	HTTPPort           int    `mapstructure:"http_port"`
	MaxConcurrent      int    `mapstructure:"max_concurrent"`
	MaxBodyBytes       int64  `mapstructure:"max_body_bytes"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
}

// SandboxConfig holds execution supervisor configuration
type SandboxConfig struct {
	TimeoutSec     int               `mapstructure:"timeout_sec"`
	GraceSec       int               `mapstructure:"grace_sec"`
	UseNsjail      bool              `mapstructure:"use_nsjail"`
	NsjailPath     string            `mapstructure:"nsjail_path"`
	NsjailConfig   string            `mapstructure:"nsjail_config"`
	Interpreter    string            `mapstructure:"interpreter"`
	ScriptDir      string            `mapstructure:"script_dir"`
	JailScriptDir  string            `mapstructure:"jail_script_dir"`
	Workdir        string            `mapstructure:"workdir"`
	MaxOutputBytes int               `mapstructure:"max_output_bytes"`
	Env            map[string]string `mapstructure:"env"`
}

// ValidationConfig holds the pre-execution script checks
type ValidationConfig struct {
	Policy         string   `mapstructure:"policy"`
	MaxScriptBytes int      `mapstructure:"max_script_bytes"`
	DenyPatterns   []string `mapstructure:"deny_patterns"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration. The file named by
// SCRIPTBOX_CONFIG wins over the default search path.
func New() (*Config, error) {
	return Load(os.Getenv(ConfigPathEnv))
}

// Load reads configuration from path, or from config.yaml in the working
// directory or ./config when path is empty. A missing default file is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Deployment variables understood by earlier releases.
	if err := v.BindEnv("sandbox.use_nsjail", EnvPrefix+"_SANDBOX_USE_NSJAIL", "USE_NSJAIL"); err != nil {
		return nil, fmt.Errorf("error binding env: %w", err)
	}
	if err := v.BindEnv("server.http_port", EnvPrefix+"_SERVER_HTTP_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("error binding env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "http")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.max_concurrent", 0)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout_sec", 10)

	v.SetDefault("sandbox.timeout_sec", 30)
	v.SetDefault("sandbox.grace_sec", 5)
	v.SetDefault("sandbox.use_nsjail", false)
	v.SetDefault("sandbox.nsjail_path", "/usr/local/bin/nsjail")
	v.SetDefault("sandbox.nsjail_config", "/app/nsjail.cfg")
	v.SetDefault("sandbox.interpreter", "python3")
	v.SetDefault("sandbox.script_dir", "")
	v.SetDefault("sandbox.jail_script_dir", "")
	v.SetDefault("sandbox.workdir", "")
	v.SetDefault("sandbox.max_output_bytes", 10<<20)
	v.SetDefault("sandbox.env", map[string]string{})

	v.SetDefault("validation.policy", sandbox.PolicyWarn)
	v.SetDefault("validation.max_script_bytes", 256<<10)
	v.SetDefault("validation.deny_patterns", sandbox.DefaultDenyPatterns)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Server.MaxConcurrent < 0 {
		return fmt.Errorf("server.max_concurrent must not be negative, got: %d", c.Server.MaxConcurrent)
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got: %d", c.Server.MaxBodyBytes)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.GraceSec < 0 {
		return fmt.Errorf("sandbox.grace_sec must not be negative, got: %d", c.Sandbox.GraceSec)
	}

	if c.Sandbox.Interpreter == "" {
		return fmt.Errorf("sandbox.interpreter must be set")
	}

	if c.Sandbox.UseNsjail && (c.Sandbox.NsjailPath == "" || c.Sandbox.NsjailConfig == "") {
		return fmt.Errorf("sandbox.nsjail_path and sandbox.nsjail_config are required when sandbox.use_nsjail is set")
	}

	if c.Sandbox.MaxOutputBytes <= 0 {
		return fmt.Errorf("sandbox.max_output_bytes must be positive, got: %d", c.Sandbox.MaxOutputBytes)
	}

	if c.Validation.Policy != sandbox.PolicyWarn && c.Validation.Policy != sandbox.PolicyBlock {
		return fmt.Errorf("invalid validation.policy: %s, must be 'warn' or 'block'", c.Validation.Policy)
	}

	if c.Validation.MaxScriptBytes <= 0 {
		return fmt.Errorf("validation.max_script_bytes must be positive, got: %d", c.Validation.MaxScriptBytes)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetShutdownTimeout returns how long in-flight requests get on shutdown
func (c *Config) GetShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}

// SandboxConfig converts the loaded settings into the engine configuration.
func (c *Config) SandboxConfig() sandbox.Config {
	return sandbox.Config{
		Interpreter:    c.Sandbox.Interpreter,
		Timeout:        c.GetTimeout(),
		Grace:          time.Duration(c.Sandbox.GraceSec) * time.Second,
		UseSandbox:     c.Sandbox.UseNsjail,
		SandboxBinary:  c.Sandbox.NsjailPath,
		SandboxConfig:  c.Sandbox.NsjailConfig,
		ScriptDir:      c.Sandbox.ScriptDir,
		JailScriptDir:  c.Sandbox.JailScriptDir,
		Workdir:        c.Sandbox.Workdir,
		MaxOutputBytes: c.Sandbox.MaxOutputBytes,
		Env:            childEnv(c.Sandbox.Env),
		Policy:         c.Validation.Policy,
		MaxScriptBytes: c.Validation.MaxScriptBytes,
		DenyPatterns:   c.Validation.DenyPatterns,
	}
}

// childEnv restores conventional upper-case names; viper lowercases map keys.
func childEnv(env map[string]string) map[string]string {
	if len(env) == 0 {
		return nil
	}
	out := make(map[string]string, len(env))
	for key, value := range env {
		out[strings.ToUpper(key)] = value
	}
	return out
}
