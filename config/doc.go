// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and SCRIPTBOX_* environment variables. It
// covers the transports, the execution supervisor, the pre-execution
// validation policy and logging.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Server transport: %s\n", cfg.Server.Transport)
package config
