package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/httpapi"
	"github.com/isdmx/scriptbox/logger"
	"github.com/isdmx/scriptbox/mcpserver"
	"github.com/isdmx/scriptbox/sandbox"
)

func main() {
	app := fx.New(
		options(),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}

func options() fx.Option {
	return fx.Options(
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Execution engine from the sandbox settings
			fx.Annotate(newEngine, fx.As(new(httpapi.Executor))),

			// MCP Server
			mcpserver.New,

			// REST API with MCP mounted at /mcp
			newHTTPServer,
		),

		fx.Invoke(
			logger.RegisterSync,
			registerTransport,
		),
	)
}

func newEngine(cfg *config.Config, log *zap.Logger) (*sandbox.Engine, error) {
	return sandbox.New(log, cfg.SandboxConfig())
}

func newHTTPServer(cfg *config.Config, log *zap.Logger, executor httpapi.Executor, mcp *mcpserver.MCPServer) *httpapi.Server {
	return httpapi.New(cfg, log, executor, mcp.HTTPHandler())
}

// registerTransport starts the configured transport with the application and
// stops it on shutdown.
func registerTransport(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	httpServer *httpapi.Server,
	mcp *mcpserver.MCPServer,
) {
	switch cfg.Server.Transport {
	case "stdio":
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := mcp.ServeStdio(); err != nil {
						log.Error("MCP stdio server stopped", zap.Error(err))
					}
					if err := shutdowner.Shutdown(); err != nil {
						log.Error("failed to shut down", zap.Error(err))
					}
				}()
				return nil
			},
		})
	default:
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				return httpServer.Start()
			},
			OnStop: func(ctx context.Context) error {
				stopCtx, cancel := context.WithTimeout(ctx, cfg.GetShutdownTimeout())
				defer cancel()
				return httpServer.Shutdown(stopCtx)
			},
		})
	}
}
