package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/umarmk/mcp-server/internal/dispatch"
	"github.com/umarmk/mcp-server/internal/mcpserver"
	"github.com/umarmk/mcp-server/internal/metrics"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Connect to the database and serve the tools over the configured transport.

With the stdio transport the server speaks MCP on stdin/stdout and logs to
stderr. With the http transport it serves /mcp, /healthz and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := configFrom(ctx)
			log := loggerFrom(ctx)

			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			log.InfoWith("database pool ready", map[string]interface{}{
				"driver":    cfg.Driver,
				"host":      cfg.Database.Host,
				"database":  cfg.Database.Name,
				"max_conns": cfg.Pool.MaxConns,
			})

			rec, closeRecorder, err := openRecorder(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeRecorder()

			m := metrics.New()
			m.RegisterPool(pool)

			d := dispatch.New(pool,
				dispatch.WithLogger(log),
				dispatch.WithMetrics(m),
				dispatch.WithAuditRecorder(rec),
				dispatch.WithCommandTimeout(cfg.Pool.CommandTimeout.Std()),
				dispatch.WithLimits(cfg.Query.DefaultLimit, cfg.Query.MaxLimit),
				dispatch.WithIdentity(dispatch.Identity{
					Name:     ServerName,
					Version:  Version,
					Host:     cfg.Database.Host,
					Port:     cfg.DatabasePort(),
					Database: cfg.Database.Name,
				}),
			)

			srv := mcpserver.New(mcpserver.Config{
				Name:        ServerName,
				Version:     Version,
				Transport:   cfg.Server.Transport,
				HTTPAddr:    cfg.Server.HTTPAddr,
				CORSOrigins: cfg.Server.CORSAllowedOrigins,
			}, d, m, log)
			return srv.Run(ctx)
		},
	}
}
