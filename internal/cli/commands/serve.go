package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weppcloud/queryengine/internal/auth"
	"github.com/weppcloud/queryengine/internal/metrics"
	"github.com/weppcloud/queryengine/internal/server"
	"github.com/weppcloud/queryengine/internal/server/features/mcp"
)

// Environment variables that rewrite the OpenAPI server entry.
const (
	EnvExternalHost            = "EXTERNAL_HOST"
	EnvExternalHostDescription = "EXTERNAL_HOST_DESCRIPTION"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query console and MCP API",
		Long: `Start the HTTP service.

The per-run console is always served. The MCP API is mounted under /mcp
only when WEPP_MCP_JWT_SECRET is set.`,
		Example: `  # Serve runs beneath /geodata/runs on :8080
  wepp-query serve --runs-prefix /geodata/runs

  # Behind a reverse proxy
  wepp-query serve --listen :9000 --root-path /query-engine`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "Listen address (default :8080)")
	cmd.Flags().String("root-path", "", "Mount prefix used when building links")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	m := metrics.New()
	svc := newServices(cmd, m)

	authCfg, err := auth.LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid MCP auth configuration: %w", err)
	}

	srv := server.New(server.Config{
		Listen:         svc.cfg.Listen,
		RootPath:       svc.cfg.RootPath,
		Resolver:       svc.resolver,
		Activator:      svc.activator,
		Query:          svc.query,
		Auth:           authCfg,
		UnsafePatterns: unsafePatterns(svc.cfg),
		RunInterchange: svc.cfg.Query.RunInterchange,
		OpenAPI: mcp.OpenAPIOptions{
			ExternalHost:            os.Getenv(EnvExternalHost),
			ExternalHostDescription: os.Getenv(EnvExternalHostDescription),
		},
		Metrics: m,
		Logger:  svc.logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Serve(ctx)
}
