package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weppcloud/queryengine/internal/cli/config"
	"github.com/weppcloud/queryengine/internal/metrics"
	"github.com/weppcloud/queryengine/internal/server/features/mcp"
	"github.com/weppcloud/queryengine/pkg/catalog"
	"github.com/weppcloud/queryengine/pkg/query"
	"github.com/weppcloud/queryengine/pkg/runctx"
)

// services are the collaborators every command builds from the config.
type services struct {
	cfg       *config.Config
	logger    *slog.Logger
	activator *catalog.Activator
	resolver  *runctx.Resolver
	query     *query.Service
}

// newServices wires the catalog, resolver and query service. m may be nil.
func newServices(cmd *cobra.Command, m *metrics.Metrics) *services {
	cfg := config.FromContext(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	act := &catalog.Activator{Logger: logger, StartYear: cfg.Interchange.StartYearFunc()}
	if len(cfg.Interchange.Command) > 0 {
		act.Generator = commandGenerator(cfg.Interchange.Command, logger)
	}
	svc := &query.Service{
		Executor: &query.Executor{Params: cfg.AdapterParams(), Logger: logger},
		MaxLimit: cfg.Query.MaxLimit,
		Logger:   logger,
	}
	if m != nil {
		act.Observer = m
		svc.Observer = m
	}

	res := &runctx.Resolver{
		Prefix:         cfg.Runs.Prefix,
		AutoActivate:   cfg.Query.AutoActivate,
		RunInterchange: cfg.Query.RunInterchange,
		Activator:      act,
		Logger:         logger,
	}
	if len(cfg.Runs.Roots) > 0 {
		res.Lookup = runctx.Roots(cfg.Runs.Roots)
	}

	return &services{cfg: cfg, logger: logger, activator: act, resolver: res, query: svc}
}

// unsafePatterns converts configured patterns for the MCP routes.
func unsafePatterns(cfg *config.Config) []mcp.UnsafePattern {
	out := make([]mcp.UnsafePattern, 0, len(cfg.MCP.UnsafePatterns))
	for _, p := range cfg.MCP.UnsafePatterns {
		out = append(out, mcp.UnsafePattern{Prefix: p.Prefix, NamePrefix: p.NamePrefix, Suffix: p.Suffix})
	}
	return out
}

// commandGenerator runs an external interchange generator for each
// wepp/output directory.
func commandGenerator(argv []string, logger *slog.Logger) catalog.GeneratorFunc {
	return func(ctx context.Context, outputDir string, startYear *int) error {
		args := append(append([]string{}, argv[1:]...), outputDir)
		if startYear != nil {
			args = append(args, "--start-year", strconv.Itoa(*startYear))
		}
		logger.Debug("running interchange generator", "command", argv[0], "args", args)
		out, err := exec.CommandContext(ctx, argv[0], args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("%s: %w: %s", argv[0], err, strings.TrimSpace(string(out)))
		}
		return nil
	}
}
