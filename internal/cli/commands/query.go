package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/weppcloud/queryengine/pkg/query"
	"github.com/weppcloud/queryengine/pkg/runctx"
)

// Output formats accepted by --format.
const (
	FormatAuto  = "auto"
	FormatTable = "table"
	FormatJSON  = "json"
)

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	var (
		format   string
		scenario string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "query <runid> [payload.json|-]",
		Short: "Run a query payload against a run",
		Long: `Execute a JSON query payload against the datasets of a run.

The payload is read from the named file, or from stdin when it is "-" or
omitted. Results print as a table on a terminal and as JSON otherwise.`,
		Example: `  # Preview a dataset
  echo '{"datasets": ["landuse/landuse.parquet"], "limit": 5}' | wepp-query query copacetic-note

  # From a file, as JSON
  wepp-query query copacetic-note payload.json --format json

  # Inside a scenario
  wepp-query query copacetic-note payload.json --scenario mulch`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "-"
			if len(args) == 2 {
				src = args[1]
			}
			req, err := readPayload(cmd.InOrStdin(), src)
			if err != nil {
				return err
			}

			svc := newServices(cmd, nil)
			runID, scen := runctx.SplitScenario(args[0])
			if scenario != "" {
				scen = scenario
			}
			rc, err := svc.resolver.Resolve(cmd.Context(), runID, scen)
			if err != nil {
				return err
			}

			validation, err := svc.query.Validate(rc, req)
			if err != nil {
				return err
			}
			for _, w := range validation.Warnings {
				svc.logger.Warn(w)
			}
			if dryRun {
				return renderJSON(cmd.OutOrStdout(), validation)
			}

			mode := resolveFormat(format, cmd.OutOrStdout())
			if mode == FormatTable {
				req.IncludeSchema = true
			}
			res, err := svc.query.Run(cmd.Context(), rc, req)
			if err != nil {
				return err
			}
			if mode == FormatJSON {
				return renderJSON(cmd.OutOrStdout(), res)
			}
			return renderResult(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", FormatAuto, "Output format (auto|table|json)")
	cmd.Flags().StringVar(&scenario, "scenario", "", "Scenario name under _pups/omni/scenarios")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the payload without executing it")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{FormatAuto, FormatTable, FormatJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func readPayload(stdin io.Reader, src string) (*query.Request, error) {
	if src == "-" {
		return query.DecodeRequest(stdin)
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload: %w", err)
	}
	defer func() { _ = f.Close() }()
	return query.DecodeRequest(f)
}

// resolveFormat picks table output for terminals when format is auto.
func resolveFormat(format string, w io.Writer) string {
	switch strings.ToLower(format) {
	case FormatTable:
		return FormatTable
	case FormatJSON:
		return FormatJSON
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return FormatTable
	}
	return FormatJSON
}
