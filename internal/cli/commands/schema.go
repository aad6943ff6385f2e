package commands

import (
	"github.com/spf13/cobra"

	"github.com/weppcloud/queryengine/pkg/core"
	"github.com/weppcloud/queryengine/pkg/runctx"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schema <runid> [dataset]",
		Short: "Show the dataset catalog of a run",
		Long: `List the cataloged datasets of a run, or the fields of one dataset.
The run is activated first when it has no catalog and auto activation is on.`,
		Example: `  wepp-query schema copacetic-note
  wepp-query schema copacetic-note landuse/landuse.parquet --format json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newServices(cmd, nil)
			runID, scenario := runctx.SplitScenario(args[0])
			rc, err := svc.resolver.Resolve(cmd.Context(), runID, scenario)
			if err != nil {
				return err
			}

			mode := resolveFormat(format, cmd.OutOrStdout())
			if len(args) == 1 {
				snap := rc.Catalog.Snapshot()
				if mode == FormatJSON {
					return renderJSON(cmd.OutOrStdout(), snap)
				}
				renderCatalog(cmd.OutOrStdout(), snap)
				return nil
			}

			entry, ok := rc.Catalog.Get(args[1])
			if !ok {
				return core.NewError(core.KindDatasetMissing, core.ErrNotFound, "dataset %s not found", args[1])
			}
			if mode == FormatJSON {
				return renderJSON(cmd.OutOrStdout(), entry)
			}
			renderFields(cmd.OutOrStdout(), entry)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", FormatAuto, "Output format (auto|table|json)")

	return cmd
}
