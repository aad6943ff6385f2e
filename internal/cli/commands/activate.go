package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/weppcloud/queryengine/pkg/catalog"
	"github.com/weppcloud/queryengine/pkg/core"
	"github.com/weppcloud/queryengine/pkg/runctx"
)

// NewActivateCommand creates the activate command.
func NewActivateCommand() *cobra.Command {
	var interchange bool

	cmd := &cobra.Command{
		Use:   "activate <runid>",
		Short: "Scan a run and write its dataset catalog",
		Long: `Walk the run directory, read the schema of every columnar asset and
write _query_engine/catalog.json. With --interchange, derived Parquet
products are generated for wepp/output directories first.`,
		Example: `  wepp-query activate copacetic-note
  wepp-query activate copacetic-note/_pups/omni/scenarios/mulch --interchange`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newServices(cmd, nil)
			runID, scenario := runctx.SplitScenario(args[0])
			base, err := svc.resolver.Locate(runID, scenario)
			if err != nil {
				return err
			}

			start := time.Now()
			cat, err := svc.activator.Activate(cmd.Context(), base, interchange)
			if err != nil {
				return err
			}

			var size int64
			for _, e := range cat.Entries() {
				size += e.SizeBytes
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Activated %s: %d datasets (%s) in %s\n",
				runctx.Describe(runID, scenario), cat.Len(), humanize.Bytes(uint64(size)),
				time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&interchange, "interchange", false, "Generate interchange products before scanning")

	return cmd
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <runid> <path>...",
		Short: "Update catalog entries for changed files",
		Long: `Re-read the given run-relative files and update their catalog entries.
Files that no longer exist are removed from the catalog.`,
		Example: `  wepp-query refresh copacetic-note landuse/landuse.parquet`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newServices(cmd, nil)
			runID, scenario := runctx.SplitScenario(args[0])
			base, err := svc.resolver.Locate(runID, scenario)
			if err != nil {
				return err
			}
			if !catalog.Exists(base) {
				return core.NewError(core.KindCatalogMissing, core.ErrNotFound, "%s has not been activated", args[0])
			}

			for _, rel := range args[1:] {
				entry, err := svc.activator.UpdateEntry(cmd.Context(), base, rel)
				if err != nil {
					return fmt.Errorf("refresh %s: %w", rel, err)
				}
				if entry == nil {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", rel)
					continue
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "~ %s (%s)\n", entry.Path, humanize.Bytes(uint64(entry.SizeBytes)))
			}
			return nil
		},
	}
}
