package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/statq/internal/engine"
)

// MetaOptions holds flags for the meta command.
type MetaOptions struct {
	*RootOptions
	Version string
}

// NewMetaCommand creates the meta command.
func NewMetaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MetaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "meta <dataset-id>",
		Short: "Show a dataset's filters, locations, indicators and time periods",
		Long: `Print the metadata of a dataset version, including the tokens that
queries use to address filters, locations and indicators.

Example:
  statq meta pupil-absence
  statq meta pupil-absence --version 1.0 --format text`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeta(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Version, "version", "", "dataset version (default latest)")
	return cmd
}

func runMeta(opts *MetaOptions, dataSetID string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	env, err := openEnv(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer env.Close()

	meta, err := env.Service.Meta(cmd.Context(), dataSetID, opts.Version)
	if err != nil {
		return f.engineError(err)
	}

	if opts.Format == "json" {
		return f.Success("", meta)
	}
	writeMeta(f.Writer, meta)
	return nil
}

func writeMeta(w io.Writer, m *engine.DataSetMeta) {
	fmt.Fprintf(w, "%s %s: %d rows\n", m.DataSetID, m.Version, m.TotalResults)

	fmt.Fprintln(w, "\nTime periods:")
	for _, tp := range m.TimePeriods {
		fmt.Fprintf(w, "  %-8s %d  %s\n", tp.Code, tp.Year, tp.Label)
	}

	fmt.Fprintln(w, "\nIndicators:")
	for _, ind := range m.Indicators {
		fmt.Fprintf(w, "  %s  %s  %s\n", ind.ID, ind.Name, ind.Label)
	}

	for _, g := range m.FilterGroups {
		fmt.Fprintf(w, "\nFilter %s (%s):\n", g.Name, g.Label)
		for _, opt := range g.Options {
			marker := ""
			if opt.IsAggregate {
				marker = "  [aggregate]"
			}
			fmt.Fprintf(w, "  %s  %s%s\n", opt.ID, opt.Label, marker)
		}
	}

	for _, l := range m.Locations {
		fmt.Fprintf(w, "\nLocations %s (%s):\n", l.Level, l.Label)
		for _, opt := range l.Options {
			fmt.Fprintf(w, "  %s  %s  %s\n", opt.ID, opt.Code, opt.Name)
		}
	}
}
