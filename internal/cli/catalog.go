package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/statq/internal/catalog"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the dataset catalog",
	}
	cmd.AddCommand(newCatalogSyncCommand(rootOpts))
	cmd.AddCommand(newCatalogListCommand(rootOpts))
	return cmd
}

func newCatalogSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Register the datasets declared in the config file",
		Long: `Register every dataset and version declared under dataSets in the config
file. Existing versions keep their order and have their directory updated.

Example:
  statq catalog sync --config statq.cue`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogSync(opts, cmd)
		},
	}
}

// syncSummary is the result of catalog sync.
type syncSummary struct {
	DataSets int `json:"dataSets"`
	Versions int `json:"versions"`
}

func (s syncSummary) String() string {
	return fmt.Sprintf("registered %d datasets, %d versions", s.DataSets, s.Versions)
}

func runCatalogSync(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logger := opts.logger()

	cfg, cat, err := openCatalog(opts, f)
	if err != nil {
		return err
	}
	defer cat.Close()

	var summary syncSummary
	for _, id := range cfg.DataSetIDs() {
		declared := cfg.DataSets[id]
		ds := catalog.DataSet{ID: id, Title: declared.Title}
		for _, v := range declared.Versions {
			ds.Versions = append(ds.Versions, catalog.Version{Version: v.Version, Dir: v.Dir})
		}

		if err := cat.Register(cmd.Context(), ds); err != nil {
			return f.fail(ErrCodeCatalog, ExitCommandError, "failed to register dataset", err)
		}
		logger.Debug("registered dataset", slog.String("id", id), slog.Int("versions", len(ds.Versions)))
		summary.DataSets++
		summary.Versions += len(ds.Versions)
	}

	return f.Success("", summary)
}

func newCatalogListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List registered datasets and versions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogList(opts, cmd)
		},
	}
}

// dataSetEntry is one dataset in catalog list output.
type dataSetEntry struct {
	ID       string         `json:"id"`
	Title    string         `json:"title,omitempty"`
	Versions []versionEntry `json:"versions"`
}

type versionEntry struct {
	Version string `json:"version"`
	Dir     string `json:"dir"`
}

func runCatalogList(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	_, cat, err := openCatalog(opts, f)
	if err != nil {
		return err
	}
	defer cat.Close()

	sets, err := cat.List(cmd.Context())
	if err != nil {
		return f.fail(ErrCodeCatalog, ExitCommandError, "failed to list datasets", err)
	}

	entries := make([]dataSetEntry, len(sets))
	for i, ds := range sets {
		entries[i] = dataSetEntry{ID: ds.ID, Title: ds.Title, Versions: []versionEntry{}}
		for _, v := range ds.Versions {
			entries[i].Versions = append(entries[i].Versions, versionEntry{Version: v.Version, Dir: v.Dir})
		}
	}

	if opts.Format == "json" {
		return f.Success("", entries)
	}
	for _, e := range entries {
		fmt.Fprintf(f.Writer, "%s\t%s\n", e.ID, e.Title)
		for _, v := range e.Versions {
			fmt.Fprintf(f.Writer, "  %s\t%s\n", v.Version, v.Dir)
		}
	}
	return nil
}
