package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/statq/internal/engine"
	"github.com/roach88/statq/internal/results"
)

// QueryOptions holds flags for the query and explain commands.
type QueryOptions struct {
	*RootOptions
	Version  string
	Body     string
	Page     int
	PageSize int
	Debug    bool
}

func (o *QueryOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Version, "version", "", "dataset version (default latest)")
	cmd.Flags().StringVarP(&o.Body, "body", "b", "-", `query JSON file, or "-" for stdin`)
	cmd.Flags().IntVar(&o.Page, "page", 1, "page number, from 1")
	cmd.Flags().IntVar(&o.PageSize, "page-size", 0, "rows per page (default from config)")
	cmd.Flags().BoolVar(&o.Debug, "debug", false, "append labels to tokens (requires debug.allowed)")
}

func (o *QueryOptions) request(cmd *cobra.Command, dataSetID string) (engine.Request, error) {
	body, err := readBody(o.Body, cmd.InOrStdin())
	if err != nil {
		return engine.Request{}, err
	}
	return engine.Request{
		DataSetID: dataSetID,
		Version:   o.Version,
		Body:      body,
		Page:      o.Page,
		PageSize:  o.PageSize,
		Debug:     o.Debug,
	}, nil
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <dataset-id>",
		Short: "Run a query against a dataset",
		Long: `Run a faceted query against a registered dataset and print one page.

With --format json the response is the results document. With --format csv
the page is written as CSV with labels in place of tokens, and paging goes
to stderr. --format text is the CSV followed by a paging summary.

Example:
  statq query pupil-absence --body query.json
  statq query pupil-absence --format csv --page 2 --page-size 100 < query.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}
	opts.bindFlags(cmd)
	return cmd
}

func runQuery(opts *QueryOptions, dataSetID string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	req, err := opts.request(cmd, dataSetID)
	if err != nil {
		return f.fail(ErrCodeReadBody, ExitCommandError, "failed to read query", err)
	}

	env, err := openEnv(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer env.Close()

	resp, err := env.Service.Query(cmd.Context(), req)
	if err != nil {
		return f.engineError(err)
	}
	f.VerboseLog("request %s: %d of %d rows", resp.RequestID, len(resp.Document.Results), resp.Document.Paging.TotalResults)

	switch opts.Format {
	case "json":
		return f.Success(resp.RequestID, resp.Document)
	case "csv":
		if err := results.WriteCSV(f.Writer, resp.Page); err != nil {
			return WrapExitError(ExitCommandError, "failed to write csv", err)
		}
		fmt.Fprintln(f.GetErrWriter(), pagingLine(resp.Document.Paging))
		return nil
	default:
		if err := results.WriteCSV(f.Writer, resp.Page); err != nil {
			return WrapExitError(ExitCommandError, "failed to write csv", err)
		}
		fmt.Fprintln(f.Writer)
		fmt.Fprintln(f.Writer, pagingLine(resp.Document.Paging))
		for _, path := range resp.Document.Warnings.Paths() {
			for _, w := range resp.Document.Warnings[path] {
				fmt.Fprintf(f.Writer, "warning: %s: %s\n", path, w.Message)
			}
		}
		return nil
	}
}

func pagingLine(p results.Paging) string {
	return fmt.Sprintf("page %d of %d (page size %d, %d results)", p.Page, p.TotalPages, p.PageSize, p.TotalResults)
}
