package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/statq/internal/engine"
	"github.com/roach88/statq/internal/querysql"
)

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <dataset-id>",
		Short: "Show the SQL a query compiles to, without running it",
		Long: `Compile a query and print its count and fetch statements.

The statements are validated exactly as query does, so an invalid query is
reported the same way. In text form parameters are inlined for reading;
the engine always binds them.

Example:
  statq explain pupil-absence --body query.json --format text`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}
	opts.bindFlags(cmd)
	return cmd
}

func runExplain(opts *QueryOptions, dataSetID string, cmd *cobra.Command) error {
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

	exp, err := env.Service.Explain(cmd.Context(), req)
	if err != nil {
		return f.engineError(err)
	}

	if opts.Format == "json" {
		return f.Success(exp.RequestID, exp)
	}
	writeExplanation(f.Writer, exp)
	return nil
}

func writeExplanation(w io.Writer, exp *engine.Explanation) {
	fmt.Fprintf(w, "-- count (version %s)\n%s;\n\n", exp.Version, querysql.Render(exp.CountSQL, exp.CountParams))
	fmt.Fprintf(w, "-- fetch\n%s;\n", querysql.Render(exp.FetchSQL, exp.FetchParams))
	for _, path := range exp.Warnings.Paths() {
		for _, issue := range exp.Warnings[path] {
			fmt.Fprintf(w, "-- warning: %s: %s\n", path, issue.Message)
		}
	}
}
