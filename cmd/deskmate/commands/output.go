package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/deskmate/pkg/cli"
)

// outputFlags are the --output and --query flags of one command group.
type outputFlags struct {
	format string
	query  string
}

func (f *outputFlags) register(cmd *cobra.Command, def cli.OutputFormat) {
	cmd.PersistentFlags().StringVarP(&f.format, "output", "o", string(def), "output format (yaml, json, table, raw)")
	cmd.PersistentFlags().StringVarP(&f.query, "query", "q", "", "jq expression applied to yaml/json/raw output")
}

// print writes result in the selected format, or table for table output.
func (f *outputFlags) print(cmd *cobra.Command, result any, table cli.Table) error {
	format, err := cli.ParseFormat(f.format)
	if err != nil {
		return err
	}
	if format == cli.FormatTable && f.query == "" {
		result = table
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		Query:  f.query,
		Writer: cmd.OutOrStdout(),
	})
}
