package commands

import (
	"github.com/spf13/cobra"

	"github.com/haivivi/deskmate/pkg/cli"
	"github.com/haivivi/deskmate/pkg/staff"
)

var staffOutput outputFlags

var staffCmd = &cobra.Command{
	Use:   "staff",
	Short: "Inspect or import the staff directory",
	Long: `Inspect or import the staff directory used for identity verification.

The directory lives in the context's key-value store and is seeded with the
built-in records on first use. Import files are YAML or JSON, either a
list of records or a name to id mapping:

  - name: Jane Smith
    id: JS67890

  Jane Smith: JS67890`,
}

var staffListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List staff records",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		dir, err := a.staffDirectory(cmd.Context())
		if err != nil {
			return err
		}
		records, err := dir.List(cmd.Context())
		if err != nil {
			return err
		}
		table := cli.Table{Header: []string{"NAME", "ID"}}
		for _, r := range records {
			table.Rows = append(table.Rows, []string{r.Name, r.ID})
		}
		return staffOutput.print(cmd, records, table)
	},
}

var staffImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Add or replace staff records from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		dir, err := a.staffDirectory(cmd.Context())
		if err != nil {
			return err
		}

		records, err := staff.LoadRecords(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		if err := dir.Put(cmd.Context(), records...); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "Imported %d staff records", len(records))
		return nil
	},
}

func init() {
	staffOutput.register(staffCmd, cli.FormatTable)

	staffCmd.AddCommand(staffListCmd)
	staffCmd.AddCommand(staffImportCmd)
	rootCmd.AddCommand(staffCmd)
}
