package commands

import (
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/deskmate/pkg/cli"
	"github.com/haivivi/deskmate/pkg/desk"
)

var transcriptsOutput outputFlags

var transcriptsCmd = &cobra.Command{
	Use:     "transcripts",
	Aliases: []string{"tx"},
	Short:   "Read back persisted conversations",
	Long: `Read back the conversation documents saved after every chat turn.

Each document holds the full transcript up to that turn, so a session of
N turns leaves N documents.

Examples:
  deskmate transcripts list
  deskmate transcripts get <id>
  deskmate transcripts get <id> -o raw -q '.conversation[] | select(.role == "user") | .content'`,
}

var transcriptsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List conversation documents",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		store, err := a.transcripts()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		ids, err := store.List(ctx)
		if err != nil {
			return err
		}
		slices.Sort(ids)

		type summary struct {
			ID    string `json:"id" yaml:"id"`
			Turns int    `json:"turns" yaml:"turns"`
			First string `json:"first,omitempty" yaml:"first,omitempty"`
		}
		summaries := make([]summary, 0, len(ids))
		table := cli.Table{Header: []string{"ID", "TURNS", "FIRST MESSAGE"}}
		for _, id := range ids {
			doc, err := store.Get(ctx, id)
			if err != nil {
				return err
			}
			s := summary{ID: id, Turns: len(doc.Conversation)}
			for _, t := range doc.Conversation {
				if t.Role == desk.RoleUser {
					s.First = t.Content
					break
				}
			}
			summaries = append(summaries, s)
			table.Rows = append(table.Rows, []string{id, strconv.Itoa(s.Turns), cli.Truncate(s.First, 50)})
		}
		return transcriptsOutput.print(cmd, summaries, table)
	},
}

var transcriptsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one conversation document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		store, err := a.transcripts()
		if err != nil {
			return err
		}
		doc, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		table := cli.Table{Header: []string{"#", "ROLE", "CONTENT", "ACTIONS"}}
		for i, t := range doc.Conversation {
			var actions []string
			for _, c := range t.Calls {
				name := c.Action
				if c.Refused {
					name += " (refused)"
				}
				actions = append(actions, name)
			}
			table.Rows = append(table.Rows, []string{
				strconv.Itoa(i), string(t.Role), cli.Truncate(t.Content, 70), cli.Truncate(strings.Join(actions, ", "), 40),
			})
		}
		return transcriptsOutput.print(cmd, doc, table)
	},
}

func init() {
	transcriptsOutput.register(transcriptsCmd, cli.FormatYAML)

	transcriptsCmd.AddCommand(transcriptsListCmd)
	transcriptsCmd.AddCommand(transcriptsGetCmd)
	rootCmd.AddCommand(transcriptsCmd)
}
