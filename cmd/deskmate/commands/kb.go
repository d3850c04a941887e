package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/deskmate/pkg/cli"
	"github.com/haivivi/deskmate/pkg/desk"
)

var (
	kbTopK   int
	kbOutput outputFlags
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Knowledge base indexing and search",
	Long: `Index the knowledge base articles configured in kb.yaml and try queries
against them.

Articles are markdown files (first "# " line is the title) or YAML files with
title, body and tags. Passage embeddings are cached in the key-value store,
so re-indexing unchanged articles makes no embedding calls.`,
}

var kbIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index articles and warm the embedding cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.settings.KB.Dir == "" {
			return fmt.Errorf("no knowledge base configured; set kb dir in the context (deskmate config set <context> kb dir <path>)")
		}

		start := time.Now()
		_, stats, err := a.knowledgeBase(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		cli.PrintSuccess(out, "Indexed %d articles into %d passages in %s",
			stats.Articles, stats.Passages, cli.FormatDuration(time.Since(start)))
		if stats.Embedded+stats.Cached == 0 {
			cli.PrintWarning(out, "Embeddings disabled; search is keyword only")
			return nil
		}
		cli.PrintInfo(out, "Embeddings: %d computed, %d from cache (%s)",
			stats.Embedded, stats.Cached, a.settings.KB.EmbedModel)
		return nil
	},
}

var kbSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		idx, _, err := a.knowledgeBase(cmd.Context())
		if err != nil {
			return err
		}
		if idx == nil {
			return fmt.Errorf("no knowledge base configured")
		}
		topK := kbTopK
		if topK <= 0 {
			topK = a.settings.KB.TopK
		}
		if topK <= 0 {
			topK = desk.DefaultKBTopK
		}
		results, err := idx.Search(cmd.Context(), strings.Join(args, " "), topK)
		if err != nil {
			return err
		}

		type hit struct {
			ID    string  `json:"id" yaml:"id"`
			Title string  `json:"title" yaml:"title"`
			Score float64 `json:"score" yaml:"score"`
			Text  string  `json:"text" yaml:"text"`
		}
		hits := make([]hit, 0, len(results))
		table := cli.Table{Header: []string{"SCORE", "PASSAGE", "TITLE", "TEXT"}}
		for _, r := range results {
			hits = append(hits, hit{ID: r.Passage.ID, Title: r.Passage.Title, Score: r.Score, Text: r.Passage.Text})
			table.Rows = append(table.Rows, []string{
				strconv.FormatFloat(r.Score, 'f', 3, 64),
				r.Passage.ID,
				r.Passage.Title,
				cli.Truncate(strings.Join(strings.Fields(r.Passage.Text), " "), 60),
			})
		}
		return kbOutput.print(cmd, hits, table)
	},
}

func init() {
	kbOutput.register(kbCmd, cli.FormatTable)
	kbSearchCmd.Flags().IntVarP(&kbTopK, "top", "k", 0, "number of passages to return (default: kb.yaml top_k or 3)")

	kbCmd.AddCommand(kbIndexCmd)
	kbCmd.AddCommand(kbSearchCmd)
	rootCmd.AddCommand(kbCmd)
}
