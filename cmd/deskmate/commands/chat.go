package commands

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/deskmate/pkg/cli"
	"github.com/haivivi/deskmate/pkg/desk"
)

var (
	chatPlain       bool
	chatMaxTurns    int
	chatTurnTimeout time.Duration
	chatPolicyFile  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive support session",
	Long: `Start an interactive support session.

Each line you type is one turn. The assistant may verify your staff ID and
run support actions before it answers. Type the exit word (default "exit")
or send end-of-input to finish. Every completed turn is saved as a new
transcript document.

Logs are written to deskmate.log in the context directory; use -v to send
them to stderr instead.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func addChatFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&chatPlain, "plain", false, "do not style the prompt labels")
	cmd.Flags().IntVar(&chatMaxTurns, "max-turns", 0, "stop after this many turns (0: chat.yaml or unlimited)")
	cmd.Flags().DurationVar(&chatTurnTimeout, "turn-timeout", 0, "time limit for one model turn (0: chat.yaml or none)")
	cmd.Flags().StringVar(&chatPolicyFile, "policy", "", "policy prompt file (default: chat.yaml or built-in)")
}

func init() {
	addChatFlags(chatCmd)
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()
	s := a.settings

	policy, err := desk.LoadPolicy(cmp.Or(chatPolicyFile, s.Chat.PolicyFile))
	if err != nil {
		return err
	}
	directory, err := a.staffDirectory(ctx)
	if err != nil {
		return err
	}
	h := desk.Handlers{Staff: directory, KBTopK: s.KB.TopK}
	if idx, _, err := a.knowledgeBase(ctx); err != nil {
		// Search is optional; the action reports it unconfigured.
		a.logger.Error("knowledge base unavailable", "error", err)
	} else if idx != nil {
		h.KB = idx
	}
	reg, err := desk.NewCatalogue(h)
	if err != nil {
		return err
	}
	model, err := a.model(ctx, reg)
	if err != nil {
		return err
	}
	sink, err := a.transcripts()
	if err != nil {
		return err
	}

	session := desk.NewSession(policy)
	log := a.logger.With("session", session.ID)
	log.Info("session started", "provider", s.Model.Provider, "model", s.Model.Model, "actions", reg.Names())

	out := cmd.OutOrStdout()
	userLabel := cmp.Or(s.Chat.UserLabel, desk.DefaultUserLabel)
	assistantLabel := cmp.Or(s.Chat.AssistantLabel, desk.DefaultAssistantLabel)
	if !chatPlain && isTerminal(out) {
		styles := cli.NewStyles(cli.DefaultTheme)
		exitWord := cmp.Or(s.Chat.ExitWord, desk.DefaultExitWord)
		fmt.Fprintln(out, styles.RenderBanner("IT support", fmt.Sprintf("Type %q to finish.", exitWord)))
		userLabel, assistantLabel = styles.Labels(userLabel, assistantLabel)
	}

	loop := &desk.Loop{
		Session:        session,
		Model:          model,
		Invoker:        &desk.Dispatcher{Registry: reg, Session: session, Logger: log},
		Persister:      a.persister(sink, log),
		In:             cmd.InOrStdin(),
		Out:            out,
		UserLabel:      userLabel,
		AssistantLabel: assistantLabel,
		ExitWord:       s.Chat.ExitWord,
		MaxTurns:       cmp.Or(chatMaxTurns, s.Chat.MaxTurns),
		TurnTimeout:    cmp.Or(chatTurnTimeout, s.Chat.TurnTimeout),
		Logger:         log,
	}
	err = loop.Run(ctx)
	log.Info("session ended", "turns", session.Len())
	return err
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
