package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/deskmate/cmd/deskmate/internal/config"
)

var (
	// Global flags
	verbose     bool
	contextName string

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "deskmate",
	Short: "Conversational IT support assistant",
	Long: `deskmate - an IT support assistant that answers in plain language and
runs a fixed catalogue of support actions (staff verification, BitLocker
recovery, password and PIN resets, knowledge base search, incident tickets).

Running deskmate without a command starts a chat session.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/deskmate/
  Linux:   ~/.config/deskmate/
  Windows: %AppData%/deskmate/

Without a context, the Azure OpenAI settings come from the environment:
  AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
  AZURE_OPENAI_API_VERSION (default ` + config.DefaultAzureAPIVersion + `)

Examples:
  # Chat with environment defaults
  deskmate

  # Create a context and point it at OpenAI
  deskmate config add-context dev
  deskmate config set dev model provider openai
  deskmate config set dev model api_key '$OPENAI_API_KEY'
  deskmate config use-context dev

  # Index the knowledge base and read back transcripts
  deskmate config set dev kb dir ./articles
  deskmate kb index
  deskmate transcripts list`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runChat,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (chat logs go to stderr)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context to use (default: current context)")
	addChatFlags(rootCmd)
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		// Commands that need config report it through GetConfig, so
		// 'deskmate version' still works.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
// Returns an error if the config could not be loaded (e.g., HOME not set).
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
