package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Service file names within a context directory.
const (
	ServiceModel   = "model"
	ServiceChat    = "chat"
	ServiceStorage = "storage"
	ServiceKB      = "kb"
)

// Model providers.
const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// DefaultAzureAPIVersion is used when neither model.yaml nor
// AZURE_OPENAI_API_VERSION name one.
const DefaultAzureAPIVersion = "2025-01-01-preview"

// Model configures the chat model (model.yaml).
type Model struct {
	// Provider is azure (default), openai or gemini.
	Provider string `yaml:"provider,omitempty"`

	// APIKey may reference the environment, e.g. "$AZURE_OPENAI_API_KEY".
	APIKey string `yaml:"api_key,omitempty"`

	// Endpoint and APIVersion are Azure only.
	Endpoint   string `yaml:"endpoint,omitempty"`
	APIVersion string `yaml:"api_version,omitempty"`

	// BaseURL points the openai provider at a compatible server.
	BaseURL string `yaml:"base_url,omitempty"`

	// Model is the model name, or the deployment name on Azure.
	Model string `yaml:"model,omitempty"`

	Temperature   float32 `yaml:"temperature,omitempty"`
	MaxTokens     int     `yaml:"max_tokens,omitempty"`
	MaxToolRounds int     `yaml:"max_tool_rounds,omitempty"`

	// Retries and RetryBackoff govern retry of transient model errors.
	// The SDK clients make a single attempt per retry.
	Retries      int           `yaml:"retries,omitempty"`
	RetryBackoff time.Duration `yaml:"retry_backoff,omitempty"`
}

// Chat configures the interactive loop (chat.yaml).
type Chat struct {
	PolicyFile     string        `yaml:"policy_file,omitempty"`
	UserLabel      string        `yaml:"user_label,omitempty"`
	AssistantLabel string        `yaml:"assistant_label,omitempty"`
	ExitWord       string        `yaml:"exit_word,omitempty"`
	MaxTurns       int           `yaml:"max_turns,omitempty"`
	TurnTimeout    time.Duration `yaml:"turn_timeout,omitempty"`

	// SaveRetries and SaveRetryBackoff govern transcript persistence.
	// SaveRetries < 0 disables retry.
	SaveRetries      int           `yaml:"save_retries,omitempty"`
	SaveRetryBackoff time.Duration `yaml:"save_retry_backoff,omitempty"`

	// FoldStaffNames makes staff verification ignore case and extra
	// whitespace in display names.
	FoldStaffNames bool `yaml:"fold_staff_names,omitempty"`
}

// Storage selects the key-value and transcript backends (storage.yaml).
type Storage struct {
	// Backend is badger (default) or memory.
	Backend string `yaml:"backend,omitempty"`

	// Dir holds badger files. Default {context}/data.
	Dir string `yaml:"dir,omitempty"`

	// Transcripts is kv (default), local or s3.
	Transcripts string `yaml:"transcripts,omitempty"`

	// TranscriptDir is the local transcript root. Default
	// {context}/transcripts.
	TranscriptDir string `yaml:"transcript_dir,omitempty"`

	S3 S3 `yaml:"s3,omitempty"`
}

// S3 locates the transcript bucket.
type S3 struct {
	Bucket       string `yaml:"bucket,omitempty"`
	Prefix       string `yaml:"prefix,omitempty"`
	Region       string `yaml:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	AccessKey    string `yaml:"access_key,omitempty"`
	SecretKey    string `yaml:"secret_key,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty"`
}

// KB configures the knowledge base (kb.yaml).
type KB struct {
	// Dir holds markdown and YAML articles. Empty disables the knowledge
	// base.
	Dir string `yaml:"dir,omitempty"`

	// Embed is azure, openai or none. Defaults to the chat model provider
	// when that provider can embed, otherwise none.
	Embed string `yaml:"embed,omitempty"`

	// Credentials default to the chat model's when Embed matches its
	// provider.
	APIKey     string `yaml:"api_key,omitempty"`
	Endpoint   string `yaml:"endpoint,omitempty"`
	APIVersion string `yaml:"api_version,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty"`

	// EmbedModel is the embedding model or Azure deployment.
	EmbedModel string `yaml:"embed_model,omitempty"`
	Dimension  int    `yaml:"dimension,omitempty"`
	ChunkSize  int    `yaml:"chunk_size,omitempty"`
	TopK       int    `yaml:"top_k,omitempty"`
}

// Settings is the resolved configuration for one context.
type Settings struct {
	// Dir is the context directory.
	Dir string

	Model   Model
	Chat    Chat
	Storage Storage
	KB      KB
}

// LoadSettings reads the service files in contextDir. Missing files leave
// their section zero; call [Settings.ApplyDefaults] afterwards.
func LoadSettings(contextDir string) (*Settings, error) {
	s := &Settings{Dir: contextDir}
	if err := loadOptional(contextDir, ServiceModel, &s.Model); err != nil {
		return nil, err
	}
	if err := loadOptional(contextDir, ServiceChat, &s.Chat); err != nil {
		return nil, err
	}
	if err := loadOptional(contextDir, ServiceStorage, &s.Storage); err != nil {
		return nil, err
	}
	if err := loadOptional(contextDir, ServiceKB, &s.KB); err != nil {
		return nil, err
	}
	return s, nil
}

func loadOptional[T any](contextDir, service string, dst *T) error {
	v, err := LoadService[T](contextDir, service)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	*dst = *v
	return nil
}

// ApplyDefaults expands $VAR references and fills unset fields from getenv
// and built-in defaults. Relative paths are resolved against the context
// directory.
func (s *Settings) ApplyDefaults(getenv func(string) string) {
	expand := func(v string) string {
		if strings.HasPrefix(v, "$") {
			return os.Expand(v, getenv)
		}
		return v
	}
	orEnv := func(v, key string) string {
		if v != "" {
			return v
		}
		return getenv(key)
	}
	orDefault := func(v, def string) string {
		if v != "" {
			return v
		}
		return def
	}

	m := &s.Model
	m.Provider = strings.ToLower(orDefault(m.Provider, ProviderAzure))
	m.APIKey = expand(m.APIKey)
	m.Endpoint = expand(m.Endpoint)
	switch m.Provider {
	case ProviderAzure:
		m.APIKey = orEnv(m.APIKey, "AZURE_OPENAI_API_KEY")
		m.Endpoint = orEnv(m.Endpoint, "AZURE_OPENAI_ENDPOINT")
		m.Model = orEnv(m.Model, "AZURE_OPENAI_DEPLOYMENT")
		m.APIVersion = orDefault(orEnv(m.APIVersion, "AZURE_OPENAI_API_VERSION"), DefaultAzureAPIVersion)
	case ProviderOpenAI:
		m.APIKey = orEnv(m.APIKey, "OPENAI_API_KEY")
		m.BaseURL = orEnv(m.BaseURL, "OPENAI_BASE_URL")
		m.Model = orDefault(m.Model, "gpt-4o-mini")
	case ProviderGemini:
		m.APIKey = orEnv(m.APIKey, "GEMINI_API_KEY")
		m.Model = orDefault(m.Model, "gemini-2.0-flash")
	}

	st := &s.Storage
	st.Backend = strings.ToLower(orDefault(st.Backend, "badger"))
	st.Dir = s.path(orDefault(st.Dir, "data"))
	st.Transcripts = strings.ToLower(orDefault(st.Transcripts, "kv"))
	st.TranscriptDir = s.path(orDefault(st.TranscriptDir, "transcripts"))
	st.S3.AccessKey = orEnv(expand(st.S3.AccessKey), "AWS_ACCESS_KEY_ID")
	st.S3.SecretKey = orEnv(expand(st.S3.SecretKey), "AWS_SECRET_ACCESS_KEY")
	st.S3.Region = orDefault(orEnv(st.S3.Region, "AWS_REGION"), "us-east-1")

	if s.Chat.PolicyFile != "" {
		s.Chat.PolicyFile = s.path(s.Chat.PolicyFile)
	}

	k := &s.KB
	if k.Dir != "" {
		k.Dir = s.path(k.Dir)
	}
	if k.Embed == "" {
		k.Embed = ProviderNone
		if m.Provider == ProviderAzure || m.Provider == ProviderOpenAI {
			k.Embed = m.Provider
		}
	}
	k.Embed = strings.ToLower(k.Embed)
	k.APIKey = expand(k.APIKey)
	k.Endpoint = expand(k.Endpoint)
	if k.Embed == m.Provider {
		k.APIKey = orDefault(k.APIKey, m.APIKey)
		k.Endpoint = orDefault(k.Endpoint, m.Endpoint)
		k.APIVersion = orDefault(k.APIVersion, m.APIVersion)
		k.BaseURL = orDefault(k.BaseURL, m.BaseURL)
	}
	if k.Embed == ProviderAzure {
		k.EmbedModel = orEnv(k.EmbedModel, "AZURE_OPENAI_EMBEDDING_DEPLOYMENT")
	}
	k.EmbedModel = orDefault(k.EmbedModel, "text-embedding-3-small")
}

func (s *Settings) path(p string) string {
	if filepath.IsAbs(p) || s.Dir == "" {
		return p
	}
	return filepath.Join(s.Dir, p)
}

// Validate reports settings the chat model cannot run without.
func (m *Model) Validate() error {
	switch m.Provider {
	case ProviderAzure:
		if m.APIKey == "" {
			return fmt.Errorf("model: api_key is required (set it in model.yaml or AZURE_OPENAI_API_KEY)")
		}
		if m.Endpoint == "" {
			return fmt.Errorf("model: endpoint is required (set it in model.yaml or AZURE_OPENAI_ENDPOINT)")
		}
		if m.Model == "" {
			return fmt.Errorf("model: deployment is required (set model in model.yaml or AZURE_OPENAI_DEPLOYMENT)")
		}
	case ProviderOpenAI, ProviderGemini:
		if m.APIKey == "" {
			return fmt.Errorf("model: api_key is required for provider %s", m.Provider)
		}
	default:
		return fmt.Errorf("model: unknown provider %q (want azure, openai or gemini)", m.Provider)
	}
	return nil
}
