package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/haivivi/deskmate/cmd/deskmate/internal/config"
	"github.com/haivivi/deskmate/pkg/desk"
	"github.com/haivivi/deskmate/pkg/embed"
	"github.com/haivivi/deskmate/pkg/genx"
	"github.com/haivivi/deskmate/pkg/kb"
	"github.com/haivivi/deskmate/pkg/kv"
	"github.com/haivivi/deskmate/pkg/staff"
	"github.com/haivivi/deskmate/pkg/storage"
)

// Test hooks. When set they replace the configured backends.
var (
	testKVOverride    kv.Store
	testModelOverride desk.Model
)

// transcriptStore is a conversation sink that can be read back.
type transcriptStore interface {
	desk.Sink
	desk.Reader
}

// app holds the resources shared by commands for one invocation.
type app struct {
	settings *config.Settings
	logger   *slog.Logger
	store    kv.Store
	closers  []func() error
}

// openApp resolves the context, loads its settings and sets up logging.
// With logToFile, logs go to deskmate.log in the context directory unless
// --verbose is set.
func openApp(cmd *cobra.Command, logToFile bool) (*app, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	dir, err := cfg.ResolveContext(contextName)
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadSettings(dir)
	if err != nil {
		return nil, err
	}
	settings.ApplyDefaults(os.Getenv)

	a := &app{settings: settings}
	if err := a.setupLogger(cmd, logToFile); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) setupLogger(cmd *cobra.Command, logToFile bool) error {
	level := slog.LevelWarn
	var w io.Writer = cmd.ErrOrStderr()
	switch {
	case IsVerbose():
		level = slog.LevelDebug
	case logToFile:
		if err := os.MkdirAll(a.settings.Dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", a.settings.Dir, err)
		}
		f, err := os.OpenFile(filepath.Join(a.settings.Dir, "deskmate.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		w = f
		level = slog.LevelInfo
	}
	a.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// kv opens the configured key-value store once.
func (a *app) kv() (kv.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if testKVOverride != nil {
		a.store = testKVOverride
		return a.store, nil
	}
	st := a.settings.Storage
	switch st.Backend {
	case "memory":
		a.store = kv.NewMemory(nil)
	case "badger":
		if err := os.MkdirAll(st.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", st.Dir, err)
		}
		b, err := kv.NewBadger(kv.BadgerOptions{Dir: st.Dir, Logger: a.logger})
		if err != nil {
			return nil, err
		}
		a.store = b
	default:
		return nil, fmt.Errorf("storage: unknown backend %q (want badger or memory)", st.Backend)
	}
	a.closers = append(a.closers, a.store.Close)
	return a.store, nil
}

// transcripts opens the configured conversation sink.
func (a *app) transcripts() (transcriptStore, error) {
	st := a.settings.Storage
	switch st.Transcripts {
	case "kv":
		store, err := a.kv()
		if err != nil {
			return nil, err
		}
		return desk.NewKVSink(store, nil), nil
	case "local":
		files, err := storage.NewLocal(st.TranscriptDir)
		if err != nil {
			return nil, err
		}
		return desk.NewFileSink(files, ""), nil
	case "s3":
		if st.S3.Bucket == "" {
			return nil, fmt.Errorf("storage: s3.bucket is required for s3 transcripts")
		}
		client := storage.NewS3Client(storage.S3Options{
			Region:       st.S3.Region,
			Endpoint:     st.S3.Endpoint,
			AccessKey:    st.S3.AccessKey,
			SecretKey:    st.S3.SecretKey,
			UsePathStyle: st.S3.UsePathStyle,
		})
		return desk.NewFileSink(storage.NewS3(client, st.S3.Bucket, st.S3.Prefix), ""), nil
	default:
		return nil, fmt.Errorf("storage: unknown transcripts backend %q (want kv, local or s3)", st.Transcripts)
	}
}

// staffDirectory opens the kv-backed staff directory, seeding it with the
// built-in records when empty.
func (a *app) staffDirectory(ctx context.Context) (*staff.KVDirectory, error) {
	store, err := a.kv()
	if err != nil {
		return nil, err
	}
	dir := staff.NewKVDirectory(store, nil)
	dir.Fold = a.settings.Chat.FoldStaffNames
	records, err := dir.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		if err := dir.Put(ctx, staff.DefaultRecords()...); err != nil {
			return nil, fmt.Errorf("seed staff directory: %w", err)
		}
		a.logger.Info("seeded staff directory", "records", len(staff.DefaultRecords()))
	}
	return dir, nil
}

// persister saves transcripts to sink with the chat.yaml retry settings.
func (a *app) persister(sink desk.Sink, log *slog.Logger) *desk.Persister {
	return &desk.Persister{
		Sink:         sink,
		Retries:      a.settings.Chat.SaveRetries,
		RetryBackoff: a.settings.Chat.SaveRetryBackoff,
		Logger:       log,
	}
}

// embedder returns the configured embedder, or nil for keyword-only search.
func (a *app) embedder() embed.Embedder {
	k := a.settings.KB
	opts := []embed.Option{embed.WithModel(k.EmbedModel), embed.WithHTTPClient(a.httpClient())}
	if k.Dimension > 0 {
		opts = append(opts, embed.WithDimension(k.Dimension))
	}
	switch k.Embed {
	case config.ProviderAzure:
		if k.APIKey == "" || k.Endpoint == "" {
			a.logger.Warn("knowledge base embeddings disabled: missing azure credentials")
			return nil
		}
		return embed.NewOpenAI(k.APIKey, append(opts, embed.WithAzure(k.Endpoint, k.APIVersion))...)
	case config.ProviderOpenAI:
		if k.APIKey == "" {
			a.logger.Warn("knowledge base embeddings disabled: missing api key")
			return nil
		}
		if k.BaseURL != "" {
			opts = append(opts, embed.WithBaseURL(k.BaseURL))
		}
		return embed.NewOpenAI(k.APIKey, opts...)
	default:
		return nil
	}
}

// knowledgeBase loads and indexes the article directory. It returns nil
// when no directory is configured.
func (a *app) knowledgeBase(ctx context.Context) (*kb.Index, kb.Stats, error) {
	k := a.settings.KB
	if k.Dir == "" {
		return nil, kb.Stats{}, nil
	}
	articles, err := kb.LoadFS(os.DirFS(k.Dir))
	if err != nil {
		return nil, kb.Stats{}, fmt.Errorf("load articles from %s: %w", k.Dir, err)
	}
	store, err := a.kv()
	if err != nil {
		return nil, kb.Stats{}, err
	}
	idx := kb.NewIndex(kb.IndexConfig{
		Store:     store,
		Embedder:  a.embedder(),
		Namespace: k.Embed + "/" + k.EmbedModel,
		ChunkSize: k.ChunkSize,
	})
	stats, err := idx.Add(ctx, articles...)
	if err != nil {
		return nil, stats, fmt.Errorf("index articles: %w", err)
	}
	a.logger.Info("knowledge base indexed", "articles", stats.Articles, "passages", stats.Passages,
		"embedded", stats.Embedded, "cached", stats.Cached)
	return idx, stats, nil
}

// model builds the chat model from the model settings.
func (a *app) model(ctx context.Context, reg *desk.Registry) (desk.Model, error) {
	if testModelOverride != nil {
		return testModelOverride, nil
	}
	m := a.settings.Model
	if err := m.Validate(); err != nil {
		return nil, err
	}
	gen, err := a.generator(ctx, m)
	if err != nil {
		return nil, err
	}
	var params *genx.ModelParams
	if m.Temperature != 0 || m.MaxTokens != 0 {
		params = &genx.ModelParams{Temperature: m.Temperature, MaxTokens: m.MaxTokens}
	}
	return &desk.GenxModel{
		Generator:     gen,
		Registry:      reg,
		Params:        params,
		MaxToolRounds: m.MaxToolRounds,
		Retries:       m.Retries,
		RetryBackoff:  m.RetryBackoff,
		Logger:        a.logger,
	}, nil
}

func (a *app) generator(ctx context.Context, m config.Model) (genx.Generator, error) {
	switch m.Provider {
	case config.ProviderAzure:
		client := openai.NewClient(
			azure.WithEndpoint(m.Endpoint, m.APIVersion),
			azure.WithAPIKey(m.APIKey),
			option.WithHTTPClient(a.httpClient()),
			option.WithMaxRetries(0),
		)
		return &genx.OpenAIGenerator{Client: &client, Model: m.Model, UseSystemRole: true}, nil
	case config.ProviderOpenAI:
		opts := []option.RequestOption{
			option.WithAPIKey(m.APIKey),
			option.WithHTTPClient(a.httpClient()),
			option.WithMaxRetries(0),
		}
		if m.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(m.BaseURL))
		}
		client := openai.NewClient(opts...)
		return &genx.OpenAIGenerator{Client: &client, Model: m.Model}, nil
	case config.ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     m.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: a.httpClient(),
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return &genx.GeminiGenerator{Client: client, Model: m.Model}, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", m.Provider)
	}
}

// httpClient logs request bodies at debug level in verbose mode.
func (a *app) httpClient() *http.Client {
	if !IsVerbose() {
		return http.DefaultClient
	}
	return &http.Client{Transport: &debugTransport{base: http.DefaultTransport, logger: a.logger}}
}

type debugTransport struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
		t.logger.Debug("http request", "method", req.Method, "url", req.URL.Redacted(), "body", string(body))
	}
	return t.base.RoundTrip(req)
}
