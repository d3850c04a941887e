package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestContexts(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if dir, err := cfg.ResolveContext(""); err != nil || dir != cfg.Dir {
		t.Fatalf("ResolveContext with no context = %q, %v", dir, err)
	}
	if err := cfg.AddContext("dev"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.AddContext("dev"); err == nil {
		t.Fatal("AddContext(dev) twice succeeded")
	}
	if err := cfg.AddContext("../x"); err == nil {
		t.Fatal("AddContext accepted a path")
	}
	if err := cfg.UseContext("prod"); err == nil {
		t.Fatal("UseContext(prod) succeeded for a missing context")
	}
	if err := cfg.UseContext("dev"); err != nil {
		t.Fatal(err)
	}

	reloaded, err := LoadFrom(cfg.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.CurrentContext != "dev" {
		t.Fatalf("CurrentContext = %q, want dev", reloaded.CurrentContext)
	}
	dir, err := reloaded.ResolveContext("")
	if err != nil || dir != reloaded.ContextDir("dev") {
		t.Fatalf("ResolveContext = %q, %v", dir, err)
	}

	names, err := reloaded.ListContexts()
	if err != nil || len(names) != 1 || names[0] != "dev" {
		t.Fatalf("ListContexts = %v, %v", names, err)
	}

	if err := reloaded.DeleteContext("dev"); err != nil {
		t.Fatal(err)
	}
	if reloaded.CurrentContext != "" {
		t.Fatalf("CurrentContext after delete = %q", reloaded.CurrentContext)
	}
}

func TestServiceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := &Chat{ExitWord: "quit", MaxTurns: 5, TurnTimeout: 30 * time.Second}
	if err := SaveService(dir, ServiceChat, in); err != nil {
		t.Fatal(err)
	}
	out, err := LoadService[Chat](dir, ServiceChat)
	if err != nil {
		t.Fatal(err)
	}
	if *out != *in {
		t.Fatalf("LoadService = %+v, want %+v", out, in)
	}

	services, err := ListServices(dir)
	if err != nil || len(services) != 1 || services[0] != ServiceChat {
		t.Fatalf("ListServices = %v, %v", services, err)
	}
}

func TestLoadSettingsMissingFiles(t *testing.T) {
	s, err := LoadSettings(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if s.Model != (Model{}) || s.Chat != (Chat{}) {
		t.Fatalf("settings = %+v, want zero sections", s)
	}
}

func TestLoadSettingsBadYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "model.yaml"), []byte("provider: [oops"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(dir); err == nil {
		t.Fatal("LoadSettings succeeded on malformed YAML")
	}
}

func TestLoadSettingsRetryAndMatching(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"model.yaml": "provider: openai\nretries: 5\nretry_backoff: 250ms\n",
		"chat.yaml":  "save_retries: -1\nsave_retry_backoff: 2s\nfold_staff_names: true\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	s, err := LoadSettings(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.Model.Retries != 5 || s.Model.RetryBackoff != 250*time.Millisecond {
		t.Errorf("model retry = %d, %v", s.Model.Retries, s.Model.RetryBackoff)
	}
	if s.Chat.SaveRetries != -1 || s.Chat.SaveRetryBackoff != 2*time.Second {
		t.Errorf("save retry = %d, %v", s.Chat.SaveRetries, s.Chat.SaveRetryBackoff)
	}
	if !s.Chat.FoldStaffNames {
		t.Error("fold_staff_names not loaded")
	}
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestApplyDefaultsAzureEnv(t *testing.T) {
	dir := t.TempDir()
	s := &Settings{Dir: dir}
	s.ApplyDefaults(envMap(map[string]string{
		"AZURE_OPENAI_API_KEY":    "key-1",
		"AZURE_OPENAI_ENDPOINT":   "https://example.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT": "gpt-4o",
	}))

	m := s.Model
	if m.Provider != ProviderAzure || m.APIKey != "key-1" || m.Model != "gpt-4o" {
		t.Fatalf("model = %+v", m)
	}
	if m.APIVersion != DefaultAzureAPIVersion {
		t.Fatalf("APIVersion = %q", m.APIVersion)
	}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
	if s.Storage.Backend != "badger" || s.Storage.Dir != filepath.Join(dir, "data") {
		t.Fatalf("storage = %+v", s.Storage)
	}
	if s.KB.Embed != ProviderAzure || s.KB.APIKey != "key-1" || s.KB.Endpoint != m.Endpoint {
		t.Fatalf("kb = %+v", s.KB)
	}
}

func TestApplyDefaultsFileWins(t *testing.T) {
	s := &Settings{Model: Model{
		Provider:   "OpenAI",
		APIKey:     "$MY_KEY",
		Model:      "gpt-4.1",
		APIVersion: "",
	}}
	s.ApplyDefaults(envMap(map[string]string{
		"MY_KEY":         "from-env",
		"OPENAI_API_KEY": "ignored",
	}))
	if s.Model.Provider != ProviderOpenAI || s.Model.APIKey != "from-env" || s.Model.Model != "gpt-4.1" {
		t.Fatalf("model = %+v", s.Model)
	}
}

func TestApplyDefaultsGeminiNoEmbeddings(t *testing.T) {
	s := &Settings{Model: Model{Provider: ProviderGemini}, KB: KB{Dir: "articles"}}
	s.ApplyDefaults(envMap(map[string]string{"GEMINI_API_KEY": "g"}))
	if s.KB.Embed != ProviderNone {
		t.Fatalf("KB.Embed = %q, want none", s.KB.Embed)
	}
	if s.KB.Dir != "articles" {
		t.Fatalf("KB.Dir = %q", s.KB.Dir)
	}
	if s.Model.Model == "" || s.Model.Validate() != nil {
		t.Fatalf("model = %+v", s.Model)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		ok    bool
	}{
		{"azure complete", Model{Provider: ProviderAzure, APIKey: "k", Endpoint: "e", Model: "d"}, true},
		{"azure no key", Model{Provider: ProviderAzure, Endpoint: "e", Model: "d"}, false},
		{"azure no endpoint", Model{Provider: ProviderAzure, APIKey: "k", Model: "d"}, false},
		{"azure no deployment", Model{Provider: ProviderAzure, APIKey: "k", Endpoint: "e"}, false},
		{"openai", Model{Provider: ProviderOpenAI, APIKey: "k"}, true},
		{"gemini no key", Model{Provider: ProviderGemini}, false},
		{"unknown", Model{Provider: "llama"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.model.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, ok want %v", err, tt.ok)
			}
		})
	}
}
