package genx

import (
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"
)

func TestGeminiConvModelContext(t *testing.T) {
	mcb := &ModelContextBuilder{Params: &ModelParams{MaxTokens: 256, Temperature: 0.2}}
	mcb.PromptText("", "You are an IT service desk assistant.")
	mcb.UserText("", "My name is John Doe")
	mcb.AddTool(NewFuncTool("staff_id_verification", "Verify Staff ID", &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{"user_name": {Type: "string"}},
		Required:   []string{"user_name"},
	}, nil))
	if err := mcb.AddToolCallResult("call_1", "staff_id_verification", `{"user_name":"John Doe"}`, "JD12345"); err != nil {
		t.Fatal(err)
	}
	mcb.ModelText("", "You are verified.")

	g := &GeminiGenerator{Model: "gemini-2.5-flash"}
	cfg, contents, err := g.convModelContext(mcb.Build())
	if err != nil {
		t.Fatalf("convModelContext: %v", err)
	}
	if cfg.SystemInstruction == nil || len(cfg.SystemInstruction.Parts) != 1 {
		t.Errorf("SystemInstruction = %+v", cfg.SystemInstruction)
	}
	if cfg.MaxOutputTokens != 256 {
		t.Errorf("MaxOutputTokens = %d", cfg.MaxOutputTokens)
	}
	if len(cfg.Tools) != 1 || len(cfg.Tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("Tools = %+v", cfg.Tools)
	}
	if cfg.ToolConfig.FunctionCallingConfig.Mode != genai.FunctionCallingConfigModeAuto {
		t.Errorf("Mode = %v", cfg.ToolConfig.FunctionCallingConfig.Mode)
	}

	// user, model(call), user(response), model(text)
	wantRoles := []string{"user", "model", "user", "model"}
	if len(contents) != len(wantRoles) {
		t.Fatalf("len(contents) = %d, want %d", len(contents), len(wantRoles))
	}
	for i, want := range wantRoles {
		if contents[i].Role != want {
			t.Errorf("contents[%d].Role = %q, want %q", i, contents[i].Role, want)
		}
	}
	resp := contents[2].Parts[0].FunctionResponse
	if resp == nil || resp.Name != "staff_id_verification" {
		t.Fatalf("function response = %+v", resp)
	}
	if resp.Response["output"] != "JD12345" {
		t.Errorf("response payload = %v", resp.Response)
	}
}

func TestGeminiConvModelContext_Empty(t *testing.T) {
	g := &GeminiGenerator{}
	if _, _, err := g.convModelContext((&ModelContextBuilder{}).Build()); err == nil {
		t.Error("expected error for empty contents")
	}
}

func TestGeminiConvSchema(t *testing.T) {
	s := geminiConvSchema(&jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"device_id": {Type: "string", Description: "PC, NB or TB prefixed id"},
			"tags":      {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
		Required: []string{"device_id"},
	})
	if s.Type != genai.TypeObject {
		t.Errorf("Type = %v", s.Type)
	}
	if s.Properties["device_id"].Type != genai.TypeString || s.Properties["device_id"].Description == "" {
		t.Errorf("device_id = %+v", s.Properties["device_id"])
	}
	if s.Properties["tags"].Items.Type != genai.TypeString {
		t.Errorf("tags.items = %+v", s.Properties["tags"].Items)
	}
	if len(s.Required) != 1 {
		t.Errorf("Required = %v", s.Required)
	}
	if geminiConvSchema(nil) != nil {
		t.Error("nil schema should convert to nil")
	}
}
