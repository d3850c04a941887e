package genx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// fakeChatServer serves canned chat completion responses and records the
// decoded request bodies.
type fakeChatServer struct {
	responses []string
	requests  []map[string]any
}

func (f *fakeChatServer) start(t *testing.T) *OpenAIGenerator {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		f.requests = append(f.requests, req)
		if len(f.responses) == 0 {
			http.Error(w, `{"error":{"message":"no more responses"}}`, http.StatusInternalServerError)
			return
		}
		resp := f.responses[0]
		f.responses = f.responses[1:]
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)
	client := openai.NewClient(
		option.WithBaseURL(srv.URL+"/"),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	return &OpenAIGenerator{Client: &client, Model: "gpt-4o", UseSystemRole: true}
}

func testModelContext() ModelContext {
	mcb := &ModelContextBuilder{}
	mcb.PromptText("", "You are an IT service desk assistant.")
	mcb.UserText("", "My name is John Doe")
	mcb.AddTool(NewFuncTool("staff_id_verification", "Verify Staff ID for a user", &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"user_name": {Type: "string", Description: "full display name"},
		},
		Required: []string{"user_name"},
	}, func(_ context.Context, _ *FuncCall, arg string) (any, error) {
		return "JD12345", nil
	}))
	return mcb.Build()
}

func TestOpenAIGenerator_ToolCalls(t *testing.T) {
	fake := &fakeChatServer{responses: []string{`{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
		"choices": [{
			"index": 0, "finish_reason": "tool_calls",
			"message": {"role": "assistant", "content": null, "tool_calls": [{
				"id": "call_1", "type": "function",
				"function": {"name": "staff_id_verification", "arguments": "{\"user_name\":\"John Doe\"}"}
			}]}
		}],
		"usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
	}`}}
	g := fake.start(t)

	mctx := testModelContext()
	reply, err := g.Generate(context.Background(), mctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reply.HasToolCalls() || len(reply.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %+v", reply.ToolCalls)
	}
	call := reply.ToolCalls[0]
	if call.ID != "call_1" || call.FuncCall.Name != "staff_id_verification" {
		t.Errorf("call = %+v", call)
	}
	if reply.Usage.PromptTokenCount != 42 || reply.Usage.GeneratedTokenCount != 7 {
		t.Errorf("Usage = %+v", reply.Usage)
	}
	res, err := call.Invoke(context.Background())
	if err != nil {
		t.Fatalf("bound call Invoke: %v", err)
	}
	if res != "JD12345" {
		t.Errorf("Invoke = %v", res)
	}

	req := fake.requests[0]
	if req["model"] != "gpt-4o" {
		t.Errorf("model = %v", req["model"])
	}
	if req["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v, want auto", req["tool_choice"])
	}
	tools, _ := req["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v", req["tools"])
	}
	msgs, _ := req["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", req["messages"])
	}
	if role := msgs[0].(map[string]any)["role"]; role != "system" {
		t.Errorf("first role = %v, want system", role)
	}
}

func TestOpenAIGenerator_TextAndHistory(t *testing.T) {
	fake := &fakeChatServer{responses: []string{`{
		"id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "gpt-4o",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "## Verified\n**JD12345**"}}],
		"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
	}`}}
	g := fake.start(t)

	mcb := &ModelContextBuilder{}
	mcb.UserText("", "My name is John Doe")
	if err := mcb.AddToolCallResult("call_1", "staff_id_verification", `{"user_name":"John Doe"}`, "JD12345"); err != nil {
		t.Fatal(err)
	}
	reply, err := g.Generate(context.Background(), mcb.Build())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reply.Text != "## Verified\n**JD12345**" || reply.HasToolCalls() {
		t.Errorf("reply = %+v", reply)
	}

	msgs := fake.requests[0]["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	tool := msgs[2].(map[string]any)
	if tool["role"] != "tool" || tool["tool_call_id"] != "call_1" {
		t.Errorf("tool message = %v", tool)
	}
	if _, ok := fake.requests[0]["tools"]; ok {
		t.Error("tools sent without any FuncTool")
	}
}

func TestOpenAIGenerator_ConsecutiveUserText(t *testing.T) {
	fake := &fakeChatServer{responses: []string{`{
		"id": "chatcmpl-3", "object": "chat.completion", "created": 1, "model": "gpt-4o",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "ok"}}]
	}`}}
	g := fake.start(t)

	mcb := &ModelContextBuilder{}
	mcb.PromptText("", "You are an IT service desk assistant.")
	mcb.UserText("", "first")
	mcb.UserText("", "second")
	if _, err := g.Generate(context.Background(), mcb.Build()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	msgs := fake.requests[0]["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	user := msgs[1].(map[string]any)
	if user["role"] != "user" || user["content"] != "first\nsecond" {
		t.Errorf("user message = %v", user)
	}
}

func TestOpenAIGenerator_States(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status Status
	}{
		{"length", `{"id":"c","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"length","message":{"role":"assistant","content":"partial"}}]}`, StatusTruncated},
		{"refusal", `{"id":"c","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":null,"refusal":"no"}}]}`, StatusBlocked},
		{"empty", `{"id":"c","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":""}}]}`, StatusError},
		{"no choices", `{"id":"c","object":"chat.completion","created":1,"model":"m","choices":[]}`, StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := (&fakeChatServer{responses: []string{tt.body}}).start(t)
			_, err := g.Generate(context.Background(), testModelContext())
			var st *State
			if !errors.As(err, &st) {
				t.Fatalf("err = %v, want *State", err)
			}
			if st.Status() != tt.status {
				t.Errorf("Status = %v, want %v", st.Status(), tt.status)
			}
		})
	}
}

func TestOpenAIGenerator_HTTPError(t *testing.T) {
	g := (&fakeChatServer{}).start(t)
	_, err := g.Generate(context.Background(), testModelContext())
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *openai.Error", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if IsModelState(err) {
		t.Error("transport error classified as model state")
	}
}
