package genx

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
)

func TestModelContextBuilder_Build(t *testing.T) {
	mcb := &ModelContextBuilder{Params: &ModelParams{MaxTokens: 100, Temperature: 0.7}}
	mcb.PromptText("policy", "You are an IT service desk assistant.")
	mcb.UserText("", "I forgot my password")
	mcb.AddTool(NewFuncTool("staff_id_verification", "Verify Staff ID", nil, nil))

	mctx := mcb.Build()

	prompts := slices.Collect(mctx.Prompts())
	if len(prompts) != 1 || prompts[0].Name != "policy" {
		t.Fatalf("prompts = %+v", prompts)
	}
	msgs := slices.Collect(mctx.Messages())
	if len(msgs) != 1 || msgs[0].Role != RoleUser {
		t.Fatalf("messages = %+v", msgs)
	}
	tools := slices.Collect(mctx.Tools())
	if len(tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(tools))
	}
	if mctx.Params().MaxTokens != 100 {
		t.Errorf("Params().MaxTokens = %d, want 100", mctx.Params().MaxTokens)
	}
}

func TestModelContextBuilder_MergePrompts(t *testing.T) {
	mcb := &ModelContextBuilder{}
	mcb.PromptText("policy", "line one")
	mcb.PromptText("policy", "line two")
	mcb.PromptText("other", "line three")

	if len(mcb.Prompts) != 2 {
		t.Fatalf("len(Prompts) = %d, want 2", len(mcb.Prompts))
	}
	if mcb.Prompts[0].Text != "line one\nline two" {
		t.Errorf("merged prompt = %q", mcb.Prompts[0].Text)
	}
}

func TestModelContextBuilder_MergeMessages(t *testing.T) {
	mcb := &ModelContextBuilder{}
	mcb.UserText("", "hello")
	mcb.UserText("", "again")
	mcb.ModelText("", "hi")

	if len(mcb.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(mcb.Messages))
	}
	c := mcb.Messages[0].Payload.(Contents)
	if len(c) != 2 {
		t.Errorf("merged user contents = %d parts, want 2", len(c))
	}
}

func TestModelContextBuilder_AddToolCallResult(t *testing.T) {
	mcb := &ModelContextBuilder{}
	mcb.UserText("", "my name is John Doe")
	if err := mcb.AddToolCallResult("call_1", "staff_id_verification", map[string]string{"user_name": "John Doe"}, "JD12345"); err != nil {
		t.Fatalf("AddToolCallResult: %v", err)
	}
	if err := mcb.AddToolCallResult("", "knowledge_base_search", `{"query":"vpn"}`, []string{"a", "b"}); err != nil {
		t.Fatalf("AddToolCallResult: %v", err)
	}
	if len(mcb.Messages) != 5 {
		t.Fatalf("len(Messages) = %d, want 5", len(mcb.Messages))
	}

	call := mcb.Messages[1].Payload.(*ToolCall)
	if call.ID != "call_1" || call.FuncCall.Arguments != `{"user_name":"John Doe"}` {
		t.Errorf("call = %+v / %+v", call, call.FuncCall)
	}
	res := mcb.Messages[2].Payload.(*ToolResult)
	if res.ID != "call_1" || res.Name != "staff_id_verification" || res.Result != "JD12345" {
		t.Errorf("result = %+v", res)
	}

	generated := mcb.Messages[3].Payload.(*ToolCall)
	if !strings.HasPrefix(generated.ID, "call_") {
		t.Errorf("generated id = %q, want call_ prefix", generated.ID)
	}
	if got := mcb.Messages[4].Payload.(*ToolResult).Result; got != `["a","b"]` {
		t.Errorf("json result = %q", got)
	}
}

func TestFuncCall_Invoke(t *testing.T) {
	tool := NewFuncTool("echo", "Echo arguments", &jsonschema.Schema{Type: "object"},
		func(_ context.Context, call *FuncCall, arg string) (any, error) {
			return call.Name + ":" + arg, nil
		})

	got, err := tool.NewFuncCall(`{"x":1}`).Invoke(context.Background())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != `echo:{"x":1}` {
		t.Errorf("Invoke = %v", got)
	}

	unbound := &ToolCall{ID: "c", FuncCall: &FuncCall{Name: "missing"}}
	if _, err := unbound.Invoke(context.Background()); err == nil {
		t.Error("expected error invoking unbound call")
	}
	if _, err := (&ToolCall{ID: "c"}).Invoke(context.Background()); err == nil {
		t.Error("expected error invoking tool call without function")
	}
}

func TestBindToolCalls(t *testing.T) {
	mcb := &ModelContextBuilder{}
	tool := NewFuncTool("staff_id_verification", "", nil, nil)
	mcb.AddTool(tool)
	calls := []*ToolCall{
		{ID: "1", FuncCall: &FuncCall{Name: "staff_id_verification"}},
		{ID: "2", FuncCall: &FuncCall{Name: "format_disk"}},
	}
	bindToolCalls(mcb.Build(), calls)
	if calls[0].FuncCall.Tool() != tool {
		t.Error("known tool not bound")
	}
	if calls[1].FuncCall.Tool() != nil {
		t.Error("unknown tool bound")
	}
}

func TestInspectModelContext(t *testing.T) {
	mcb := &ModelContextBuilder{}
	mcb.PromptText("policy", "Verify staff first.")
	mcb.UserText("", "reset my pin")
	mcb.AddTool(NewFuncTool("etech_log_pin_reset", "Reset Etech Log PIN for a user", nil, nil))
	_ = mcb.AddToolCallResult("call_9", "etech_log_pin_reset", `{"staff_id":"JD12345"}`, "done")

	out := InspectModelContext(mcb.Build())
	for _, want := range []string{"### policy", "Verify staff first.", "### etech_log_pin_reset", "reset my pin", "[call_9]", "done"} {
		if !strings.Contains(out, want) {
			t.Errorf("InspectModelContext missing %q:\n%s", want, out)
		}
	}
}

func TestUsage(t *testing.T) {
	u := Usage{PromptTokenCount: 10, GeneratedTokenCount: 2}.Add(Usage{PromptTokenCount: 5, CachedContentTokenCount: 1})
	if u.PromptTokenCount != 15 || u.CachedContentTokenCount != 1 || u.GeneratedTokenCount != 2 {
		t.Errorf("Add = %+v", u)
	}
	if !strings.Contains(u.String(), "Prompt: 15") {
		t.Errorf("String() = %q", u.String())
	}
}
