package genx

import (
	"context"
	"fmt"
)

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

var (
	_ Payload = (*Contents)(nil)
	_ Payload = (*ToolCall)(nil)
	_ Payload = (*ToolResult)(nil)

	_ Part = (*Text)(nil)
)

type Message struct {
	Role    Role
	Name    string
	Payload Payload
}

type Role string

func (r Role) String() string {
	return string(r)
}

type Payload interface {
	isPayload()
}

type FuncCall struct {
	Name      string
	Arguments string

	tool *FuncTool
}

// Tool returns the FuncTool this call is bound to, or nil when the model
// named a function that was not offered.
func (f *FuncCall) Tool() *FuncTool {
	return f.tool
}

func (f *FuncCall) Invoke(ctx context.Context) (any, error) {
	if f.tool == nil {
		return nil, fmt.Errorf("tool not found: name=%s", f.Name)
	}
	if f.tool.Invoke == nil {
		return nil, fmt.Errorf("invoke function not set: name=%s", f.Name)
	}
	return f.tool.Invoke(ctx, f, f.Arguments)
}

type ToolCall struct {
	ID       string
	FuncCall *FuncCall
}

func (*ToolCall) isPayload() {}

func (tool *ToolCall) Invoke(ctx context.Context) (any, error) {
	if tool.FuncCall == nil {
		return nil, fmt.Errorf("invoke can only be called on function call: id=%s", tool.ID)
	}
	return tool.FuncCall.Invoke(ctx)
}

type ToolResult struct {
	ID string
	// Name is the function name. Gemini matches results by name rather
	// than by call id.
	Name   string
	Result string
}

func (*ToolResult) isPayload() {}

type Contents []Part

func (Contents) isPayload() {}

type Part interface {
	isPart()
}

type Text string

func (Text) isPart() {}

// bindToolCalls attaches FuncTools from mctx to calls by function name.
func bindToolCalls(mctx ModelContext, calls []*ToolCall) {
	if len(calls) == 0 {
		return
	}
	tools := make(map[string]*FuncTool)
	for t := range mctx.Tools() {
		if ft, ok := t.(*FuncTool); ok {
			tools[ft.Name] = ft
		}
	}
	for _, c := range calls {
		if c.FuncCall == nil {
			continue
		}
		c.FuncCall.tool = tools[c.FuncCall.Name]
	}
}
