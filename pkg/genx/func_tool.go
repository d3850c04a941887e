package genx

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

var _ Tool = (*FuncTool)(nil)

type InvokeFunc[T any] func(ctx context.Context, call *FuncCall, arg T) (any, error)

// FuncTool is a function the model may call. Argument is the JSON schema of
// the single object argument the model must supply.
type FuncTool struct {
	Name        string
	Description string
	Argument    *jsonschema.Schema

	// Invoke receives the arguments exactly as the model produced them.
	Invoke InvokeFunc[string]
}

func NewFuncTool(name, description string, schema *jsonschema.Schema, fn InvokeFunc[string]) *FuncTool {
	return &FuncTool{
		Name:        name,
		Description: description,
		Argument:    schema,
		Invoke:      fn,
	}
}

func (tool *FuncTool) NewFuncCall(args string) *FuncCall {
	return &FuncCall{
		Name:      tool.Name,
		Arguments: args,

		tool: tool,
	}
}

func (*FuncTool) isTool() {}
