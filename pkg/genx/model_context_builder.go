package genx

import (
	"encoding/json"
	"fmt"
	"iter"
)

var _ ModelContext = (*modelContext)(nil)

type ModelContextBuilder struct {
	Prompts  []*Prompt
	Messages []*Message

	Tools []Tool

	Params *ModelParams
}

func (mcb *ModelContextBuilder) Build() ModelContext {
	return &modelContext{
		prompts:  mcb.Prompts,
		messages: mcb.Messages,
		tools:    mcb.Tools,
		params:   mcb.Params,
	}
}

func (mcb *ModelContextBuilder) lastPrompt() (*Prompt, bool) {
	if len(mcb.Prompts) == 0 {
		return nil, false
	}
	return mcb.Prompts[len(mcb.Prompts)-1], true
}

// AddPrompt appends a prompt. Consecutive prompts with the same name are
// merged into one, separated by a newline.
func (mcb *ModelContextBuilder) AddPrompt(prompt *Prompt) {
	if p, ok := mcb.lastPrompt(); ok && p.Name == prompt.Name {
		if p.Text != "" {
			p.Text += "\n" + prompt.Text
		} else {
			p.Text = prompt.Text
		}
		return
	}
	mcb.Prompts = append(mcb.Prompts, prompt)
}

func (mcb *ModelContextBuilder) lastMessage() (*Message, bool) {
	if len(mcb.Messages) == 0 {
		return nil, false
	}
	return mcb.Messages[len(mcb.Messages)-1], true
}

// AddMessage appends msg. A content message from the same role and name as
// the previous content message is merged into it.
func (mcb *ModelContextBuilder) AddMessage(msg *Message) {
	if m, ok := mcb.lastMessage(); ok {
		if p, ok := m.Payload.(Contents); ok && msg.Role == m.Role && msg.Name == m.Name {
			if next, ok := msg.Payload.(Contents); ok {
				merged := make(Contents, 0, len(p)+len(next))
				merged = append(merged, p...)
				m.Payload = append(merged, next...)
				return
			}
		}
	}
	mcb.Messages = append(mcb.Messages, msg)
}

func (mcb *ModelContextBuilder) AddTool(tool Tool) {
	mcb.Tools = append(mcb.Tools, tool)
}

func (mcb *ModelContextBuilder) PromptText(name, text string) {
	mcb.AddPrompt(&Prompt{
		Name: name,
		Text: text,
	})
}

func (mcb *ModelContextBuilder) UserText(name, text string) {
	mcb.AddMessage(&Message{
		Role:    RoleUser,
		Name:    name,
		Payload: Contents{Text(text)},
	})
}

func (mcb *ModelContextBuilder) ModelText(name, text string) {
	mcb.AddMessage(&Message{
		Role:    RoleModel,
		Name:    name,
		Payload: Contents{Text(text)},
	})
}

func (mcb *ModelContextBuilder) toolCall(id, fn, argument string) {
	mcb.Messages = append(mcb.Messages, &Message{
		Role:    RoleModel,
		Payload: &ToolCall{ID: id, FuncCall: &FuncCall{Name: fn, Arguments: argument}},
	})
}

func (mcb *ModelContextBuilder) toolResult(id, fn, result string) {
	mcb.Messages = append(mcb.Messages, &Message{
		Role:    RoleTool,
		Payload: &ToolResult{ID: id, Name: fn, Result: result},
	})
}

// AddToolCallResult records a tool call and its result as a pair of
// messages. An empty id gets a generated "call_" id. Non-string arguments
// and results are JSON encoded.
func (mcb *ModelContextBuilder) AddToolCallResult(id, toolName string, callArg, callResult any) error {
	argstr, ok := callArg.(string)
	if !ok {
		b, err := json.Marshal(callArg)
		if err != nil {
			return fmt.Errorf("failed to marshal tool call argument to json string: %w", err)
		}
		argstr = string(b)
	}

	resstr, ok := callResult.(string)
	if !ok {
		b, err := json.Marshal(callResult)
		if err != nil {
			return fmt.Errorf("failed to marshal tool call result to json string: %w", err)
		}
		resstr = string(b)
	}
	if id == "" {
		id = "call_" + hexString()
	}
	mcb.toolCall(id, toolName, argstr)
	mcb.toolResult(id, toolName, resstr)
	return nil
}

type modelContext struct {
	prompts  []*Prompt
	messages []*Message

	tools []Tool

	params *ModelParams
}

func (mctx *modelContext) Prompts() iter.Seq[*Prompt] {
	return func(yield func(*Prompt) bool) {
		for _, prompt := range mctx.prompts {
			if !yield(prompt) {
				return
			}
		}
	}
}

func (mctx *modelContext) Messages() iter.Seq[*Message] {
	return func(yield func(*Message) bool) {
		for _, message := range mctx.messages {
			if !yield(message) {
				return
			}
		}
	}
}

func (mctx *modelContext) Tools() iter.Seq[Tool] {
	return func(yield func(Tool) bool) {
		for _, tool := range mctx.tools {
			if !yield(tool) {
				return
			}
		}
	}
}

func (mctx *modelContext) Params() *ModelParams {
	return mctx.params
}
