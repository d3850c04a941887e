package genx

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/goccy/go-yaml"
)

type ModelParams struct {
	MaxTokens        int     `json:"max_tokens,omitzero" yaml:"max_tokens,omitzero"`
	FrequencyPenalty float32 `json:"frequency_penalty,omitzero" yaml:"frequency_penalty,omitzero"`
	Temperature      float32 `json:"temperature,omitzero" yaml:"temperature,omitzero"`
	TopP             float32 `json:"top_p,omitzero" yaml:"top_p,omitzero"`
	PresencePenalty  float32 `json:"presence_penalty,omitzero" yaml:"presence_penalty,omitzero"`
	TopK             float32 `json:"top_k,omitzero" yaml:"top_k,omitzero"`
}

type Prompt struct {
	Name string
	Text string
}

type Tool interface {
	isTool()
}

type ModelContext interface {
	Prompts() iter.Seq[*Prompt]
	Messages() iter.Seq[*Message]
	Tools() iter.Seq[Tool]

	Params() *ModelParams
}

// Generator produces one model reply for a ModelContext.
type Generator interface {
	Generate(ctx context.Context, mctx ModelContext) (*Reply, error)
}

// Reply is a single completed model response.
type Reply struct {
	// Text is the model's text output. It may be empty when the model only
	// requested tool calls.
	Text string

	// ToolCalls are the functions the model asked to run, in order. Each
	// FuncCall is bound to the matching FuncTool from the ModelContext when
	// one exists.
	ToolCalls []*ToolCall

	Usage Usage
}

// HasToolCalls reports whether the model requested any tool calls.
func (r *Reply) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

type Usage struct {
	// Number of tokens in the prompt. When cached_content is set, this is still
	// the total effective prompt size.
	PromptTokenCount int64

	// Number of tokens in the cached part of the prompt.
	CachedContentTokenCount int64

	// Number of tokens generated.
	GeneratedTokenCount int64
}

// Add returns the sum of two usages.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokenCount:        u.PromptTokenCount + o.PromptTokenCount,
		CachedContentTokenCount: u.CachedContentTokenCount + o.CachedContentTokenCount,
		GeneratedTokenCount:     u.GeneratedTokenCount + o.GeneratedTokenCount,
	}
}

func (u Usage) String() string {
	b, _ := yaml.Marshal(map[string]map[string]any{
		"Usage": {
			"Prompt":    u.PromptTokenCount,
			"Cached":    u.CachedContentTokenCount,
			"Generated": u.GeneratedTokenCount,
		},
	})
	return string(b)
}

// InspectModelContext renders a ModelContext as readable markdown. It is used
// for debug logging.
func InspectModelContext(mctx ModelContext) string {
	var sb strings.Builder
	sb.WriteString("## Prompts\n")
	for p := range mctx.Prompts() {
		fmt.Fprintf(&sb, "### %s\n%s\n", p.Name, strings.TrimSpace(p.Text))
	}
	sb.WriteString("## Tools\n")
	for t := range mctx.Tools() {
		sb.WriteString(InspectTool(t))
		sb.WriteString("\n")
	}
	sb.WriteString("## Messages\n")
	for m := range mctx.Messages() {
		sb.WriteString(InspectMessage(m))
	}
	return sb.String()
}

func InspectTool(tool Tool) string {
	switch t := tool.(type) {
	case *FuncTool:
		name := strings.Trim(fmt.Sprintf("%q", t.Name), `"`)
		return fmt.Sprintf("### %s\n%s", name, t.Description)
	}
	return ""
}

func InspectMessage(msg *Message) string {
	if msg == nil {
		return ""
	}
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s\n", msg.Role.String())
	if msg.Name != "" {
		fmt.Fprintln(&sb, strings.Trim(fmt.Sprintf("%q", msg.Name), `"`))
	}
	switch p := msg.Payload.(type) {
	case Contents:
		for _, part := range p {
			switch pt := part.(type) {
			case Text:
				fmt.Fprintln(&sb, pt)
			default:
				fmt.Fprintf(&sb, "[%T]\n", part)
			}
		}
	case *ToolCall:
		fmt.Fprintf(&sb, "[%s]\n", p.ID)
		if p.FuncCall != nil {
			fmt.Fprintf(&sb, "%s(%s)\n", strings.Trim(fmt.Sprintf("%q", p.FuncCall.Name), `"`), p.FuncCall.Arguments)
		}
	case *ToolResult:
		fmt.Fprintf(&sb, "[%s]\n", p.ID)
		fmt.Fprintln(&sb, p.Result)
	}
	return sb.String()
}
