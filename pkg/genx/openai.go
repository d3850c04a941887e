package genx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
)

var _ Generator = (*OpenAIGenerator)(nil)

const (
	oaiFinishReasonStop          string = "stop"
	oaiFinishReasonToolCalls     string = "tool_calls"
	oaiFinishReasonLength        string = "length"
	oaiFinishReasonFunctionCall  string = "function_call"
	oaiFinishReasonContentFilter string = "content_filter"

	oaiMaxTextContentLength = 1048576
)

// OpenAIGenerator implements Generator using the OpenAI chat completions API.
//
// For Azure OpenAI, build the client with azure.WithEndpoint and
// azure.WithAPIKey and set Model to the deployment name.
type OpenAIGenerator struct {
	Client *openai.Client `json:"-"`

	Model string `json:"model"`

	Params *ModelParams `json:"params,omitzero"`

	UseSystemRole bool `json:"use_system_role,omitzero"`

	// SequentialToolCalls asks the model for at most one tool call per
	// reply.
	SequentialToolCalls bool `json:"sequential_tool_calls,omitzero"`

	ExtraFields map[string]any `json:"extra_fields,omitzero"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, mctx ModelContext) (*Reply, error) {
	params, err := g.chatCompletion(mctx)
	if err != nil {
		return nil, err
	}
	resp, err := g.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, Error(oaiConvUsage(&resp.Usage), errors.New("no choices"))
	}
	usage := oaiConvUsage(&resp.Usage)
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, Blocked(usage, choice.Message.Refusal)
	}
	switch choice.FinishReason {
	case oaiFinishReasonLength:
		return nil, Truncated(usage)
	case oaiFinishReasonContentFilter:
		return nil, Blocked(usage, "content filter")
	case oaiFinishReasonStop, oaiFinishReasonToolCalls, oaiFinishReasonFunctionCall, "":
	default:
		return nil, Error(usage, fmt.Errorf("unexpected finish reason: %s", choice.FinishReason))
	}

	reply := &Reply{
		Text:  choice.Message.Content,
		Usage: usage,
	}
	for _, tc := range choice.Message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, &ToolCall{
			ID: tc.ID,
			FuncCall: &FuncCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	bindToolCalls(mctx, reply.ToolCalls)
	if reply.Text == "" && len(reply.ToolCalls) == 0 {
		return nil, Error(usage, errors.New("empty reply"))
	}
	return reply, nil
}

func (g *OpenAIGenerator) chatCompletion(mctx ModelContext) (openai.ChatCompletionNewParams, error) {
	msgs, err := g.convModelContext(mctx)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    g.Model,
	}
	mp := g.Params
	if p := mctx.Params(); p != nil {
		mp = p
	}
	if mp != nil {
		if mp.FrequencyPenalty > 0 {
			params.FrequencyPenalty = param.NewOpt(float64(mp.FrequencyPenalty))
		}
		if mp.MaxTokens > 0 {
			params.MaxCompletionTokens = param.NewOpt(int64(mp.MaxTokens))
		}
		if mp.Temperature > 0 {
			params.Temperature = param.NewOpt(float64(mp.Temperature))
		}
		if mp.TopP > 0 {
			params.TopP = param.NewOpt(float64(mp.TopP))
		}
		if mp.PresencePenalty > 0 {
			params.PresencePenalty = param.NewOpt(float64(mp.PresencePenalty))
		}
	}
	for tool := range mctx.Tools() {
		switch tool := tool.(type) {
		case *FuncTool:
			params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: param.NewOpt(tool.Description),
					Parameters:  oaiConvSchema(tool.Argument),
				},
			})
		default:
			return openai.ChatCompletionNewParams{}, fmt.Errorf("unexpected tool type: %T", tool)
		}
	}
	if len(params.Tools) > 0 {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: param.NewOpt("auto"),
		}
		if g.SequentialToolCalls {
			params.ParallelToolCalls = param.NewOpt(false)
		}
	}
	if len(g.ExtraFields) > 0 {
		params.SetExtraFields(g.ExtraFields)
	}
	return params, nil
}

func (g *OpenAIGenerator) convModelContext(mctx ModelContext) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := []openai.ChatCompletionMessageParamUnion{}
	for p := range mctx.Prompts() {
		out = append(out, g.convPrompt(p)...)
	}
	for msg := range mctx.Messages() {
		param, err := g.convMessage(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, param)
	}
	return out, nil
}

func (g *OpenAIGenerator) convPrompt(p *Prompt) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(p.Text)/oaiMaxTextContentLength+1)
	t := p.Text
	for len(t) > 0 {
		v := t
		if len(v) > oaiMaxTextContentLength {
			v, t = t[:oaiMaxTextContentLength], t[oaiMaxTextContentLength:]
		} else {
			t = ""
		}
		if g.UseSystemRole {
			mp := openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: param.NewOpt(v),
					},
				},
			}
			if p.Name != "" {
				mp.OfSystem.Name = param.NewOpt(p.Name)
			}
			out = append(out, mp)
		} else {
			mp := openai.ChatCompletionMessageParamUnion{
				OfDeveloper: &openai.ChatCompletionDeveloperMessageParam{
					Content: openai.ChatCompletionDeveloperMessageParamContentUnion{
						OfString: param.NewOpt(v),
					},
				},
			}
			if p.Name != "" {
				mp.OfDeveloper.Name = param.NewOpt(p.Name)
			}
			out = append(out, mp)
		}
	}
	return out
}

func (g *OpenAIGenerator) convMessage(msg *Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch t := msg.Payload.(type) {
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf(
			"unexpected message type: %T, message must be a content, tool call, or tool result",
			t,
		)
	case Contents:
		text := oaiJoinText(t)
		if text == "" {
			return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%s message must contain text", msg.Role)
		}
		switch msg.Role {
		default:
			return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf(
				"unexpected content message role: %s, a content message must be a user or model message",
				msg.Role,
			)
		case RoleUser:
			mp := openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: param.NewOpt(text),
				},
			}
			if msg.Name != "" {
				mp.Name = param.NewOpt(msg.Name)
			}
			return openai.ChatCompletionMessageParamUnion{OfUser: &mp}, nil
		case RoleModel:
			mp := openai.ChatCompletionAssistantMessageParam{
				Content: openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: param.NewOpt(text),
				},
			}
			if msg.Name != "" {
				mp.Name = param.NewOpt(msg.Name)
			}
			return openai.ChatCompletionMessageParamUnion{OfAssistant: &mp}, nil
		}
	case *ToolCall:
		if t.FuncCall == nil {
			return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("tool call %s has no function call", t.ID)
		}
		mp := openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: []openai.ChatCompletionMessageToolCallParam{
					{
						ID: t.ID,
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      t.FuncCall.Name,
							Arguments: t.FuncCall.Arguments,
						},
					},
				},
			},
		}
		if msg.Name != "" {
			mp.OfAssistant.Name = param.NewOpt(msg.Name)
		}
		return mp, nil
	case *ToolResult:
		return openai.ToolMessage(t.Result, t.ID), nil
	}
}

// oaiJoinText flattens text parts one per line. Merged consecutive
// messages from the same role stay distinguishable.
func oaiJoinText(c Contents) string {
	parts := make([]string, 0, len(c))
	for _, p := range c {
		if t, ok := p.(Text); ok {
			parts = append(parts, string(t))
		}
	}
	return strings.Join(parts, "\n")
}

func oaiConvSchema(s *jsonschema.Schema) openai.FunctionParameters {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var m openai.FunctionParameters
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

func oaiConvUsage(usage *openai.CompletionUsage) Usage {
	return Usage{
		PromptTokenCount:        usage.PromptTokens,
		CachedContentTokenCount: usage.PromptTokensDetails.CachedTokens,
		GeneratedTokenCount:     usage.CompletionTokens,
	}
}
