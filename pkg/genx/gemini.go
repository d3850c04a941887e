package genx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

var _ Generator = (*GeminiGenerator)(nil)

// GeminiGenerator implements Generator using Google Gemini API.
type GeminiGenerator struct {
	Client *genai.Client `json:"-"`

	Params *ModelParams `json:"params,omitzero"`

	// Model should not start with "models/"
	Model string `json:"model"`
}

func (g *GeminiGenerator) Generate(ctx context.Context, mctx ModelContext) (*Reply, error) {
	cfg, contents, err := g.convModelContext(mctx)
	if err != nil {
		return nil, err
	}
	resp, err := g.Client.Models.GenerateContent(ctx, g.Model, contents, cfg)
	if err != nil {
		var e *apierror.APIError
		if errors.As(err, &e) {
			err = e.Unwrap()
		}
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
			return nil, Blocked(geminiConvUsage(resp.UsageMetadata), string(fb.BlockReason))
		}
		return nil, Error(geminiConvUsage(resp.UsageMetadata), errors.New("no candidates"))
	}
	usage := geminiConvUsage(resp.UsageMetadata)
	sel := resp.Candidates[0]
	switch sel.FinishReason {
	case genai.FinishReasonStop, genai.FinishReasonUnspecified, "":
	case genai.FinishReasonMaxTokens:
		return nil, Truncated(usage)
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent:
		var cats []string
		for _, sr := range sel.SafetyRatings {
			if sr.Blocked {
				cats = append(cats, string(sr.Category))
			}
		}
		return nil, Blocked(usage, "blocked by "+strings.Join(cats, ", "))
	default:
		return nil, Error(usage, fmt.Errorf("unexpected finish reason: %s", sel.FinishReason))
	}
	if sel.Content == nil {
		return nil, Error(usage, errors.New("empty candidate"))
	}

	reply := &Reply{Usage: usage}
	var sb strings.Builder
	for _, p := range sel.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			b, err := json.Marshal(p.FunctionCall.Args)
			if err != nil {
				return nil, Error(usage, fmt.Errorf("marshal function call args: %w", err))
			}
			id := p.FunctionCall.ID
			if id == "" {
				id = p.FunctionCall.Name
			}
			reply.ToolCalls = append(reply.ToolCalls, &ToolCall{
				ID: id,
				FuncCall: &FuncCall{
					Name:      p.FunctionCall.Name,
					Arguments: string(b),
				},
			})
		case p.Text != "" && !p.Thought:
			sb.WriteString(p.Text)
		}
	}
	reply.Text = sb.String()
	bindToolCalls(mctx, reply.ToolCalls)
	if reply.Text == "" && len(reply.ToolCalls) == 0 {
		return nil, Error(usage, errors.New("empty reply"))
	}
	return reply, nil
}

func geminiConvMessage(last *genai.Content, msg *Message) (new *genai.Content, err error) {
	var (
		role  string
		parts []*genai.Part
	)
	switch t := msg.Payload.(type) {
	default:
		return nil, fmt.Errorf("unexpected message type: %T", t)
	case Contents:
		switch msg.Role {
		default:
			return nil, fmt.Errorf("mismatched role and type: role=%s, type=%T", msg.Role, msg.Payload)
		case RoleUser:
			role = "user"
		case RoleModel:
			role = "model"
		}
		for _, c := range t {
			if v, ok := c.(Text); ok {
				parts = append(parts, genai.NewPartFromText(string(v)))
			}
		}
	case *ToolCall:
		role = "model"
		var args map[string]any
		if err := json.Unmarshal([]byte(t.FuncCall.Arguments), &args); err != nil {
			args = map[string]any{
				"text": t.FuncCall.Arguments,
			}
		}
		parts = append(parts, genai.NewPartFromFunctionCall(t.FuncCall.Name, args))
	case *ToolResult:
		role = "user"
		var result map[string]any
		if err := json.Unmarshal([]byte(t.Result), &result); err != nil {
			result = map[string]any{
				"output": t.Result,
			}
		}
		name := t.Name
		if name == "" {
			name = t.ID
		}
		parts = append(parts, genai.NewPartFromFunctionResponse(name, result))
	}
	if last == nil || last.Role != role {
		return &genai.Content{
			Role:  role,
			Parts: parts,
		}, nil
	}
	last.Parts = append(last.Parts, parts...)
	return nil, nil
}

func (g *GeminiGenerator) convModelContext(mctx ModelContext) (*genai.GenerateContentConfig, []*genai.Content, error) {
	cfg := genai.GenerateContentConfig{}
	prompts := []*genai.Part{}
	for p := range mctx.Prompts() {
		prompts = append(prompts, genai.NewPartFromText(p.Text))
	}
	if len(prompts) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: prompts}
	}
	mp := g.Params
	if p := mctx.Params(); p != nil {
		mp = p
	}
	if mp != nil {
		if mp.MaxTokens > 0 {
			cfg.MaxOutputTokens = int32(mp.MaxTokens)
		}
		if mp.Temperature > 0 {
			cfg.Temperature = &mp.Temperature
		}
		if mp.TopP > 0 {
			cfg.TopP = &mp.TopP
		}
		if mp.TopK > 0 {
			cfg.TopK = &mp.TopK
		}
	}

	var decls []*genai.FunctionDeclaration
	for t := range mctx.Tools() {
		switch t := t.(type) {
		case *FuncTool:
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  geminiConvSchema(t.Argument),
			})
		default:
			return nil, nil, fmt.Errorf("unexpected tool type: %T", t)
		}
	}
	if len(decls) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}

	var (
		contents []*genai.Content
		last     *genai.Content
	)
	for msg := range mctx.Messages() {
		new, err := geminiConvMessage(last, msg)
		if err != nil {
			return nil, nil, err
		}
		if new != nil {
			contents = append(contents, new)
			last = new
		}
	}
	if len(contents) == 0 {
		return nil, nil, fmt.Errorf("no contents")
	}

	return &cfg, contents, nil
}

func geminiConvSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Enum:        enums,
		Items:       geminiConvSchema(schema.Items),
		Required:    schema.Required,
	}

	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = geminiConvSchema(prop)
		}
	}
	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}

func geminiConvUsage(usage *genai.GenerateContentResponseUsageMetadata) Usage {
	if usage == nil {
		return Usage{}
	}
	return Usage{
		PromptTokenCount:        int64(usage.PromptTokenCount),
		CachedContentTokenCount: int64(usage.CachedContentTokenCount),
		GeneratedTokenCount:     int64(usage.CandidatesTokenCount),
	}
}
