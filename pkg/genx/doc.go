// Package genx is a small vendor-neutral layer over chat models that can
// call functions.
//
// # Core Types
//
// A ModelContext is everything sent to a model on one request:
//   - Prompts: system instructions
//   - Messages: the conversation (user text, model text, tool calls, tool results)
//   - Tools: the functions the model may call (FuncTool)
//   - Params: sampling parameters
//
// A Generator turns a ModelContext into a Reply. A Reply carries either the
// model's text, the tool calls it wants executed, or both:
//
//	type Generator interface {
//	    Generate(ctx context.Context, mctx ModelContext) (*Reply, error)
//	}
//
// Generators never execute tools themselves. The caller invokes the
// returned ToolCalls, records each call and its result with
// ModelContextBuilder.AddToolCallResult, and generates again until the model
// answers with text only.
//
// # Implementations
//
//   - OpenAIGenerator: OpenAI chat completions, including Azure OpenAI
//     deployments (configure the client with the openai-go azure options)
//   - GeminiGenerator: Google Gemini via google.golang.org/genai
//
// A refused, truncated or otherwise unusable completion is reported as a
// *State error so callers can tell model behavior apart from transport
// failures.
package genx
