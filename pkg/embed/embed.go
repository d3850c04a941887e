// Package embed provides a text embedding interface and its OpenAI
// implementation.
//
// An Embedder converts text into dense vectors. deskmate embeds
// knowledge-base passages and search queries with it.
//
//	e := embed.NewOpenAI(apiKey, embed.WithModel(embed.ModelOpenAI3Small))
//	vec, err := e.Embed(ctx, "reset my bitlocker pin")
//
// Azure OpenAI deployments are addressed with [WithAzure]; the model name is
// then the deployment name.
package embed

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts.
	// Implementations may split large batches into smaller API calls
	// transparently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// ErrEmptyInput is returned when the input text is empty.
var ErrEmptyInput = errors.New("embed: empty input")

func float64sToFloat32s(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
