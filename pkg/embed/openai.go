package embed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

// OpenAI embedding models.
const (
	// ModelOpenAI3Small is the small embedding model (1536 dims, customizable).
	ModelOpenAI3Small = "text-embedding-3-small"

	// ModelOpenAI3Large is the large embedding model (3072 dims, customizable).
	ModelOpenAI3Large = "text-embedding-3-large"

	// ModelOpenAIAda002 is the legacy model (1536 dims, fixed).
	ModelOpenAIAda002 = "text-embedding-ada-002"
)

const (
	openAIMaxBatch     = 2048
	openAIDefaultDim   = 1536
	openAIDefaultModel = ModelOpenAI3Small
)

// OpenAI implements [Embedder] using the OpenAI embeddings API.
type OpenAI struct {
	client *openai.Client
	model  string
	dim    int
	batch  int
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI embedder. With [WithAzure] the key is sent
// as an Azure api-key header.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	cfg := config{
		model:      openAIDefaultModel,
		dim:        openAIDefaultDim,
		batch:      openAIMaxBatch,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.batch <= 0 || cfg.batch > openAIMaxBatch {
		cfg.batch = openAIMaxBatch
	}

	clientOpts := []option.RequestOption{option.WithHTTPClient(cfg.httpClient)}
	if cfg.azureEndpoint != "" {
		clientOpts = append(clientOpts,
			azure.WithEndpoint(cfg.azureEndpoint, cfg.azureAPIVersion),
			azure.WithAPIKey(apiKey),
		)
	} else {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
		if cfg.baseURL != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
		}
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAI{
		client: &client,
		model:  cfg.model,
		dim:    cfg.dim,
		batch:  cfg.batch,
	}
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns embeddings for multiple texts, split into requests of
// at most the configured batch size.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	result := make([][]float32, len(texts))
	for i := 0; i < len(texts); i += o.batch {
		end := min(i+o.batch, len(texts))
		vecs, err := o.callAPI(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", i, end, err)
		}
		copy(result[i:], vecs)
	}
	return result, nil
}

func (o *OpenAI) Dimension() int {
	return o.dim
}

// Model returns the model or deployment name.
func (o *OpenAI) Model() string {
	return o.model
}

func (o *OpenAI) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if o.model != ModelOpenAIAda002 {
		params.Dimensions = openai.Int(int64(o.dim))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= int64(len(texts)) {
			return nil, fmt.Errorf("unexpected embedding index %d for batch size %d", idx, len(texts))
		}
		vecs[idx] = float64sToFloat32s(item.Embedding)
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return vecs, nil
}
