package embed

import "net/http"

type config struct {
	model      string
	dim        int
	batch      int
	baseURL    string
	httpClient *http.Client

	azureEndpoint   string
	azureAPIVersion string
}

// Option configures an embedder.
type Option func(*config)

// WithModel sets the embedding model name, or the deployment name on Azure.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDimension sets the desired output vector dimensionality.
// text-embedding-ada-002 has a fixed dimension and ignores it.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithBatchSize caps the number of inputs per API request.
func WithBatchSize(n int) Option {
	return func(c *config) { c.batch = n }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// WithAzure targets an Azure OpenAI resource instead of api.openai.com.
func WithAzure(endpoint, apiVersion string) Option {
	return func(c *config) {
		c.azureEndpoint = endpoint
		c.azureAPIVersion = apiVersion
	}
}
