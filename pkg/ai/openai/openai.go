package openai

import (
	"sync"
	"time"

	"github.com/bridgewise/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// EmbeddingClient produces embeddings through an OpenAI compatible API.
//
// An EmbeddingClient should be created using NewEmbeddingClient.
type EmbeddingClient struct {
	model      string
	dimensions int
	maxTokens  int
	timeout    time.Duration

	embeddingLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *openai.Client
}

// NewEmbeddingClientParams defines the configuration of an EmbeddingClient.
//
// Dimensions pads or truncates every vector to a fixed length (0 keeps the
// provider's length). MaxTokens truncates inputs before they are sent.
type NewEmbeddingClientParams struct {
	Model   string
	BaseURL string
	APIKey  string

	Dimensions            int
	MaxTokens             int
	Timeout               time.Duration
	MaxConcurrentRequests int64
}

// NewEmbeddingClient creates an EmbeddingClient.
//
// Example:
//
//	client := openai.NewEmbeddingClient(openai.NewEmbeddingClientParams{
//		Model:   "text-embedding-3-small",
//		BaseURL: "https://api.openai.com/v1",
//		APIKey:  os.Getenv("OPENAI_API_KEY"),
//	})
//	vec, err := client.Embed(ctx, "backend engineer with kafka experience")
func NewEmbeddingClient(params NewEmbeddingClientParams) *EmbeddingClient {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	concurrent := params.MaxConcurrentRequests
	if concurrent <= 0 {
		concurrent = 4
	}

	return &EmbeddingClient{
		model:         params.Model,
		dimensions:    params.Dimensions,
		maxTokens:     params.MaxTokens,
		timeout:       timeout,
		embeddingLock: semaphore.NewWeighted(concurrent),
		Client:        newOpenaiClient(params.BaseURL, params.APIKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
