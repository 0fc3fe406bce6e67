package ollama

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bridgewise/backend/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// EmbeddingClient produces embeddings with a locally hosted Ollama model.
type EmbeddingClient struct {
	model      string
	dimensions int
	maxTokens  int
	timeout    time.Duration

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	Client *api.Client
}

// NewEmbeddingClientParams contains configuration options for creating a new EmbeddingClient.
type NewEmbeddingClientParams struct {
	Model   string
	BaseURL string
	ApiKey  string

	Dimensions            int
	MaxTokens             int
	Timeout               time.Duration
	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewEmbeddingClient creates an Ollama embedding client. It connects to the
// server at BaseURL, or to the default address when BaseURL is empty.
func NewEmbeddingClient(params NewEmbeddingClientParams) (*EmbeddingClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	} else {
		u = &url.URL{Scheme: "http", Host: "127.0.0.1:11434"}
	}

	headers := map[string]string{}
	if params.ApiKey != "" {
		headers["Authorization"] = "Bearer " + params.ApiKey
	}
	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: headers,
			rt:      http.DefaultTransport,
		},
	}

	concurrent := params.MaxConcurrentRequests
	if concurrent <= 0 {
		concurrent = 2
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	return &EmbeddingClient{
		model:      params.Model,
		dimensions: params.Dimensions,
		maxTokens:  params.MaxTokens,
		timeout:    timeout,
		reqLock:    semaphore.NewWeighted(concurrent),
		Client:     api.NewClient(u, httpClient),
	}, nil
}
