// Package llm wraps the OpenAI API behind retry and circuit-breaker
// guards, providing chat completions with tool support and embeddings.
package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/course-rag/backend/internal/metrics"
	"github.com/course-rag/backend/pkg/circuitbreaker"
	"github.com/course-rag/backend/pkg/logger"
	"github.com/course-rag/backend/pkg/retry"
	"github.com/course-rag/backend/pkg/utils"
)

// EmbeddingCache stores computed embeddings keyed by content hash.
// Cache failures are advisory; the client always falls through to the
// API.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, key string, embedding []float32, ttl time.Duration) error
}

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	cache          EmbeddingCache
	cacheTTL       time.Duration
	cb             *circuitbreaker.Breaker
	retryPolicy    retry.Policy
}

type Option func(*Client)

// WithEmbeddingCache attaches a cache consulted before every embedding
// call.
func WithEmbeddingCache(cache EmbeddingCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

func NewClient(apiKey, model, embeddingModel string, temperature float32, maxTokens int, opts ...Option) *Client {
	c := &Client{
		client:         openai.NewClient(apiKey),
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		cb: circuitbreaker.New("llm", circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Cooldown:         30 * time.Second,
			Logger:           logger.GetLogger(),
		}),
		retryPolicy: retry.Policy{
			Attempts:  3,
			BaseDelay: 500 * time.Millisecond,
			MaxDelay:  5 * time.Second,
			Factor:    2.0,
			Jitter:    0.1,
			Logger:    logger.GetLogger(),
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	logger.Info("llm client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)
	return c
}

// Chat issues one chat completion. Passing a nil tools slice disables
// tool calling for that turn, which the generation loop relies on to
// force a final answer.
func (c *Client) Chat(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if len(tools) > 0 {
		req.Tools = tools
	}

	var resp openai.ChatCompletionResponse
	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryPolicy, func() error {
			var err error
			resp, err = c.client.CreateChatCompletion(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			logger.Debug("chat completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
				zap.Bool("tools_enabled", len(tools) > 0),
			)
			return nil
		})
	})
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return resp, nil
}

// Embed returns the embedding vector for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.cache != nil {
		if emb, ok, err := c.cache.GetEmbedding(ctx, utils.ContentHash(text)); err == nil && ok {
			metrics.EmbeddingCacheHits.WithLabelValues("hit").Inc()
			return emb, nil
		}
		metrics.EmbeddingCacheHits.WithLabelValues("miss").Inc()
	}

	embeddings, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetEmbedding(ctx, utils.ContentHash(text), embeddings[0], c.cacheTTL); err != nil {
			logger.Warn("failed to cache embedding", zap.Error(err))
		}
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts in API-sized batches, preserving order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const batchSize = 100
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		embeddings, err := c.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, embeddings...)
	}
	return out, nil
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var out [][]float32
	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryPolicy, func() error {
			resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: texts,
				Model: openai.EmbeddingModel(c.embeddingModel),
			})
			if err != nil {
				return fmt.Errorf("failed to generate embeddings: %w", err)
			}

			out = out[:0]
			for _, data := range resp.Data {
				embedding := make([]float32, len(data.Embedding))
				copy(embedding, data.Embedding)
				out = append(out, embedding)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(out), len(texts))
	}
	return out, nil
}
