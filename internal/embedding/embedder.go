// Package embedding converts mechanic text into fixed-length vectors using
// OpenAI's embedding API.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// Model is the OpenAI model used for generating embeddings.
	Model = "text-embedding-3-small"

	// Dimension is the vector size for text-embedding-3-small. This matches
	// storage.VectorDimension.
	Dimension = 1536

	// DefaultBatchSize keeps batches small enough that a single request
	// stays well under the provider's tokens-per-minute budget.
	DefaultBatchSize = 100

	// interBatchDelay spaces out consecutive batch requests so bulk
	// ingestion does not trip provider rate limits in the first place.
	interBatchDelay = 200 * time.Millisecond
)

// Embedder is the narrow interface the retrieval engine depends on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder generates embeddings with text-embedding-3-small. Batch
// requests are processed in fixed-size batches with a short delay between
// them, and retried with exponential backoff on rate limit errors.
type OpenAIEmbedder struct {
	client    *Client
	batchSize int
}

// NewEmbedder creates an embedder with the given client and optional batch
// size. If batchSize is 0, DefaultBatchSize is used.
func NewEmbedder(client *Client, batchSize int) *OpenAIEmbedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &OpenAIEmbedder{
		client:    client,
		batchSize: batchSize,
	}
}

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.embedBatchWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for the given texts, preserving order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var allEmbeddings [][]float32

	for i := 0; i < len(texts); i += e.batchSize {
		if i > 0 {
			select {
			case <-time.After(interBatchDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		embeddings, err := e.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

// embedBatchWithRetry generates embeddings for a single batch with retry
// logic. Rate limit errors (HTTP 429) are retried with exponential backoff;
// everything else is permanent and fails immediately.
func (e *OpenAIEmbedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: Model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err // Will retry with backoff
			}
			return backoff.Permanent(err)
		}

		// Convert float64 to float32 for storage compatibility
		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return embeddings, err
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
