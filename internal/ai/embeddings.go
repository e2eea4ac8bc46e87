package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/artscout-agent/internal/config"
	"github.com/artscout-agent/pkg/logger"
)

// maxEmbedRunes caps the text sent to an embedding provider. Longer inputs
// are truncated, never rejected.
const maxEmbedRunes = 8000

// EmbeddingProvider produces fixed-dimension vectors for text.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimensions() int
}

// NewEmbedder builds the provider selected in the configuration. Unknown
// providers fall back to the offline embedder so scoring never hard-fails.
func NewEmbedder(cfg config.EmbeddingsConfig, log *logger.Logger) EmbeddingProvider {
	if cfg.Provider == "http" && cfg.Endpoint != "" {
		return NewHTTPEmbedder(cfg, log)
	}
	return NewOfflineEmbedder(cfg.Dimensions)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// HTTPEmbedder calls an OpenAI-compatible embeddings endpoint.
type HTTPEmbedder struct {
	endpoint   string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
	log        *logger.Logger
}

// NewHTTPEmbedder creates an embedder backed by a remote API.
func NewHTTPEmbedder(cfg config.EmbeddingsConfig, log *logger.Logger) *HTTPEmbedder {
	timeout := 10 * time.Second
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	return &HTTPEmbedder{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.WithComponent("embeddings"),
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed requests a vector for the text. The text is truncated to the
// provider limit before sending.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	payload, err := json.Marshal(embeddingRequest{
		Model: e.model,
		Input: truncateRunes(text, maxEmbedRunes),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{
			Provider:  "embeddings",
			Op:        "embed",
			Retryable: true,
			Err:       err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ServiceError{
			Provider:  "embeddings",
			Op:        "embed",
			Retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			Metadata:  map[string]interface{}{"status": resp.StatusCode},
			Err:       fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body)),
		}
	}

	var result embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Data) == 0 || len(result.Data[0].Embedding) == 0 {
		return nil, &ServiceError{
			Provider: "embeddings",
			Op:       "embed",
			Err:      fmt.Errorf("empty embedding in response"),
		}
	}

	e.log.Debug().
		Int("input_runes", len([]rune(text))).
		Int("dimensions", len(result.Data[0].Embedding)).
		Msg("Embedded text")

	return result.Data[0].Embedding, nil
}

func (e *HTTPEmbedder) Dimensions() int {
	return e.dimensions
}

// OfflineEmbedder produces deterministic vectors from hashed word
// frequencies. The vectors are crude but stable, which keeps semantic
// scoring usable without network access.
type OfflineEmbedder struct {
	dimensions int
}

// NewOfflineEmbedder creates an offline embedder with the given vector size.
func NewOfflineEmbedder(dimensions int) *OfflineEmbedder {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &OfflineEmbedder{dimensions: dimensions}
}

func (e *OfflineEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimensions)
	for _, word := range splitWords(truncateRunes(text, maxEmbedRunes)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%e.dimensions]++
	}

	// L2 normalize so cosine similarity behaves like the hosted providers
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (e *OfflineEmbedder) Dimensions() int {
	return e.dimensions
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
