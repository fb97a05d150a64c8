package scoring

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/trellisearch/vectorpipe/pkg/config"
	"github.com/trellisearch/vectorpipe/pkg/types"
)

// HTTPClient implements Client over synchronous JSON request/response.
// The underlying http.Client is safe for concurrent use, so one HTTPClient
// serves all batch groups dispatched in parallel.
type HTTPClient struct {
	embedding config.EmbeddingConfig
	sparse    config.SparseConfig
	reranker  config.RerankerConfig
	http      *http.Client
	log       *slog.Logger
}

// NewHTTPClient creates the request/response transport. A zero request
// timeout means a hung remote call blocks its batch group, which matches
// the historical behavior; set transport.request_timeout_seconds to bound it.
func NewHTTPClient(cfg *config.Config, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		embedding: cfg.Embedding,
		sparse:    cfg.Sparse,
		reranker:  cfg.Reranker,
		http: &http.Client{
			Timeout: time.Duration(cfg.Transport.RequestTimeoutSeconds) * time.Second,
		},
		log: logger,
	}
}

// denseParameters is the dense embed request body: a single string for
// query-mode requests, an array for doc mode.
type denseParameters struct {
	Input    any    `json:"input"`
	Model    string `json:"model"`
	Truncate bool   `json:"truncate"`
}

type denseResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedDense implements Client.
func (c *HTTPClient) EmbedDense(ctx context.Context, req DenseRequest) ([][]float32, error) {
	const op = "embed_dense"
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("%s: %w: no inputs", op, ErrInvalidInput)
	}
	if c.embedding.BaseURL == "" {
		return nil, fmt.Errorf("%s: %w: embedding.base_url", op, ErrMissingConfig)
	}

	inputs := applyQueryPrefix(req.Inputs, req.Mode, c.embedding.QueryPrefix)

	params := denseParameters{Model: c.embedding.Model, Truncate: true}
	if req.Mode == ModeQuery && len(inputs) == 1 {
		params.Input = inputs[0]
	} else {
		params.Input = inputs
	}

	url := fmt.Sprintf("%s/embeddings?api-version=2023-05-15", c.embedding.BaseURL)
	body, err := c.post(ctx, op, url, c.embedding.APIKey, params)
	if err != nil {
		return nil, err
	}

	var resp denseResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		c.log.Error("failed to parse embedding server response", "op", op, "error", err)
		return nil, &ShapeError{Op: op, Detail: err.Error()}
	}
	if len(resp.Data) != len(inputs) {
		return nil, &ShapeError{Op: op, Detail: fmt.Sprintf("got %d embeddings for %d inputs", len(resp.Data), len(inputs))}
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%s: position %d: %w", op, i, ErrEmptyResult)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// sparseParameters is the sparse embed request body.
type sparseParameters struct {
	Inputs     []string `json:"inputs"`
	EncodeType string   `json:"encode_type"`
	Truncate   bool     `json:"truncate"`
}

// EmbedSparse implements Client.
func (c *HTTPClient) EmbedSparse(ctx context.Context, req SparseRequest) ([]types.SparseVector, error) {
	const op = "embed_sparse"
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("%s: %w: no inputs", op, ErrInvalidInput)
	}
	origin, err := sparseOrigin(c.sparse, req.Mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	params := sparseParameters{
		Inputs:     req.Inputs,
		EncodeType: string(req.Mode),
		Truncate:   true,
	}

	body, err := c.post(ctx, op, origin+"/embed_sparse", c.sparse.APIKey, params)
	if err != nil {
		return nil, err
	}

	var vectors []types.SparseVector
	if err := sonic.Unmarshal(body, &vectors); err != nil {
		c.log.Error("failed to parse sparse server response", "op", op, "error", err)
		return nil, &ShapeError{Op: op, Detail: err.Error()}
	}
	if len(vectors) != len(req.Inputs) {
		return nil, &ShapeError{Op: op, Detail: fmt.Sprintf("got %d vectors for %d inputs", len(vectors), len(req.Inputs))}
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%s: position %d: %w", op, i, ErrEmptyResult)
		}
	}
	return vectors, nil
}

// rerankParameters is the cross-encoder request body.
type rerankParameters struct {
	Query    string   `json:"query"`
	Texts    []string `json:"texts"`
	Truncate bool     `json:"truncate"`
}

// Rerank implements Client.
func (c *HTTPClient) Rerank(ctx context.Context, req RerankRequest) ([]RankedScore, error) {
	const op = "rerank"
	if req.Query == "" || len(req.Texts) == 0 {
		return nil, fmt.Errorf("%s: %w: empty query or texts", op, ErrInvalidInput)
	}
	if c.reranker.BaseURL == "" {
		return nil, fmt.Errorf("%s: %w: reranker.base_url", op, ErrMissingConfig)
	}

	params := rerankParameters{Query: req.Query, Texts: req.Texts, Truncate: true}
	body, err := c.post(ctx, op, c.reranker.BaseURL+"/rerank", c.reranker.APIKey, params)
	if err != nil {
		return nil, err
	}

	var scores []RankedScore
	if err := sonic.Unmarshal(body, &scores); err != nil {
		c.log.Error("failed to parse reranker response", "op", op, "error", err)
		return nil, &ShapeError{Op: op, Detail: err.Error()}
	}
	for _, s := range scores {
		if int(s.Index) >= len(req.Texts) {
			return nil, &ShapeError{Op: op, Detail: fmt.Sprintf("score index %d out of range for %d texts", s.Index, len(req.Texts))}
		}
	}
	return scores, nil
}

// Close implements Client.
func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// post sends one JSON request and returns the raw response body.
func (c *HTTPClient) post(ctx context.Context, op, url, apiKey string, payload any) ([]byte, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
		httpReq.Header.Set("api-key", apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncateForLog(body))}
	}
	return body, nil
}

// applyQueryPrefix prepends the configured prefix in query mode.
func applyQueryPrefix(inputs []string, mode Mode, prefix string) []string {
	if mode != ModeQuery || prefix == "" {
		return inputs
	}
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = prefix + in
	}
	return out
}

// sparseOrigin picks the doc or query sparse encoder endpoint.
func sparseOrigin(cfg config.SparseConfig, mode Mode) (string, error) {
	switch mode {
	case ModeQuery:
		if cfg.QueryOrigin == "" {
			return "", fmt.Errorf("%w: sparse.query_origin", ErrMissingConfig)
		}
		return cfg.QueryOrigin, nil
	default:
		if cfg.DocOrigin == "" {
			return "", fmt.Errorf("%w: sparse.doc_origin", ErrMissingConfig)
		}
		return cfg.DocOrigin, nil
	}
}

func truncateForLog(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
