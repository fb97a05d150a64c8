package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/trellisearch/vectorpipe/pkg/batch"
	"github.com/trellisearch/vectorpipe/pkg/config"
	"github.com/trellisearch/vectorpipe/pkg/types"
)

// StreamClient implements Client over persistent websocket channels with
// per-item request framing. One channel is held per capability endpoint
// and shared read-only by all dispatched tasks; responses arrive in
// request order on each channel and are matched FIFO.
//
// Batched operations run through batch.StreamOrdered: at most
// transport.max_in_flight outstanding frames, responses coalesced into
// size/time windows before being committed.
type StreamClient struct {
	embedding config.EmbeddingConfig
	sparse    config.SparseConfig
	reranker  config.RerankerConfig
	opts      batch.Options
	log       *slog.Logger

	mu    sync.Mutex
	conns map[string]*frameConn
}

// NewStreamClient creates the streaming transport.
func NewStreamClient(cfg *config.Config, logger *slog.Logger) *StreamClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &StreamClient{
		embedding: cfg.Embedding,
		sparse:    cfg.Sparse,
		reranker:  cfg.Reranker,
		opts: batch.Options{
			MaxInFlight:   cfg.Transport.MaxInFlight,
			WindowSize:    cfg.Transport.WindowSize,
			WindowTimeout: time.Duration(cfg.Transport.WindowTimeoutSeconds) * time.Second,
		},
		log:   logger,
		conns: make(map[string]*frameConn),
	}
	c.opts.OnWindow = func(count int) {
		c.log.Debug("committed stream window", "results", count)
	}
	return c
}

type denseFrame struct {
	Input               string `json:"input"`
	Truncate            bool   `json:"truncate"`
	Normalize           bool   `json:"normalize"`
	TruncationDirection string `json:"truncation_direction"`
}

type denseFrameResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedDense implements Client.
func (c *StreamClient) EmbedDense(ctx context.Context, req DenseRequest) ([][]float32, error) {
	const op = "embed_dense"
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("%s: %w: no inputs", op, ErrInvalidInput)
	}
	if c.embedding.StreamOrigin == "" {
		return nil, fmt.Errorf("%s: %w: embedding.stream_origin", op, ErrMissingConfig)
	}

	conn, err := c.connFor(ctx, c.embedding.StreamOrigin)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	inputs := applyQueryPrefix(req.Inputs, req.Mode, c.embedding.QueryPrefix)

	return batch.StreamOrdered(ctx, inputs, c.opts, func(ctx context.Context, input string) ([]float32, error) {
		body, err := conn.roundTrip(ctx, denseFrame{
			Input:               input,
			Truncate:            false,
			Normalize:           true,
			TruncationDirection: "right",
		})
		if err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
		var resp denseFrameResponse
		if err := sonic.Unmarshal(body, &resp); err != nil {
			return nil, &ShapeError{Op: op, Detail: err.Error()}
		}
		if len(resp.Embedding) == 0 {
			return nil, fmt.Errorf("%s: %w", op, ErrEmptyResult)
		}
		return resp.Embedding, nil
	})
}

type sparseFrame struct {
	Inputs              string `json:"inputs"`
	Truncate            bool   `json:"truncate"`
	TruncationDirection string `json:"truncation_direction"`
}

type sparseFrameResponse struct {
	SparseEmbeddings types.SparseVector `json:"sparse_embeddings"`
}

// EmbedSparse implements Client.
func (c *StreamClient) EmbedSparse(ctx context.Context, req SparseRequest) ([]types.SparseVector, error) {
	const op = "embed_sparse"
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("%s: %w: no inputs", op, ErrInvalidInput)
	}
	origin, err := sparseStreamOrigin(c.sparse, req.Mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := c.connFor(ctx, origin)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	return batch.StreamOrdered(ctx, req.Inputs, c.opts, func(ctx context.Context, input string) (types.SparseVector, error) {
		body, err := conn.roundTrip(ctx, sparseFrame{
			Inputs:              input,
			Truncate:            true,
			TruncationDirection: "right",
		})
		if err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
		var resp sparseFrameResponse
		if err := sonic.Unmarshal(body, &resp); err != nil {
			return nil, &ShapeError{Op: op, Detail: err.Error()}
		}
		if len(resp.SparseEmbeddings) == 0 {
			return nil, fmt.Errorf("%s: %w", op, ErrEmptyResult)
		}
		return resp.SparseEmbeddings, nil
	})
}

type rerankFrame struct {
	Query               string   `json:"query"`
	Texts               []string `json:"texts"`
	Truncate            bool     `json:"truncate"`
	TruncationDirection string   `json:"truncation_direction"`
	ReturnText          bool     `json:"return_text"`
	RawScores           bool     `json:"raw_scores"`
}

type rerankFrameResponse struct {
	Ranks []RankedScore `json:"ranks"`
}

// Rerank implements Client. Reranking is a single frame per call; chunking
// across calls is the reranker service's concern.
func (c *StreamClient) Rerank(ctx context.Context, req RerankRequest) ([]RankedScore, error) {
	const op = "rerank"
	if req.Query == "" || len(req.Texts) == 0 {
		return nil, fmt.Errorf("%s: %w: empty query or texts", op, ErrInvalidInput)
	}
	if c.reranker.StreamOrigin == "" {
		return nil, fmt.Errorf("%s: %w: reranker.stream_origin", op, ErrMissingConfig)
	}

	conn, err := c.connFor(ctx, c.reranker.StreamOrigin)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	body, err := conn.roundTrip(ctx, rerankFrame{
		Query:               req.Query,
		Texts:               req.Texts,
		Truncate:            true,
		TruncationDirection: "right",
		ReturnText:          false,
		RawScores:           false,
	})
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	var resp rerankFrameResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, &ShapeError{Op: op, Detail: err.Error()}
	}
	for _, s := range resp.Ranks {
		if int(s.Index) >= len(req.Texts) {
			return nil, &ShapeError{Op: op, Detail: fmt.Sprintf("score index %d out of range for %d texts", s.Index, len(req.Texts))}
		}
	}
	return resp.Ranks, nil
}

// Close implements Client.
func (c *StreamClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for origin, conn := range c.conns {
		if err := conn.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.conns, origin)
	}
	return firstErr
}

// connFor returns the live channel for an origin, dialing if needed.
// Channels that died are replaced on the next call that needs them.
func (c *StreamClient) connFor(ctx context.Context, origin string) (*frameConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[origin]; ok && !conn.dead() {
		return conn, nil
	}
	conn, err := dialFrameConn(ctx, origin)
	if err != nil {
		return nil, err
	}
	c.conns[origin] = conn
	return conn, nil
}

func sparseStreamOrigin(cfg config.SparseConfig, mode Mode) (string, error) {
	switch mode {
	case ModeQuery:
		if cfg.QueryStreamOrigin == "" {
			return "", fmt.Errorf("%w: sparse.query_stream_origin", ErrMissingConfig)
		}
		return cfg.QueryStreamOrigin, nil
	default:
		if cfg.DocStreamOrigin == "" {
			return "", fmt.Errorf("%w: sparse.doc_stream_origin", ErrMissingConfig)
		}
		return cfg.DocStreamOrigin, nil
	}
}

type frameResult struct {
	data []byte
	err  error
}

// frameConn is one persistent websocket channel. Writes and the waiter
// queue are guarded by mu so the FIFO pairing of requests to responses
// holds under concurrent senders; reads happen on a single goroutine.
type frameConn struct {
	ws *websocket.Conn

	mu      sync.Mutex
	waiters []chan frameResult
	closed  error
}

func dialFrameConn(ctx context.Context, origin string) (*frameConn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, origin, nil)
	if err != nil {
		return nil, err
	}
	conn := &frameConn{ws: ws}
	go conn.readLoop()
	return conn, nil
}

func (c *frameConn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		c.mu.Lock()
		var waiter chan frameResult
		if len(c.waiters) > 0 {
			waiter = c.waiters[0]
			c.waiters = c.waiters[1:]
		}
		c.mu.Unlock()
		if waiter != nil {
			waiter <- frameResult{data: data}
		}
	}
}

// roundTrip sends one frame and waits for the response paired to it by
// arrival order. Enqueueing the waiter and writing the frame happen under
// one lock so concurrent senders cannot interleave the pairing.
func (c *frameConn) roundTrip(ctx context.Context, payload any) ([]byte, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan frameResult, 1)
	c.mu.Lock()
	if c.closed != nil {
		err := c.closed
		c.mu.Unlock()
		return nil, err
	}
	c.waiters = append(c.waiters, ch)
	writeErr := c.ws.WriteMessage(websocket.TextMessage, data)
	c.mu.Unlock()

	if writeErr != nil {
		c.fail(writeErr)
		return nil, writeErr
	}

	select {
	case res := <-ch:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fail marks the channel dead and releases every queued waiter.
func (c *frameConn) fail(err error) {
	c.mu.Lock()
	if c.closed == nil {
		c.closed = err
	}
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		w <- frameResult{err: err}
	}
	c.ws.Close()
}

func (c *frameConn) dead() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed != nil
}

func (c *frameConn) close() error {
	c.fail(fmt.Errorf("connection closed"))
	return nil
}
