// Package vectorpipe is the batched scoring layer of a retrieval
// pipeline. It turns raw text into dense embeddings, sparse term-weight
// vectors, and cross-encoder relevance scores, talking to remote model
// servers over either synchronous HTTP or persistent streaming channels.
//
// The Engine wires the transport, circuit breaker, and per-capability
// services together from a single Config. All embedding and reranking
// operations are batched, dispatched concurrently, and reassembled in
// input order; a failure in any sub-batch fails the whole call.
package vectorpipe

import (
	"fmt"
	"log/slog"

	"github.com/trellisearch/vectorpipe/pkg/config"
	"github.com/trellisearch/vectorpipe/pkg/crossencoder"
	"github.com/trellisearch/vectorpipe/pkg/embedder"
	"github.com/trellisearch/vectorpipe/pkg/logger"
	"github.com/trellisearch/vectorpipe/pkg/scoring"
)

// Engine bundles the three scoring capabilities behind one lifecycle.
// Create it once per process and share it; all services are safe for
// concurrent use.
type Engine struct {
	client   scoring.Client
	dense    *embedder.DenseService
	sparse   *embedder.SparseService
	reranker *crossencoder.Reranker
	config   *config.Config
	logger   *slog.Logger
}

// New builds an Engine from configuration. The transport mode selects
// between the HTTP client and the persistent streaming client; when the
// circuit breaker is enabled the chosen transport is wrapped so that a
// failing model server sheds load instead of queueing it.
func New(cfg *config.Config, log *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: %w: configuration is nil", scoring.ErrMissingConfig)
	}
	if log == nil {
		log = logger.NewDefaultLogger(logger.ParseLevel(cfg.Log.Level))
	}

	var client scoring.Client
	switch cfg.Transport.Mode {
	case config.TransportStream:
		client = scoring.NewStreamClient(cfg, log)
	case config.TransportHTTP, "":
		client = scoring.NewHTTPClient(cfg, log)
	default:
		return nil, fmt.Errorf("engine: %w: unknown transport mode %q", scoring.ErrMissingConfig, cfg.Transport.Mode)
	}

	if cfg.CircuitBreaker.Enabled {
		client = scoring.NewBreakerClient(client, cfg.CircuitBreaker, log, "model-server")
	}

	return &Engine{
		client:   client,
		dense:    embedder.NewDenseService(client, log),
		sparse:   embedder.NewSparseService(client, cfg.BM25, log),
		reranker: crossencoder.NewReranker(client, log),
		config:   cfg,
		logger:   log,
	}, nil
}

// Dense returns the dense embedding service.
func (e *Engine) Dense() *embedder.DenseService { return e.dense }

// Sparse returns the sparse embedding service.
func (e *Engine) Sparse() *embedder.SparseService { return e.sparse }

// Reranker returns the cross-encoder reranking service.
func (e *Engine) Reranker() *crossencoder.Reranker { return e.reranker }

// Client exposes the underlying transport for callers that need direct
// access to the wire-level operations.
func (e *Engine) Client() scoring.Client { return e.client }

// Close releases transport resources. Streaming connections are torn
// down; the HTTP client has nothing to release but Close is still safe
// to call.
func (e *Engine) Close() error {
	return e.client.Close()
}
