package scoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/trellisearch/vectorpipe/pkg/config"
	"github.com/trellisearch/vectorpipe/pkg/types"
)

// BreakerClient wraps a Client with circuit breaking. The core never
// retries; this is the opt-in resilience layer callers put around it so a
// flapping remote service sheds load fast instead of stalling every batch.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
	log    *slog.Logger
}

// NewBreakerClient creates a circuit breaker wrapped scoring client.
func NewBreakerClient(client Client, cfg config.CircuitBreakerConfig, logger *slog.Logger, name string) *BreakerClient {
	if logger == nil {
		logger = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &BreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(st),
		log:    logger,
	}
}

// EmbedDense implements Client.
func (c *BreakerClient) EmbedDense(ctx context.Context, req DenseRequest) ([][]float32, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.EmbedDense(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return resp.([][]float32), nil
}

// EmbedSparse implements Client.
func (c *BreakerClient) EmbedSparse(ctx context.Context, req SparseRequest) ([]types.SparseVector, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.EmbedSparse(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return resp.([]types.SparseVector), nil
}

// Rerank implements Client.
func (c *BreakerClient) Rerank(ctx context.Context, req RerankRequest) ([]RankedScore, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Rerank(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return resp.([]RankedScore), nil
}

// Close implements Client.
func (c *BreakerClient) Close() error {
	return c.client.Close()
}
