// Package crossencoder reorders retrieval candidates by cross-encoder
// relevance: the query is scored jointly against every candidate text,
// which is slower but considerably more precise than comparing
// independently produced embeddings.
package crossencoder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/trellisearch/vectorpipe/pkg/batch"
	"github.com/trellisearch/vectorpipe/pkg/scoring"
	"github.com/trellisearch/vectorpipe/pkg/types"
)

// Reranker scores candidates against a query and returns them in
// descending relevance order. Safe for concurrent use.
type Reranker struct {
	client scoring.Client
	log    *slog.Logger
}

// NewReranker creates a reranker on top of a scoring client.
func NewReranker(client scoring.Client, logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{client: client, log: logger}
}

// Rerank rescoring rules:
//   - an empty candidate set short-circuits to an empty result with no
//     remote call;
//   - up to 20 candidates go out as one rerank call;
//   - larger sets are split into chunks of 20 dispatched concurrently,
//     with per-chunk index-tagged scores merged back into the original
//     candidates.
//
// The rescored set is sorted descending by score (ties break arbitrarily)
// and truncated to pageSize when pageSize is positive. Input candidates
// are never mutated; only the returned copies carry new scores.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []types.ScoredCandidate, pageSize int) ([]types.ScoredCandidate, error) {
	if len(candidates) == 0 {
		return []types.ScoredCandidate{}, nil
	}

	rescored, err := batch.InOrder(ctx, candidates, scoring.MaxRerankGroupSize, func(ctx context.Context, chunk []types.ScoredCandidate, ordinal int) ([]types.ScoredCandidate, error) {
		texts := make([]string, len(chunk))
		for i, c := range chunk {
			texts[i] = c.Text
		}

		scores, err := r.client.Rerank(ctx, scoring.RerankRequest{Query: query, Texts: texts})
		if err != nil {
			return nil, fmt.Errorf("rerank failed (chunk %d): %w", ordinal, err)
		}

		out := make([]types.ScoredCandidate, len(chunk))
		copy(out, chunk)
		for _, pair := range scores {
			out[pair.Index].Score = float64(pair.Score)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rescored, func(i, j int) bool {
		return rescored[i].Score > rescored[j].Score
	})

	if pageSize > 0 && len(rescored) > pageSize {
		rescored = rescored[:pageSize]
	}

	r.log.Debug("reranked candidates", "candidates", len(candidates), "returned", len(rescored))
	return rescored, nil
}
