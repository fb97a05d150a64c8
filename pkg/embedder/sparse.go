package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trellisearch/vectorpipe/pkg/batch"
	"github.com/trellisearch/vectorpipe/pkg/blend"
	"github.com/trellisearch/vectorpipe/pkg/bm25"
	"github.com/trellisearch/vectorpipe/pkg/config"
	"github.com/trellisearch/vectorpipe/pkg/scoring"
	"github.com/trellisearch/vectorpipe/pkg/types"
)

// SparseService produces sparse token-weight vectors, either through the
// remote sparse encoder or locally via BM25 term weighting. Weight-boost
// phrases are always blended multiplicatively. Safe for concurrent use.
type SparseService struct {
	client scoring.Client
	params config.BM25Config
	log    *slog.Logger
}

// NewSparseService creates a sparse embedding service. params drives the
// local BM25 scorer; the remote path ignores it.
func NewSparseService(client scoring.Client, params config.BM25Config, logger *slog.Logger) *SparseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SparseService{client: client, params: params, log: logger}
}

// EmbedOne embeds a single text through the remote sparse encoder. A boost
// phrase rides along as a second input and multiplies the weights of the
// base entries whose token ids it shares.
func (s *SparseService) EmbedOne(ctx context.Context, content string, boost *types.WeightPhrase, mode scoring.Mode) (types.SparseVector, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	inputs := []string{scoring.Clip(content, scoring.SparseSingleClipThreshold, scoring.SparseSingleClipCeiling)}
	if boost != nil {
		inputs = append(inputs, scoring.Clip(boost.Phrase, scoring.SparseSingleClipThreshold, scoring.SparseSingleClipCeiling))
	}

	vectors, err := s.client.EmbedSparse(ctx, scoring.SparseRequest{Inputs: inputs, Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("sparse embedding failed: %w", err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("sparse embedding failed: got %d vectors for %d inputs", len(vectors), len(inputs))
	}

	if boost != nil {
		return blend.Sparse(vectors[0], vectors[1], float32(boost.Factor)), nil
	}
	return vectors[0], nil
}

// boostRef carries a boost phrase together with the index of the item it
// belongs to, so blended weights land back on the right vector after the
// boost sub-batch completes.
type boostRef struct {
	idx    int
	factor float64
	phrase string
}

// EmbedAll embeds a batch of items through the remote sparse encoder,
// preserving order. Contents and boost phrases are dispatched as separate
// group-of-30 batches; boost vectors are then blended into the content
// vectors at the original indices.
func (s *SparseService) EmbedAll(ctx context.Context, items []types.TextItem, mode scoring.Mode) ([]types.SparseVector, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	contents := make([]string, len(items))
	var boosts []boostRef
	for i, item := range items {
		contents[i] = item.Content
		if item.WeightBoost != nil {
			boosts = append(boosts, boostRef{idx: i, factor: item.WeightBoost.Factor, phrase: item.WeightBoost.Phrase})
		}
	}

	vectors, err := batch.InOrder(ctx, contents, scoring.MaxGroupSize, func(ctx context.Context, group []string, ordinal int) ([]types.SparseVector, error) {
		return s.embedGroup(ctx, group, mode, ordinal)
	})
	if err != nil {
		return nil, fmt.Errorf("sparse embedding failed: %w", err)
	}

	if len(boosts) == 0 {
		return vectors, nil
	}

	phrases := make([]string, len(boosts))
	for i, b := range boosts {
		phrases[i] = b.phrase
	}
	boostVectors, err := batch.InOrder(ctx, phrases, scoring.MaxGroupSize, func(ctx context.Context, group []string, ordinal int) ([]types.SparseVector, error) {
		return s.embedGroup(ctx, group, mode, ordinal)
	})
	if err != nil {
		return nil, fmt.Errorf("sparse boost embedding failed: %w", err)
	}

	for i, b := range boosts {
		vectors[b.idx] = blend.Sparse(vectors[b.idx], boostVectors[i], float32(b.factor))
	}
	return vectors, nil
}

func (s *SparseService) embedGroup(ctx context.Context, group []string, mode scoring.Mode, ordinal int) ([]types.SparseVector, error) {
	clipped := make([]string, len(group))
	for i, text := range group {
		clipped[i] = scoring.Clip(text, scoring.SparseBatchClipThreshold, scoring.SparseBatchClipCeiling)
	}
	vectors, err := s.client.EmbedSparse(ctx, scoring.SparseRequest{Inputs: clipped, Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("group %d: %w", ordinal, err)
	}
	return vectors, nil
}

// ScoreLocal computes the sparse vectors locally with BM25 term weighting,
// without any remote call. Weight boosts are applied by the scorer itself.
// Local scoring never fails.
func (s *SparseService) ScoreLocal(items []types.TextItem) []types.SparseVector {
	return bm25.Score(items, s.params.AvgDocLen, s.params.B, s.params.K1)
}
