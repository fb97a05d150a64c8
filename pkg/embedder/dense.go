package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trellisearch/vectorpipe/pkg/batch"
	"github.com/trellisearch/vectorpipe/pkg/blend"
	"github.com/trellisearch/vectorpipe/pkg/scoring"
	"github.com/trellisearch/vectorpipe/pkg/types"
)

// DenseService produces dense embeddings for single items and batches,
// blending optional distance-boost phrases into the base vectors. It is
// safe for concurrent use.
type DenseService struct {
	client scoring.Client
	log    *slog.Logger
}

// NewDenseService creates a dense embedding service on top of a scoring
// client.
func NewDenseService(client scoring.Client, logger *slog.Logger) *DenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DenseService{client: client, log: logger}
}

// EmbedOne embeds a single text. When a boost phrase is present it rides
// along as a second input in the same request and is blended additively
// into the base vector; either way exactly one vector comes back.
func (s *DenseService) EmbedOne(ctx context.Context, content string, boost *types.DistancePhrase, mode scoring.Mode) ([]float32, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	inputs := []string{scoring.Clip(content, scoring.DenseSingleClipThreshold, scoring.DenseSingleClipCeiling)}
	if boost != nil {
		inputs = append(inputs, scoring.Clip(boost.Phrase, scoring.DenseSingleClipThreshold, scoring.DenseSingleClipCeiling))
	}

	vectors, err := s.client.EmbedDense(ctx, scoring.DenseRequest{Inputs: inputs, Mode: mode})
	if err != nil {
		return nil, fmt.Errorf("dense embedding failed: %w", err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("dense embedding failed: got %d vectors for %d inputs", len(vectors), len(inputs))
	}

	if boost != nil {
		combined, err := blend.Dense(vectors[0], vectors[1], boost.Factor)
		if err != nil {
			return nil, fmt.Errorf("dense embedding failed: %w", err)
		}
		return combined, nil
	}
	return vectors[0], nil
}

// EmbedAll embeds a batch of items, preserving order. The batch is split
// into groups of at most 30 dispatched concurrently; within each group the
// boost phrases form a parallel sub-batch appended to the same request and
// blended back by original intra-group index after dispatch.
func (s *DenseService) EmbedAll(ctx context.Context, items []types.TextItem, mode scoring.Mode) ([][]float32, error) {
	if len(items) == 0 {
		return [][]float32{}, nil
	}

	return batch.InOrder(ctx, items, scoring.MaxGroupSize, func(ctx context.Context, group []types.TextItem, ordinal int) ([][]float32, error) {
		inputs := make([]string, 0, len(group))
		var boostIdx []int
		for i, item := range group {
			inputs = append(inputs, scoring.Clip(item.Content, scoring.DenseBatchClipThreshold, scoring.DenseBatchClipCeiling))
			if item.DistanceBoost != nil {
				boostIdx = append(boostIdx, i)
			}
		}
		for _, i := range boostIdx {
			inputs = append(inputs, scoring.Clip(group[i].DistanceBoost.Phrase, scoring.DenseBatchClipThreshold, scoring.DenseBatchClipCeiling))
		}

		vectors, err := s.client.EmbedDense(ctx, scoring.DenseRequest{Inputs: inputs, Mode: mode})
		if err != nil {
			return nil, fmt.Errorf("dense embedding failed (group %d): %w", ordinal, err)
		}
		if len(vectors) != len(inputs) {
			return nil, fmt.Errorf("dense embedding failed (group %d): got %d vectors for %d inputs", ordinal, len(vectors), len(inputs))
		}

		base := vectors[:len(group)]
		boosts := vectors[len(group):]
		for j, i := range boostIdx {
			combined, err := blend.Dense(base[i], boosts[j], group[i].DistanceBoost.Factor)
			if err != nil {
				return nil, fmt.Errorf("dense embedding failed (group %d): %w", ordinal, err)
			}
			base[i] = combined
		}

		s.log.Debug("embedded dense group", "group", ordinal, "items", len(group), "boosts", len(boostIdx))
		return base, nil
	})
}
