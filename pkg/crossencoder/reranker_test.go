package crossencoder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellisearch/vectorpipe/pkg/scoring"
	"github.com/trellisearch/vectorpipe/pkg/types"
)

// scoreClient scores each text by the number encoded in it ("doc-7"
// scores 0.07), so the expected ordering is known in advance.
type scoreClient struct {
	mu        sync.Mutex
	calls     int
	callSizes []int
	err       error
}

func (c *scoreClient) Rerank(ctx context.Context, req scoring.RerankRequest) ([]scoring.RankedScore, error) {
	c.mu.Lock()
	c.calls++
	c.callSizes = append(c.callSizes, len(req.Texts))
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}

	scores := make([]scoring.RankedScore, len(req.Texts))
	for i, text := range req.Texts {
		n, _ := strconv.Atoi(strings.TrimPrefix(text, "doc-"))
		scores[i] = scoring.RankedScore{Index: uint32(i), Score: float32(n) / 100}
	}
	return scores, nil
}

func (c *scoreClient) EmbedDense(ctx context.Context, req scoring.DenseRequest) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (c *scoreClient) EmbedSparse(ctx context.Context, req scoring.SparseRequest) ([]types.SparseVector, error) {
	return nil, errors.New("not used")
}

func (c *scoreClient) Close() error { return nil }

func candidates(n int) []types.ScoredCandidate {
	out := make([]types.ScoredCandidate, n)
	for i := range out {
		out[i] = types.ScoredCandidate{Text: fmt.Sprintf("doc-%d", i)}
	}
	return out
}

func TestReranker_SortsDescending(t *testing.T) {
	r := NewReranker(&scoreClient{}, nil)

	got, err := r.Rerank(context.Background(), "query", candidates(5), 0)
	require.NoError(t, err)
	require.Len(t, got, 5)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
	assert.Equal(t, "doc-4", got[0].Text)
	assert.Equal(t, "doc-0", got[4].Text)
}

func TestReranker_ChunksLargeBatches(t *testing.T) {
	client := &scoreClient{}
	r := NewReranker(client, nil)

	got, err := r.Rerank(context.Background(), "query", candidates(25), 0)
	require.NoError(t, err)
	require.Len(t, got, 25)

	// 25 candidates go out as one chunk of 20 and one of 5.
	assert.Equal(t, 2, client.calls)
	assert.ElementsMatch(t, []int{20, 5}, client.callSizes)

	// Chunk boundaries must not disturb the global ordering.
	assert.Equal(t, "doc-24", got[0].Text)
	assert.Equal(t, "doc-0", got[24].Text)
}

func TestReranker_TruncatesToPageSize(t *testing.T) {
	r := NewReranker(&scoreClient{}, nil)

	got, err := r.Rerank(context.Background(), "query", candidates(25), 10)
	require.NoError(t, err)

	require.Len(t, got, 10)
	assert.Equal(t, "doc-24", got[0].Text)
	assert.Equal(t, "doc-15", got[9].Text)
}

func TestReranker_EmptyInputSkipsRemoteCall(t *testing.T) {
	client := &scoreClient{}
	r := NewReranker(client, nil)

	got, err := r.Rerank(context.Background(), "query", nil, 10)
	require.NoError(t, err)

	assert.Empty(t, got)
	assert.Equal(t, 0, client.calls)
}

func TestReranker_DoesNotMutateInput(t *testing.T) {
	r := NewReranker(&scoreClient{}, nil)

	in := candidates(3)
	_, err := r.Rerank(context.Background(), "query", in, 0)
	require.NoError(t, err)

	for _, c := range in {
		assert.Zero(t, c.Score)
	}
}

func TestReranker_PropagatesFailure(t *testing.T) {
	boom := errors.New("reranker down")
	r := NewReranker(&scoreClient{err: boom}, nil)

	got, err := r.Rerank(context.Background(), "query", candidates(3), 0)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}
