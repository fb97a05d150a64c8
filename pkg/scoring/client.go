package scoring

import (
	"context"

	"github.com/trellisearch/vectorpipe/pkg/types"
)

// Mode selects the asymmetric query/document encoding some embedding
// models require. Query mode prefixes the configured query prefix before
// embedding; doc mode sends the text as-is. For sparse embedding the mode
// also selects which sparse origin (doc or query encoder) serves the call.
type Mode string

const (
	ModeDoc   Mode = "doc"
	ModeQuery Mode = "query"
)

// MaxGroupSize is the largest batch one embedding call may carry. Larger
// input sets are split by the batch orchestrator before reaching a client.
const MaxGroupSize = 30

// MaxRerankGroupSize is the largest candidate set one rerank call may carry.
const MaxRerankGroupSize = 20

// DenseRequest asks for one dense embedding per input, in input order.
type DenseRequest struct {
	Inputs []string
	Mode   Mode
}

// SparseRequest asks for one sparse vector per input, in input order.
type SparseRequest struct {
	Inputs []string
	Mode   Mode
}

// RerankRequest asks for a cross-encoder relevance score of every text
// against the query. Scores come back index-tagged, where the index refers
// to the position within Texts.
type RerankRequest struct {
	Query string
	Texts []string
}

// RankedScore is one cross-encoder score, tagged with the position of the
// scored text inside the request.
type RankedScore struct {
	Index uint32  `json:"index"`
	Score float32 `json:"score"`
}

// Client is the uniform contract over the remote scoring services:
// dense embedding, sparse embedding, and cross-encoder reranking.
//
// Two interchangeable transports implement it, selected at construction
// time: HTTPClient speaks synchronous JSON request/response, StreamClient
// speaks per-item frames over a persistent channel. Callers cannot tell
// them apart beyond latency characteristics.
//
// Implementations never retry; every failure surfaces as one of the error
// kinds in this package and fails the batch it belongs to.
type Client interface {
	// EmbedDense returns one non-empty vector per input.
	EmbedDense(ctx context.Context, req DenseRequest) ([][]float32, error)

	// EmbedSparse returns one sparse vector per input.
	EmbedSparse(ctx context.Context, req SparseRequest) ([]types.SparseVector, error)

	// Rerank scores req.Texts against req.Query.
	Rerank(ctx context.Context, req RerankRequest) ([]RankedScore, error)

	// Close releases transport resources (connections, channels).
	Close() error
}
