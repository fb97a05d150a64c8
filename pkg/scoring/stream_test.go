package scoring

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// newStreamServer runs a websocket endpoint that answers every frame with
// handle(frame), in arrival order.
func newStreamServer(t *testing.T, handle func(frame []byte) []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, frame, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, handle(frame)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestStreamClient_EmbedDense(t *testing.T) {
	// Encode the input's ordinal into the vector so reassembly order is
	// observable.
	server := newStreamServer(t, func(frame []byte) []byte {
		var req denseFrame
		require.NoError(t, sonic.Unmarshal(frame, &req))

		var n int
		fmt.Sscanf(req.Input, "text-%d", &n)
		return []byte(fmt.Sprintf(`{"embedding":[%d.0]}`, n))
	})

	cfg := newTestConfig()
	cfg.Embedding.StreamOrigin = wsURL(server)
	cfg.Transport.MaxInFlight = 5
	cfg.Transport.WindowSize = 3
	cfg.Transport.WindowTimeoutSeconds = 10
	client := NewStreamClient(cfg, nil)
	defer client.Close()

	inputs := make([]string, 12)
	for i := range inputs {
		inputs[i] = fmt.Sprintf("text-%d", i)
	}

	vectors, err := client.EmbedDense(context.Background(), DenseRequest{
		Inputs: inputs,
		Mode:   ModeDoc,
	})
	require.NoError(t, err)

	require.Len(t, vectors, 12)
	for i, v := range vectors {
		require.Len(t, v, 1)
		assert.InDelta(t, float64(i), float64(v[0]), 1e-6)
	}
}

func TestStreamClient_EmbedDense_QueryPrefix(t *testing.T) {
	sawPrefix := make(chan bool, 1)
	server := newStreamServer(t, func(frame []byte) []byte {
		var req denseFrame
		_ = sonic.Unmarshal(frame, &req)
		select {
		case sawPrefix <- strings.HasPrefix(req.Input, "query: "):
		default:
		}
		return []byte(`{"embedding":[1.0]}`)
	})

	cfg := newTestConfig()
	cfg.Embedding.StreamOrigin = wsURL(server)
	client := NewStreamClient(cfg, nil)
	defer client.Close()

	_, err := client.EmbedDense(context.Background(), DenseRequest{
		Inputs: []string{"find me"},
		Mode:   ModeQuery,
	})
	require.NoError(t, err)
	assert.True(t, <-sawPrefix)
}

func TestStreamClient_EmbedSparse(t *testing.T) {
	server := newStreamServer(t, func(frame []byte) []byte {
		var req sparseFrame
		require.NoError(t, sonic.Unmarshal(frame, &req))
		assert.True(t, req.Truncate)

		var n int
		fmt.Sscanf(req.Inputs, "doc-%d", &n)
		return []byte(fmt.Sprintf(`{"sparse_embeddings":[{"index":%d,"value":0.5}]}`, n+1))
	})

	cfg := newTestConfig()
	cfg.Sparse.DocStreamOrigin = wsURL(server)
	client := NewStreamClient(cfg, nil)
	defer client.Close()

	inputs := []string{"doc-0", "doc-1", "doc-2", "doc-3"}
	vectors, err := client.EmbedSparse(context.Background(), SparseRequest{
		Inputs: inputs,
		Mode:   ModeDoc,
	})
	require.NoError(t, err)

	require.Len(t, vectors, 4)
	for i, v := range vectors {
		require.Len(t, v, 1)
		assert.Equal(t, uint32(i+1), v[0].Index)
	}
}

func TestStreamClient_Rerank(t *testing.T) {
	server := newStreamServer(t, func(frame []byte) []byte {
		var req rerankFrame
		require.NoError(t, sonic.Unmarshal(frame, &req))
		assert.False(t, req.ReturnText)

		return []byte(`{"ranks":[{"index":1,"score":0.9},{"index":0,"score":0.1}]}`)
	})

	cfg := newTestConfig()
	cfg.Reranker.StreamOrigin = wsURL(server)
	client := NewStreamClient(cfg, nil)
	defer client.Close()

	scores, err := client.Rerank(context.Background(), RerankRequest{
		Query: "q",
		Texts: []string{"a", "b"},
	})
	require.NoError(t, err)

	require.Len(t, scores, 2)
	assert.Equal(t, uint32(1), scores[0].Index)
}

func TestStreamClient_ReusesChannelAcrossCalls(t *testing.T) {
	var dials int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dials, 1)
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"embedding":[1.0]}`)); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := newTestConfig()
	cfg.Embedding.StreamOrigin = wsURL(server)
	client := NewStreamClient(cfg, nil)
	defer client.Close()

	for i := 0; i < 3; i++ {
		_, err := client.EmbedDense(context.Background(), DenseRequest{
			Inputs: []string{"hello"},
			Mode:   ModeDoc,
		})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&dials))
}

func TestStreamClient_FailureReleasesWaiters(t *testing.T) {
	// The server drops the connection after the first frame; every
	// outstanding round trip must error out instead of hanging.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.ReadMessage()
		ws.Close()
	}))
	defer server.Close()

	cfg := newTestConfig()
	cfg.Embedding.StreamOrigin = wsURL(server)
	client := NewStreamClient(cfg, nil)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.EmbedDense(ctx, DenseRequest{
		Inputs: []string{"a", "b", "c", "d"},
		Mode:   ModeDoc,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamClient_MissingOrigin(t *testing.T) {
	client := NewStreamClient(newTestConfig(), nil)

	_, err := client.EmbedDense(context.Background(), DenseRequest{
		Inputs: []string{"a"},
		Mode:   ModeDoc,
	})
	assert.ErrorIs(t, err, ErrMissingConfig)
}
