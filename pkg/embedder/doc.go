// Package embedder composes the batch orchestrator, the remote scoring
// client, the boost blender, and the local BM25 scorer into the dense and
// sparse embedding services consumed by the indexing and query pipelines.
//
// Every batched operation is atomic: results come back in input order or
// the whole call fails with a single error.
package embedder
