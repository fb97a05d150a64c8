// Package bm25 computes sparse relevance vectors locally: deterministic
// tokenization with English stemming, stable 32-bit token ids, and
// saturating BM25 term weights. It is the no-network alternative to the
// remote sparse encoder.
package bm25
