package bm25

import (
	"math"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"github.com/spaolacci/murmur3"

	"github.com/trellisearch/vectorpipe/pkg/types"
)

// maxTokenLen drops pathological tokens (base64 blobs, URLs) before they
// pollute the vocabulary.
const maxTokenLen = 40

// Tokenize splits text on non-alphanumeric boundaries, drops tokens longer
// than 40 characters, lowercases, and applies English stemming.
// Deterministic, no I/O.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > maxTokenLen {
			continue
		}
		tokens = append(tokens, english.Stem(strings.ToLower(f), true))
	}
	return tokens
}

// TokenID maps a stemmed token to a stable vocabulary id: the absolute
// value of the signed interpretation of its 32-bit murmur3 hash. Equal
// tokens yield equal ids across independent calls, which is what makes
// sparse vectors comparable across documents.
func TokenID(token string) uint32 {
	h := int32(murmur3.Sum32([]byte(token)))
	if h == math.MinInt32 {
		return 1 << 31
	}
	if h < 0 {
		h = -h
	}
	return uint32(h)
}

// Score computes one BM25 sparse vector per item without any remote call.
//
// For a token with raw frequency f in a document of length L,
//
//	weight = f*(k+1) / (f + k*(1 - b + b*L/avgDocLen))
//
// which grows monotonically with f, saturates toward k+1, and is scaled
// down for longer-than-average documents when b > 0.
//
// A WeightBoost multiplies the weights of phrase tokens already present in
// the document; phrase-only tokens are dropped, emphasis not injection.
func Score(items []types.TextItem, avgDocLen, b, k float32) []types.SparseVector {
	out := make([]types.SparseVector, len(items))
	for i, item := range items {
		out[i] = scoreOne(item, avgDocLen, b, k)
	}
	return out
}

func scoreOne(item types.TextItem, avgDocLen, b, k float32) types.SparseVector {
	tokens := Tokenize(item.Content)

	freqs := make(map[string]float32, len(tokens))
	for _, tok := range tokens {
		freqs[tok]++
	}

	docLen := float32(len(tokens))
	weights := make(map[uint32]float32, len(freqs))
	for tok, f := range freqs {
		top := f * (k + 1)
		bottom := f + k*(1-b+b*docLen/avgDocLen)
		weights[TokenID(tok)] = top / bottom
	}

	if boost := item.WeightBoost; boost != nil {
		for _, tok := range Tokenize(boost.Phrase) {
			id := TokenID(tok)
			if w, ok := weights[id]; ok {
				weights[id] = w * float32(boost.Factor)
			}
		}
	}

	vector := make(types.SparseVector, 0, len(weights))
	for id, w := range weights {
		vector = append(vector, types.SparseEntry{Index: id, Value: w})
	}
	return vector
}
