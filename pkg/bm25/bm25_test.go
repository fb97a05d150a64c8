package bm25

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellisearch/vectorpipe/pkg/types"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "splits on punctuation and whitespace",
			text: "hello, world! hello-again",
			want: []string{"hello", "world", "hello", "again"},
		},
		{
			name: "lowercases before stemming",
			text: "Running RUNNING running",
			want: []string{"run", "run", "run"},
		},
		{
			name: "keeps digits",
			text: "bm25 scoring",
			want: []string{"bm25", "score"},
		},
		{
			name: "empty input",
			text: "",
			want: []string{},
		},
		{
			name: "only separators",
			text: "... --- !!!",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}

func TestTokenize_DropsOverlongTokens(t *testing.T) {
	blob := strings.Repeat("x", 41)
	got := Tokenize("short " + blob + " tail")
	assert.Equal(t, []string{"short", "tail"}, got)

	// Exactly 40 runes survives.
	edge := strings.Repeat("x", 40)
	assert.Len(t, Tokenize(edge), 1)
}

func TestTokenID_Stable(t *testing.T) {
	a := TokenID("retrieval")
	b := TokenID("retrieval")
	assert.Equal(t, a, b)

	assert.NotEqual(t, TokenID("retrieval"), TokenID("ranking"))
}

func TestScore_FrequencyMonotonicAndSaturating(t *testing.T) {
	const (
		avgDocLen = 10
		b         = 0.75
		k         = 1.2
	)

	// Same doc length, increasing frequency of "cat".
	weightOf := func(content string) float32 {
		vecs := Score([]types.TextItem{{Content: content}}, avgDocLen, b, k)
		require.Len(t, vecs, 1)
		w, ok := vecs[0].Get(TokenID("cat"))
		require.True(t, ok)
		return w
	}

	w1 := weightOf("cat dog bird fish mouse")
	w2 := weightOf("cat cat bird fish mouse")
	w3 := weightOf("cat cat cat fish mouse")

	assert.Greater(t, w2, w1)
	assert.Greater(t, w3, w2)

	// Saturation: weight never exceeds k+1.
	heavy := weightOf(strings.Repeat("cat ", 200))
	assert.Less(t, heavy, float32(k+1))
}

func TestScore_LengthNormalization(t *testing.T) {
	const (
		avgDocLen = 5
		b         = 0.75
		k         = 1.2
	)

	short := Score([]types.TextItem{{Content: "cat dog"}}, avgDocLen, b, k)
	long := Score([]types.TextItem{{Content: "cat dog bird fish mouse horse cow sheep"}}, avgDocLen, b, k)

	ws, ok := short[0].Get(TokenID("cat"))
	require.True(t, ok)
	wl, ok := long[0].Get(TokenID("cat"))
	require.True(t, ok)

	assert.Greater(t, ws, wl, "shorter-than-average documents score higher per term")
}

func TestScore_WeightBoostMultipliesPresentTerms(t *testing.T) {
	item := types.TextItem{Content: "cat dog"}
	boosted := types.TextItem{
		Content:     "cat dog",
		WeightBoost: &types.WeightPhrase{Phrase: "cat", Factor: 3.0},
	}

	plain := Score([]types.TextItem{item}, 10, 0.75, 1.2)[0]
	withBoost := Score([]types.TextItem{boosted}, 10, 0.75, 1.2)[0]

	pw, ok := plain.Get(TokenID("cat"))
	require.True(t, ok)
	bw, ok := withBoost.Get(TokenID("cat"))
	require.True(t, ok)
	assert.InDelta(t, pw*3.0, bw, 1e-5)

	// Unboosted term is unchanged.
	pd, _ := plain.Get(TokenID("dog"))
	bd, _ := withBoost.Get(TokenID("dog"))
	assert.InDelta(t, pd, bd, 1e-6)
}

func TestScore_BoostOnlyTermsAreNotInjected(t *testing.T) {
	item := types.TextItem{
		Content:     "cat dog",
		WeightBoost: &types.WeightPhrase{Phrase: "elephant", Factor: 5.0},
	}

	vec := Score([]types.TextItem{item}, 10, 0.75, 1.2)[0]

	phraseID := TokenID(Tokenize("elephant")[0])
	_, ok := vec.Get(phraseID)
	assert.False(t, ok, "boost phrase terms absent from the document must not appear")
	assert.Len(t, vec, 2)
}

func TestScore_OneVectorPerItem(t *testing.T) {
	items := []types.TextItem{
		{Content: "first document"},
		{Content: ""},
		{Content: "third document"},
	}

	vecs := Score(items, 10, 0.75, 1.2)

	require.Len(t, vecs, 3)
	assert.NotEmpty(t, vecs[0])
	assert.Empty(t, vecs[1], "empty content yields an empty vector, not an error")
	assert.NotEmpty(t, vecs[2])
}
