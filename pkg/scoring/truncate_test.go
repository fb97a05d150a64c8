package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClip(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		threshold int
		ceiling   int
		wantRunes int
		unchanged bool
	}{
		{
			name:      "under threshold passes through",
			text:      strings.Repeat("a", 100),
			threshold: 100,
			ceiling:   50,
			unchanged: true,
		},
		{
			name:      "over threshold but under ceiling passes through",
			text:      strings.Repeat("a", 150),
			threshold: 100,
			ceiling:   200,
			unchanged: true,
		},
		{
			name:      "over both is cut at ceiling",
			text:      strings.Repeat("a", 300),
			threshold: 100,
			ceiling:   200,
			wantRunes: 200,
		},
		{
			name:      "empty text",
			text:      "",
			threshold: 100,
			ceiling:   50,
			unchanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clip(tt.text, tt.threshold, tt.ceiling)
			if tt.unchanged {
				assert.Equal(t, tt.text, got)
				return
			}
			assert.Len(t, []rune(got), tt.wantRunes)
			assert.True(t, strings.HasPrefix(tt.text, got))
		})
	}
}

func TestClip_ThresholdIsBytesCeilingIsRunes(t *testing.T) {
	// Four bytes per rune, so 50 runes trip a 100-byte threshold while
	// staying under a 60-rune ceiling.
	text := strings.Repeat("\U0001F600", 50)
	assert.Equal(t, text, Clip(text, 100, 60))

	// Same text with a lower ceiling is cut by rune count, preserving
	// whole characters.
	clipped := Clip(text, 100, 10)
	assert.Equal(t, strings.Repeat("\U0001F600", 10), clipped)
}
