package scoring

// Clip thresholds and ceilings, per capability and call shape. Inputs at
// or below the threshold pass through untouched; longer inputs are cut at
// the ceiling, so moderately long texts survive while request size stays
// bounded. Thresholds compare byte length, ceilings count characters.
const (
	DenseSingleClipThreshold = 7000
	DenseSingleClipCeiling   = 20000

	DenseBatchClipThreshold = 5000
	DenseBatchClipCeiling   = 12000

	SparseSingleClipThreshold = 5000
	SparseSingleClipCeiling   = 128000

	SparseBatchClipThreshold = 5000
	SparseBatchClipCeiling   = 50000
)

// Clip bounds text for transmission. Text within threshold bytes is
// returned unchanged; anything longer is truncated to ceiling characters.
// Clipping never cuts below the threshold and never sends unbounded input.
func Clip(text string, threshold, ceiling int) string {
	if len(text) <= threshold {
		return text
	}
	runes := []rune(text)
	if len(runes) <= ceiling {
		return text
	}
	return string(runes[:ceiling])
}
