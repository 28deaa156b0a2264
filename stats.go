package offstage

// CacheStats counts render-target cache activity for one effect.
type CacheStats struct {
	Hits          uint64 // captures that reused the existing target
	Misses        uint64 // captures that had to rebuild the target
	Invalidations uint64 // entries whose GPU resources were released
	Skips         uint64 // paints satisfied by the capture alone, actor untouched
}

// RedrawStats counts redraw and presentation decisions for a stage window.
type RedrawStats struct {
	ClippedRedraws uint64 // paints limited to a resolved damage region
	FullRedraws    uint64 // paints of the whole stage
	SwapRegions    uint64 // presents that blitted only a sub-region
	DamageSwaps    uint64 // full swaps carrying a damage hint
	FullSwaps      uint64 // full swaps with no damage information
}
