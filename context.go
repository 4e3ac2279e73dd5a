package fluxgraph

// ProcessContext carries the sample rate and nominal block size a graph is
// running at. Sample rate may change between blocks (triggering every
// module's Reset); block size may vary per Render call, so modules must not
// assume it (spec.md §6).
type ProcessContext struct {
	SampleRate float64
	BlockSize  int
}

func (c ProcessContext) sampleRateOrDefault() float64 {
	if c.SampleRate <= 0 {
		return 48000
	}
	return c.SampleRate
}
