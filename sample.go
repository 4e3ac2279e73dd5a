package fluxgraph

// Sample is a single real-valued audio sample. Nominal range is -1..+1 at
// module boundaries; internal headroom is allowed, and clamping to that
// range is each module's own choice at its output edge.
type Sample = float32

// clampSample hard-limits a value to [-1, 1]: NaN becomes 0 and the
// infinities clamp to ±1, so a misbehaving module can never propagate
// NaN/Inf downstream.
func clampSample(v Sample) Sample {
	if v != v { // NaN
		return 0
	}
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// sampleAt reads buf[i] if present, otherwise broadcasts buf[0] (the
// "shorter input reads as a constant" rule in the module contract), falling
// back to def when buf is empty entirely.
func sampleAt(buf []Sample, i int, def Sample) Sample {
	if len(buf) == 0 {
		return def
	}
	if i < len(buf) {
		return buf[i]
	}
	return buf[0]
}

// inputAt is sampleAt with a silence default, for audio-rate input ports.
func inputAt(buf []Sample, i int) Sample {
	return sampleAt(buf, i, 0)
}

func clampf(v, lo, hi Sample) Sample {
	if v != v {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
