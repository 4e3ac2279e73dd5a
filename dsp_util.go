package fluxgraph

import "math"

// edgeDetector caches the previous sample of a trigger/gate signal and
// reports rising/falling transitions per the rule in spec.md §4.3:
// rising when x_now > 0.5 and x_prev <= 0.5; falling is the mirror.
type edgeDetector struct {
	prev Sample
}

func (d *edgeDetector) update(x Sample) (rising, falling bool) {
	rising = x > 0.5 && d.prev <= 0.5
	falling = x <= 0.5 && d.prev > 0.5
	d.prev = x
	return
}

// xorshift32 is the noise/RNG core used throughout the module library,
// grounded on the white-noise generator the original drum voices share.
type xorshift32 struct{ state uint32 }

func newXorshift32(seed uint32) *xorshift32 {
	if seed == 0 {
		seed = 1
	}
	return &xorshift32{state: seed}
}

// next returns a uniform value in [-1, 1].
func (x *xorshift32) next() Sample {
	x.state ^= x.state << 13
	x.state ^= x.state >> 17
	x.state ^= x.state << 5
	return Sample(x.state)/Sample(math.MaxUint32)*2 - 1
}

// nextUnit returns a uniform value in [0, 1).
func (x *xorshift32) nextUnit() Sample {
	return (x.next() + 1) * 0.5
}

// lcg32 is a linear-congruential generator, used by the Karplus-Strong
// pluck noise; the sample & hold and Turing machine modules step their
// own inline LCG state instead.
type lcg32 struct{ state uint32 }

func newLCG32(seed uint32) *lcg32 { return &lcg32{state: seed} }

func (l *lcg32) next() Sample {
	l.state = l.state*1664525 + 1013904223
	raw := Sample(l.state>>9) / 8388608.0
	return raw*2 - 1
}

func (l *lcg32) nextBit() bool {
	l.state = l.state*1664525 + 1013904223
	return (l.state>>31)&1 == 1
}

// polyBLEP returns the polynomial bandlimited step correction for a phase
// position t (0..1) with per-sample phase increment dt, applied at
// waveform discontinuities to suppress aliasing (spec.md §4.5, glossary).
func polyBLEP(t, dt Sample) Sample {
	if dt <= 0 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

// softClip applies the cubic soft-clip curve x(27+x^2)/(27+9x^2) used by
// the distortion module and reused by other modules that want gentle
// saturation instead of hard tanh.
func softClip(x Sample) Sample {
	return x * (27 + x*x) / (27 + 9*x*x)
}

// onePole runs a single-pole lowpass smoother toward target with
// coefficient coeff in (0, 1], used for the VCF's ~10ms cutoff/resonance
// smoothing, the VCO's pulse-width smoothing and the TB-303 glide. The
// chorus and ensemble modules apply their parameters unsmoothed.
func onePole(current, target, coeff Sample) Sample {
	return current + (target-current)*coeff
}

// smoothingCoeff derives a one-pole coefficient from a time constant in
// seconds and the sample rate, for the documented ~10ms smoothing windows.
func smoothingCoeff(seconds, sampleRate float64) Sample {
	if seconds <= 0 {
		return 1
	}
	return Sample(1 - math.Exp(-1/(seconds*sampleRate)))
}

func clampF64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
