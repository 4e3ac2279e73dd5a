package fluxgraph

import "math"

func init() {
	registerModule("Snes", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newSnesOsc(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}}, // pitch CV
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

const snesTableLen = 32

// snesWaveTables holds the small built-in wavetables the S-DSP emulation
// cycles through, selected by the "waveform" parameter: 0 sine, 1 saw-ish
// ramp, 2 a narrow pulse, 3 a triangle with a BRR-style stair-step profile.
var snesWaveTables = buildSnesWaveTables()

func buildSnesWaveTables() [4][snesTableLen]Sample {
	var t [4][snesTableLen]Sample
	for i := 0; i < snesTableLen; i++ {
		phase := float64(i) / snesTableLen
		t[0][i] = Sample(math.Sin(2 * math.Pi * phase))
		t[1][i] = Sample(2*phase - 1)
		if phase < 0.2 {
			t[2][i] = 1
		} else {
			t[2][i] = -1
		}
		// BRR emulation quantizes to 16 steps, matching the SNES's 4-bit
		// nibble encoding per sample.
		tri := Sample(1 - 4*math.Abs(phase-0.5))
		step := Sample(math.Round(float64(tri)*8)) / 8
		t[3][i] = step
	}
	return t
}

// snesOsc emulates the SNES S-DSP's sample-playback voices: a small set of
// built-in BRR-quantized wavetables read with linear interpolation at a
// pitch-derived step (spec.md §2 SNES oscillator).
type snesOsc struct {
	params     *ParamSet
	sampleRate float64
	phase      Sample
}

func newSnesOsc(ctx ProcessContext) *snesOsc {
	return &snesOsc{
		params:     NewParamSet(map[string]Sample{"base_freq": 220, "waveform": 0, "volume": 1}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
}

func (s *snesOsc) Reset(sampleRate float64) {
	s.sampleRate = sampleRate
	s.phase = 0
}

func (s *snesOsc) Params() *ParamSet { return s.params }

func (s *snesOsc) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	baseP := s.params.Get("base_freq", frames)
	waveformP := s.params.Get("waveform", frames)
	volP := s.params.Get("volume", frames)
	pitch := ins[0].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		base := sampleAt(baseP, i, 220)
		cv := inputAt(pitch, i)
		freq := clampf(base*Sample(math.Pow(2, float64(cv))), 20, 20000)
		vol := clampf(sampleAt(volP, i, 1), 0, 1)
		wave := int(clampf(sampleAt(waveformP, i, 0), 0, 3))

		table := &snesWaveTables[wave]
		s.phase += freq * snesTableLen / Sample(s.sampleRate)
		for s.phase >= snesTableLen {
			s.phase -= snesTableLen
		}
		idx := int(s.phase)
		frac := s.phase - Sample(idx)
		next := (idx + 1) % snesTableLen
		sample := table[idx] + frac*(table[next]-table[idx])

		out[i] = sample * vol
	}
}
