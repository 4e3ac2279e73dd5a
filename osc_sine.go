package fluxgraph

import "math"

func init() {
	registerModule("Sine", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newSineOsc(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}}, // pitch CV
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// sineOsc is the plain fixed-waveform sine generator: no FM, no sync, no
// unison, just frequency and gain (spec.md §2 "sine" in the oscillator
// list, distinct from the Oscillator module's waveform=0 mode).
type sineOsc struct {
	params     *ParamSet
	phase      float64
	sampleRate float64
}

func newSineOsc(ctx ProcessContext) *sineOsc {
	return &sineOsc{
		params:     NewParamSet(map[string]Sample{"frequency": 440, "gain": 0.8}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
}

func (s *sineOsc) Reset(sampleRate float64) {
	s.sampleRate = sampleRate
	s.phase = 0
}

func (s *sineOsc) Params() *ParamSet { return s.params }

func (s *sineOsc) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	freqP := s.params.Get("frequency", frames)
	gainP := s.params.Get("gain", frames)
	pitch := ins[0].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		base := sampleAt(freqP, i, 440)
		gain := clampf(sampleAt(gainP, i, 0.8), 0, 1)
		cv := inputAt(pitch, i)
		freq := math.Max(float64(base)*math.Pow(2, float64(cv)), 0)

		out[i] = gain * Sample(math.Sin(s.phase))
		s.phase += freq / s.sampleRate * 2 * math.Pi
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
}
