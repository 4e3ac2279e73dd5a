package fluxgraph

import "math"

func init() {
	registerModule("Supersaw", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newSupersaw(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}}, // pitch CV
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

var supersawOffsets = [7]Sample{-1.0, -0.666, -0.333, 0, 0.333, 0.666, 1.0}
var supersawLevels = [7]Sample{0.7, 0.8, 0.9, 1.0, 0.9, 0.8, 0.7}

// supersaw stacks 7 detuned sawtooth voices at fixed relative positions,
// level-weighted toward the center, JP-8000 style (spec.md §4.5 Supersaw).
type supersaw struct {
	params     *ParamSet
	sampleRate float64
	phases     [7]Sample
}

func newSupersaw(ctx ProcessContext) *supersaw {
	s := &supersaw{
		params:     NewParamSet(map[string]Sample{"base_freq": 220, "detune": 25, "mix": 1}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
	for i := range s.phases {
		s.phases[i] = Sample(i) / 7
	}
	return s
}

func (s *supersaw) Reset(sampleRate float64) {
	s.sampleRate = sampleRate
	for i := range s.phases {
		s.phases[i] = Sample(i) / 7
	}
}

func (s *supersaw) Params() *ParamSet { return s.params }

func (s *supersaw) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	baseFreqP := s.params.Get("base_freq", frames)
	detuneP := s.params.Get("detune", frames)
	mixP := s.params.Get("mix", frames)
	pitch := ins[0].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		base := sampleAt(baseFreqP, i, 220)
		cv := inputAt(pitch, i)
		detuneCents := clampf(sampleAt(detuneP, i, 25), 0, 100)
		mix := clampf(sampleAt(mixP, i, 1), 0, 1)

		frequency := base * Sample(math.Pow(2, float64(cv)))
		var sample, totalLevel Sample

		for v := 0; v < 7; v++ {
			offset := supersawOffsets[v]
			level := supersawLevels[v]
			detuneFactor := Sample(math.Pow(2, float64(detuneCents*offset)/1200))
			voiceFreq := frequency * detuneFactor
			dt := Sample(math.Min(float64(voiceFreq)/s.sampleRate, 1))

			s.phases[v] += voiceFreq / Sample(s.sampleRate)
			if s.phases[v] >= 1 {
				s.phases[v] -= Sample(math.Floor(float64(s.phases[v])))
			}
			phase := s.phases[v]
			saw := 2*phase - 1
			saw -= polyBLEP(phase, dt)
			sample += saw * level
			totalLevel += level
		}

		out[i] = (sample / totalLevel) * mix
	}
}
