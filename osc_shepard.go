package fluxgraph

import "math"

func init() {
	registerModule("Shepard", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newShepard(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}}, // rate CV
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

const shepardVoices = 10

// shepard produces the endless-glissando illusion: shepardVoices sine
// partials spaced an octave apart, each sweeping exponentially in log-
// frequency space and wrapping back in with a bell-shaped amplitude
// envelope so the wrap is inaudible (spec.md §2 Shepard).
type shepard struct {
	params     *ParamSet
	sampleRate float64
	phases     [shepardVoices]float64
	logPos     [shepardVoices]Sample // 0..1 position in the octave span
}

func newShepard(ctx ProcessContext) *shepard {
	s := &shepard{
		params:     NewParamSet(map[string]Sample{"rate": 0.1, "base_freq": 55, "direction": 1}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
	for i := range s.logPos {
		s.logPos[i] = Sample(i) / shepardVoices
	}
	return s
}

func (s *shepard) Reset(sampleRate float64) {
	s.sampleRate = sampleRate
	s.phases = [shepardVoices]float64{}
}

func (s *shepard) Params() *ParamSet { return s.params }

// shepardWeight is a raised-cosine bell centered at logPos=0.5 so voices
// fade in/out smoothly as they wrap past the top or bottom of the span.
func shepardWeight(logPos Sample) Sample {
	return Sample(0.5 * (1 - math.Cos(2*math.Pi*float64(logPos))))
}

func (s *shepard) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	rateP := s.params.Get("rate", frames)
	baseP := s.params.Get("base_freq", frames)
	dirP := s.params.Get("direction", frames)
	rateCV := ins[0].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		rate := sampleAt(rateP, i, 0.1)
		base := sampleAt(baseP, i, 55)
		direction := Sample(1)
		if sampleAt(dirP, i, 1) < 0 {
			direction = -1
		}
		cv := inputAt(rateCV, i)
		step := direction * rate * (1 + cv) / Sample(s.sampleRate)

		var sample, totalWeight Sample
		for v := 0; v < shepardVoices; v++ {
			s.logPos[v] += step
			for s.logPos[v] >= 1 {
				s.logPos[v] -= 1
			}
			for s.logPos[v] < 0 {
				s.logPos[v] += 1
			}
			freq := base * Sample(math.Pow(2, float64(s.logPos[v])*shepardVoices))
			s.phases[v] += float64(freq) / s.sampleRate
			if s.phases[v] >= 1 {
				s.phases[v] -= math.Floor(s.phases[v])
			}
			weight := shepardWeight(s.logPos[v])
			sample += Sample(math.Sin(2*math.Pi*s.phases[v])) * weight
			totalWeight += weight
		}
		if totalWeight > 0 {
			sample /= totalWeight
		}
		out[i] = sample
	}
}
