package fluxgraph

import "math"

func init() {
	registerModule("SpringReverb", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newSpringReverbFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 2}},
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

var (
	springCombTuning    = [3]int{1687, 2053, 2389}
	springAllpassTuning = [2]int{347, 113}
)

const springStereoSpread = 17

// springReverbFx reuses the comb/allpass tank from the hall reverb but
// with three longer combs, two shorter allpasses and an input saturation
// stage, after the
// metallic ring and drive-dependent grit of a real spring tank (spec.md
// §4.8 Spring Reverb).
type springReverbFx struct {
	params             *ParamSet
	sampleRate         float64
	combsL, combsR     [3]*combFilter
	allpassL, allpassR [2]*allpassFilter
}

func newSpringReverbFx(ctx ProcessContext) *springReverbFx {
	s := &springReverbFx{
		params: NewParamSet(map[string]Sample{
			"decay": 0.6, "tone": 0.4, "mix": 0.4, "drive": 0.2,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
	s.allocate()
	return s
}

func (s *springReverbFx) allocate() {
	scale := s.sampleRate / 44100
	for j, length := range springCombTuning {
		s.combsL[j] = newCombFilter(maxInt(1, int(math.Round(float64(length)*scale))))
		s.combsR[j] = newCombFilter(maxInt(1, int(math.Round(float64(length+springStereoSpread)*scale))))
	}
	for j, length := range springAllpassTuning {
		s.allpassL[j] = newAllpassFilter(maxInt(1, int(math.Round(float64(length)*scale))), 0.5)
		s.allpassR[j] = newAllpassFilter(maxInt(1, int(math.Round(float64(length+springStereoSpread)*scale))), 0.5)
	}
}

func (s *springReverbFx) Reset(sampleRate float64) {
	s.sampleRate = sampleRate
	s.allocate()
}

func (s *springReverbFx) Params() *ParamSet { return s.params }

func (s *springReverbFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	decayP := s.params.Get("decay", frames)
	toneP := s.params.Get("tone", frames)
	mixP := s.params.Get("mix", frames)
	driveP := s.params.Get("drive", frames)
	inL, inR := ins[0].Chan(0), ins[0].Chan(1)
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)

	decay := clampf(sampleAt(decayP, 0, 0.6), 0, 0.98)
	tone := clampf(sampleAt(toneP, 0, 0.4), 0, 1)
	feedback := clampf(0.35+decay*0.6, 0.2, 0.98)
	damp := 0.08 + (1-tone)*0.82

	for _, c := range s.combsL {
		c.setFeedback(feedback)
		c.setDamp(damp)
	}
	for _, c := range s.combsR {
		c.setFeedback(feedback)
		c.setDamp(damp)
	}

	for i := 0; i < frames; i++ {
		mix := clampf(sampleAt(mixP, i, 0.4), 0, 1)
		drive := clampf(sampleAt(driveP, i, 0.2), 0, 1)

		sampleL := inputAt(inL, i)
		sampleR := sampleL
		if len(inR) > 0 {
			sampleR = inputAt(inR, i)
		}

		driveGain := 1 + drive*4
		springInL := softClip(sampleL*driveGain) * 0.35
		springInR := softClip(sampleR*driveGain) * 0.35

		var wetL, wetR Sample
		for _, c := range s.combsL {
			wetL += c.process(springInL)
		}
		for _, c := range s.combsR {
			wetR += c.process(springInR)
		}
		for _, a := range s.allpassL {
			wetL = a.process(wetL)
		}
		for _, a := range s.allpassR {
			wetR = a.process(wetR)
		}

		wetScale := Sample(0.4)
		wetL *= wetScale
		wetR *= wetScale

		dry := 1 - mix
		outL[i] = sampleL*dry + wetL*mix
		outR[i] = sampleR*dry + wetR*mix
	}
}
