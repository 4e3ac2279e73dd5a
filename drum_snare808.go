package fluxgraph

import "math"

func init() {
	registerModule("Snare808", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newSnare808(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// snare808 pairs two detuned triangle oscillators with a pitch envelope
// against high-passed noise, biased more tonal than the 909 snare for the
// 808's distinctive "crack" (spec.md §4.7 808 snare).
type snare808 struct {
	params                  *ParamSet
	sampleRate              float64
	phase1, phase2          Sample
	pitchEnv, ampEnv, noiseEnv Sample
	noiseState              uint32
	hpState                 Sample
	lastTrig, latchedAccent Sample
}

func newSnare808(ctx ProcessContext) *snare808 {
	return &snare808{
		params:        NewParamSet(map[string]Sample{"tune": 180, "tone": 0.6, "snappy": 0.7, "decay": 0.2}),
		sampleRate:    ctx.sampleRateOrDefault(),
		noiseState:    0xDEADBEEF,
		latchedAccent: 0.5,
	}
}

func (s *snare808) Reset(sampleRate float64) {
	s.sampleRate = sampleRate
	s.phase1, s.phase2, s.pitchEnv, s.ampEnv, s.noiseEnv, s.hpState = 0, 0, 0, 0, 0, 0
	s.lastTrig = 0
}

func (s *snare808) Params() *ParamSet { return s.params }

func (s *snare808) whiteNoise() Sample {
	s.noiseState ^= s.noiseState << 13
	s.noiseState ^= s.noiseState >> 17
	s.noiseState ^= s.noiseState << 5
	return Sample(s.noiseState)/Sample(^uint32(0))*2 - 1
}

func (s *snare808) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	tuneP := s.params.Get("tune", frames)
	toneP := s.params.Get("tone", frames)
	snappyP := s.params.Get("snappy", frames)
	decayP := s.params.Get("decay", frames)
	trigIn, accentIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		tune := clampf(sampleAt(tuneP, i, 180), 100, 350)
		toneMix := clampf(sampleAt(toneP, i, 0.6), 0, 1)
		snappy := clampf(sampleAt(snappyP, i, 0.7), 0, 1)
		decay := clampf(sampleAt(decayP, i, 0.2), 0.05, 0.8)

		trig := inputAt(trigIn, i)
		accent := clampf(sampleAt(accentIn, i, 0.5), 0, 1)

		if trig > 0.5 && s.lastTrig <= 0.5 {
			s.pitchEnv, s.ampEnv, s.noiseEnv = 1, 1, 1
			s.phase1, s.phase2 = 0, 0
			s.latchedAccent = accent
		}
		s.lastTrig = trig

		pitchDecayRate := Sample(0.001)
		s.pitchEnv *= 1 - pitchDecayRate*Sample(s.sampleRate/48000)

		freq1 := tune * (1 + s.pitchEnv*1.5)
		freq2 := tune * 1.5 * (1 + s.pitchEnv*0.8)

		s.phase1 += freq1 / Sample(s.sampleRate)
		s.phase2 += freq2 / Sample(s.sampleRate)
		if s.phase1 >= 1 {
			s.phase1 -= 1
		}
		if s.phase2 >= 1 {
			s.phase2 -= 1
		}

		tri1 := triangleLinear(s.phase1)
		tri2 := triangleLinear(s.phase2)
		toneSignal := (tri1 + tri2*0.4) * 0.6

		noise := s.whiteNoise()
		hpCutoff := 2000 + snappy*4000
		hpCoeff := 1 - Sample(math.Min(math.Pi*float64(hpCutoff)/s.sampleRate, 0.99))
		s.hpState = hpCoeff * (s.hpState + noise)
		hpNoise := noise - s.hpState

		noiseDecayRate := 1 / (decay * 0.3 * Sample(s.sampleRate))
		s.noiseEnv = clampf(s.noiseEnv-noiseDecayRate, 0, 1)
		noiseSignal := hpNoise * s.noiseEnv * (0.4 + snappy*0.6)

		ampDecayRate := 1 / (decay * Sample(s.sampleRate))
		s.ampEnv = clampf(s.ampEnv-ampDecayRate, 0, 1)

		toneAmount := toneSignal * s.ampEnv * (0.4 + toneMix*0.6)
		noiseAmount := noiseSignal * (0.3 + (1-toneMix)*0.4)
		sample := (toneAmount + noiseAmount) * 0.8
		sample *= 0.7 + s.latchedAccent*0.5

		out[i] = clampf(sample, -1, 1)
	}
}
