package fluxgraph

import "math"

func init() {
	registerModule("Snare909", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newSnare909(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// snare909 mixes a dual detuned tone oscillator with white noise for the
// snare wires, each with its own decay (spec.md §4.7 909 snare). The noise
// is not filtered; snappy scales the noise level only.
type snare909 struct {
	params                   *ParamSet
	sampleRate               float64
	phase                    Sample
	noiseState               uint32
	ampEnv, noiseEnv         Sample
	lastTrig, latchedAccent  Sample
}

func newSnare909(ctx ProcessContext) *snare909 {
	return &snare909{
		params:        NewParamSet(map[string]Sample{"tune": 200, "tone": 0.5, "snappy": 0.5, "decay": 0.3}),
		sampleRate:    ctx.sampleRateOrDefault(),
		noiseState:    0x12345678,
		latchedAccent: 0.5,
	}
}

func (s *snare909) Reset(sampleRate float64) {
	s.sampleRate = sampleRate
	s.phase, s.ampEnv, s.noiseEnv, s.lastTrig = 0, 0, 0, 0
}

func (s *snare909) Params() *ParamSet { return s.params }

func (s *snare909) whiteNoise() Sample {
	s.noiseState ^= s.noiseState << 13
	s.noiseState ^= s.noiseState >> 17
	s.noiseState ^= s.noiseState << 5
	return Sample(s.noiseState)/Sample(^uint32(0))*2 - 1
}

func (s *snare909) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	tuneP := s.params.Get("tune", frames)
	toneP := s.params.Get("tone", frames)
	snappyP := s.params.Get("snappy", frames)
	decayP := s.params.Get("decay", frames)
	trigIn, accentIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		tune := clampf(sampleAt(tuneP, i, 200), 100, 400)
		toneMix := clampf(sampleAt(toneP, i, 0.5), 0, 1)
		snappy := clampf(sampleAt(snappyP, i, 0.5), 0, 1)
		decay := clampf(sampleAt(decayP, i, 0.3), 0.05, 1)

		trig := inputAt(trigIn, i)
		accent := clampf(sampleAt(accentIn, i, 0.5), 0, 1)

		if trig > 0.5 && s.lastTrig <= 0.5 {
			s.ampEnv, s.noiseEnv = 1, 1
			s.phase = 0
			s.latchedAccent = accent
		}
		s.lastTrig = trig

		dt1 := tune / Sample(s.sampleRate)
		s.phase += dt1
		if s.phase >= 1 {
			s.phase -= 1
		}
		tone1 := Sample(math.Sin(float64(s.phase) * 2 * math.Pi))
		tone2 := Sample(math.Sin(float64(s.phase)*1.5*2*math.Pi)) * 0.5
		toneSignal := (tone1 + tone2) * 0.6

		noiseDecayRate := 1 / (decay * 0.4 * Sample(s.sampleRate))
		s.noiseEnv = clampf(s.noiseEnv-noiseDecayRate, 0, 1)
		noise := s.whiteNoise()
		noiseSignal := noise * s.noiseEnv * (0.3 + snappy*0.7)

		ampDecayRate := 1 / (decay * Sample(s.sampleRate))
		s.ampEnv = clampf(s.ampEnv-ampDecayRate, 0, 1)

		toneAmount := toneSignal * s.ampEnv * toneMix
		noiseAmount := noiseSignal * (1 - toneMix*0.3)
		sample := (toneAmount + noiseAmount) * 0.7
		sample *= 0.7 + s.latchedAccent*0.5

		out[i] = clampf(sample, -1, 1)
	}
}
