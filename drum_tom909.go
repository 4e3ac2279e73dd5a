package fluxgraph

import "math"

func init() {
	registerModule("Tom909", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newTom909(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// tom909 is a pitch-enveloped sine with a touch of noise on the attack,
// the tune parameter alone selecting low/mid/high register (spec.md §4.7
// 909 tom).
type tom909 struct {
	params        *ParamSet
	sampleRate    float64
	phase         Sample
	pitchEnv      Sample
	ampEnv        Sample
	noiseState    uint32
	lastTrig      Sample
	latchedAccent Sample
}

func newTom909(ctx ProcessContext) *tom909 {
	return &tom909{
		params:        NewParamSet(map[string]Sample{"tune": 80, "decay": 0.5}),
		sampleRate:    ctx.sampleRateOrDefault(),
		noiseState:    0x87654321,
		latchedAccent: 0.5,
	}
}

func (t *tom909) Reset(sampleRate float64) {
	t.sampleRate = sampleRate
	t.phase, t.pitchEnv, t.ampEnv, t.lastTrig = 0, 0, 0, 0
}

func (t *tom909) Params() *ParamSet { return t.params }

func (t *tom909) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	tuneP := t.params.Get("tune", frames)
	decayP := t.params.Get("decay", frames)
	trigIn, accentIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		tune := clampf(sampleAt(tuneP, i, 80), 60, 300)
		decay := clampf(sampleAt(decayP, i, 0.5), 0.1, 1.5)

		trig := inputAt(trigIn, i)
		accent := clampf(sampleAt(accentIn, i, 0.5), 0, 1)

		if trig > 0.5 && t.lastTrig <= 0.5 {
			t.pitchEnv, t.ampEnv = 1, 1
			t.phase = 0
			t.latchedAccent = accent
		}
		t.lastTrig = trig

		pitchDecay := Sample(0.001)
		t.pitchEnv *= 1 - pitchDecay*Sample(t.sampleRate/48000)

		freq := tune * (1 + t.pitchEnv*1.5)
		dt := freq / Sample(t.sampleRate)
		t.phase += dt
		if t.phase >= 1 {
			t.phase -= 1
		}
		sine := Sample(math.Sin(float64(t.phase) * 2 * math.Pi))

		t.noiseState ^= t.noiseState << 13
		t.noiseState ^= t.noiseState >> 17
		t.noiseState ^= t.noiseState << 5
		noise := Sample(t.noiseState)/Sample(^uint32(0))*2 - 1
		noiseEnv := clampf(t.ampEnv*2-1, 0, 1)

		ampDecayRate := 1 / (decay * Sample(t.sampleRate))
		t.ampEnv = clampf(t.ampEnv-ampDecayRate, 0, 1)

		sample := (sine + noise*noiseEnv*0.1) * t.ampEnv * 0.8
		sample *= 0.7 + t.latchedAccent*0.5

		out[i] = clampf(sample, -1, 1)
	}
}
