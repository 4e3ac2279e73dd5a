package fluxgraph

import "math"

func init() {
	registerModule("Tom808", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newTom808(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// tom808 covers the 808's low/mid/high tom range from a single tune
// parameter with an adjustable pitch-envelope depth for the "doop" swoop
// (spec.md §4.7 808 tom).
type tom808 struct {
	params        *ParamSet
	sampleRate    float64
	phase         Sample
	pitchEnv      Sample
	ampEnv        Sample
	lastTrig      Sample
	latchedAccent Sample
}

func newTom808(ctx ProcessContext) *tom808 {
	return &tom808{
		params:        NewParamSet(map[string]Sample{"tune": 150, "decay": 0.3, "pitch": 0.5, "tone": 0.4}),
		sampleRate:    ctx.sampleRateOrDefault(),
		latchedAccent: 0.5,
	}
}

func (t *tom808) Reset(sampleRate float64) {
	t.sampleRate = sampleRate
	t.phase, t.pitchEnv, t.ampEnv = 0, 0, 0
	t.lastTrig = 0
}

func (t *tom808) Params() *ParamSet { return t.params }

func (t *tom808) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	tuneP := t.params.Get("tune", frames)
	decayP := t.params.Get("decay", frames)
	pitchP := t.params.Get("pitch", frames)
	toneP := t.params.Get("tone", frames)
	trigIn, accentIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		tune := clampf(sampleAt(tuneP, i, 150), 60, 400)
		decay := clampf(sampleAt(decayP, i, 0.3), 0.05, 1)
		pitchDepth := clampf(sampleAt(pitchP, i, 0.5), 0, 1)
		tone := clampf(sampleAt(toneP, i, 0.4), 0, 1)

		trig := inputAt(trigIn, i)
		accent := clampf(sampleAt(accentIn, i, 0.5), 0, 1)

		if trig > 0.5 && t.lastTrig <= 0.5 {
			t.pitchEnv, t.ampEnv = 1, 1
			t.phase = 0
			t.latchedAccent = accent
		}
		t.lastTrig = trig

		pitchDecayRate := Sample(0.0008)
		t.pitchEnv *= 1 - pitchDecayRate*Sample(t.sampleRate/48000)

		freq := tune * (1 + t.pitchEnv*pitchDepth*3)
		dt := freq / Sample(t.sampleRate)
		t.phase += dt
		if t.phase >= 1 {
			t.phase -= 1
		}

		sine := Sample(math.Sin(float64(t.phase) * 2 * math.Pi))
		triangle := triangleLinear(t.phase)
		osc := sine*(1-tone*0.6) + triangle*tone*0.6

		ampDecayRate := 1 / (decay * Sample(t.sampleRate))
		t.ampEnv = clampf(t.ampEnv-ampDecayRate*Sample(math.Sqrt(float64(t.ampEnv))), 0, 1)

		sample := osc * t.ampEnv * 0.9
		sample *= 0.7 + t.latchedAccent*0.5
		sample = Sample(math.Tanh(float64(sample * 1.1)))

		out[i] = clampf(sample, -1, 1)
	}
}
