package fluxgraph

import "math"

func init() {
	registerModule("Kick909", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newKick909(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}}, // trigger, accent
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// kick909 is a TR-909-style bass drum: a pitch-enveloped sine "thump" plus a
// short noise click for punch, with the accent CV latched at the trigger
// instant so mid-hit CV changes never glitch the sound (spec.md §4.7 909
// kick).
type kick909 struct {
	params     *ParamSet
	sampleRate float64

	phase, pitchEnv, ampEnv, clickEnv Sample
	lastTrig                          Sample
	noiseState                        uint32
	latchedAccent                     Sample
}

func newKick909(ctx ProcessContext) *kick909 {
	return &kick909{
		params: NewParamSet(map[string]Sample{
			"tune": 55, "attack": 0.5, "decay": 0.5, "drive": 0,
		}),
		sampleRate:    ctx.sampleRateOrDefault(),
		noiseState:    0x12345678,
		latchedAccent: 0.5,
	}
}

func (k *kick909) Reset(sampleRate float64) {
	k.sampleRate = sampleRate
	k.phase, k.pitchEnv, k.ampEnv, k.clickEnv = 0, 0, 0, 0
	k.lastTrig = 0
}

func (k *kick909) Params() *ParamSet { return k.params }

func (k *kick909) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	tuneP := k.params.Get("tune", frames)
	attackP := k.params.Get("attack", frames)
	decayP := k.params.Get("decay", frames)
	driveP := k.params.Get("drive", frames)
	trigIn, accentIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		tune := clampf(sampleAt(tuneP, i, 55), 30, 120)
		attack := clampf(sampleAt(attackP, i, 0.5), 0, 1)
		decay := clampf(sampleAt(decayP, i, 0.5), 0.1, 2)
		drive := clampf(sampleAt(driveP, i, 0), 0, 1)

		trig := inputAt(trigIn, i)
		accent := clampf(sampleAt(accentIn, i, 0.5), 0, 1)

		if trig > 0.5 && k.lastTrig <= 0.5 {
			k.pitchEnv, k.ampEnv, k.clickEnv = 1, 1, 1
			k.phase = 0
			k.latchedAccent = accent
		}
		k.lastTrig = trig

		pitchDecayRate := Sample(0.0003)
		k.pitchEnv *= 1 - pitchDecayRate*Sample(k.sampleRate/48000)

		freq := tune * (1 + k.pitchEnv*8)
		dt := freq / Sample(k.sampleRate)
		k.phase += dt
		if k.phase >= 1 {
			k.phase -= 1
		}
		sine := Sample(math.Sin(float64(k.phase) * 2 * math.Pi))

		k.noiseState = k.noiseState*1664525 + 1013904223
		noise := Sample(k.noiseState)/Sample(^uint32(0))*2 - 1

		clickDecay := 1 - Sample(0.003)*Sample(k.sampleRate/48000)
		k.clickEnv *= clickDecay
		click := noise * k.clickEnv * attack * 0.8

		ampDecayRate := 1 / (decay * Sample(k.sampleRate))
		k.ampEnv = clampf(k.ampEnv-ampDecayRate, 0, 1)

		sample := (sine + click) * k.ampEnv
		sample *= 0.7 + k.latchedAccent*0.6

		if drive > 0 {
			gain := 1 + drive*4
			sample = Sample(math.Tanh(float64(sample * gain)))
		}

		out[i] = clampf(sample, -1, 1)
	}
}
