package fluxgraph

import "math"

func init() {
	registerModule("Kick808", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newKick808(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// kick808 is the deep sub-bass 808 kick: a slower pitch sweep than the 909,
// a sine/triangle blend, a short click transient, and a one-pole lowpass
// smoothing the tone before a gentle saturation stage (spec.md §4.7 808
// kick).
type kick808 struct {
	params        *ParamSet
	sampleRate    float64
	phase         Sample
	pitchEnv      Sample
	ampEnv        Sample
	clickEnv      Sample
	lastTrig      Sample
	latchedAccent Sample
	lpState       Sample
}

func newKick808(ctx ProcessContext) *kick808 {
	return &kick808{
		params:        NewParamSet(map[string]Sample{"tune": 45, "decay": 1.5, "tone": 0.3, "click": 0.2}),
		sampleRate:    ctx.sampleRateOrDefault(),
		latchedAccent: 0.5,
	}
}

func (k *kick808) Reset(sampleRate float64) {
	k.sampleRate = sampleRate
	k.phase, k.pitchEnv, k.ampEnv, k.clickEnv, k.lpState = 0, 0, 0, 0, 0
	k.lastTrig = 0
}

func (k *kick808) Params() *ParamSet { return k.params }

func (k *kick808) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	tuneP := k.params.Get("tune", frames)
	decayP := k.params.Get("decay", frames)
	toneP := k.params.Get("tone", frames)
	clickP := k.params.Get("click", frames)
	trigIn, accentIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		tune := clampf(sampleAt(tuneP, i, 45), 30, 80)
		decay := clampf(sampleAt(decayP, i, 1.5), 0.1, 4)
		tone := clampf(sampleAt(toneP, i, 0.3), 0, 1)
		click := clampf(sampleAt(clickP, i, 0.2), 0, 1)

		trig := inputAt(trigIn, i)
		accent := clampf(sampleAt(accentIn, i, 0.5), 0, 1)

		if trig > 0.5 && k.lastTrig <= 0.5 {
			k.pitchEnv, k.ampEnv, k.clickEnv = 1, 1, 1
			k.phase = 0
			k.latchedAccent = accent
		}
		k.lastTrig = trig

		pitchDecayRate := Sample(0.00015)
		k.pitchEnv *= 1 - pitchDecayRate*Sample(k.sampleRate/48000)

		freq := tune * (1 + k.pitchEnv*5)
		dt := freq / Sample(k.sampleRate)
		k.phase += dt
		if k.phase >= 1 {
			k.phase -= 1
		}

		sine := Sample(math.Sin(float64(k.phase) * 2 * math.Pi))
		triangle := triangleLinear(k.phase)
		osc := sine*(1-tone*0.5) + triangle*tone*0.5

		clickDecay := 1 - Sample(0.005)*Sample(k.sampleRate/48000)
		k.clickEnv *= clickDecay
		clickSignal := k.clickEnv * click * 0.4

		ampDecayRate := 1 / (decay * Sample(k.sampleRate))
		k.ampEnv = clampf(k.ampEnv-ampDecayRate*Sample(math.Sqrt(float64(k.ampEnv))), 0, 1)

		sample := (osc + clickSignal) * k.ampEnv

		lpCoeff := 0.1 + tone*0.4
		k.lpState += lpCoeff * (sample - k.lpState)
		sample = k.lpState*(1-tone*0.3) + sample*tone*0.3

		sample *= 0.8 + k.latchedAccent*0.5

		sample = Sample(math.Tanh(float64(sample*1.2))) * 0.9

		out[i] = clampf(sample, -1, 1)
	}
}

// triangleLinear matches the 808 drums' piecewise two-segment triangle
// shape: rising from -1 to 1 over the first half-cycle, falling back over
// the second.
func triangleLinear(phase Sample) Sample {
	if phase < 0.5 {
		return 4*phase - 1
	}
	return 3 - 4*phase
}
