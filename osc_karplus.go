package fluxgraph

import "math"

const karplusMaxDelay = 2048

func init() {
	registerModule("Karplus", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newKarplus() },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}}, // pitch, gate
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// karplus is the Karplus-Strong plucked-string synthesizer: a noise-filled
// delay line lowpass-filtered and comb-filtered at pluck, then fed back
// through a decaying lowpass loop (spec.md §4.5 Karplus-Strong).
type karplus struct {
	params     *ParamSet
	sampleRate float64

	delayLine  [karplusMaxDelay]Sample
	writePos   int
	lastOutput Sample
	prevGate   Sample
	rng        *lcg32
	active     bool
	fracDelay  Sample
}

func newKarplus() *karplus {
	return &karplus{
		params: NewParamSet(map[string]Sample{
			"frequency":  220,
			"damping":    0.3,
			"decay":      0.99,
			"brightness": 0.5,
			"pluck_pos":  0.3,
		}),
		rng: newLCG32(12345),
	}
}

func (k *karplus) Reset(sampleRate float64) {
	k.sampleRate = sampleRate
	k.delayLine = [karplusMaxDelay]Sample{}
	k.writePos = 0
	k.lastOutput = 0
	k.active = false
}

func (k *karplus) Params() *ParamSet { return k.params }

func (k *karplus) pluck(delaySamples int, brightness, pluckPos Sample) {
	var noiseBuf [karplusMaxDelay]Sample
	for i := 0; i < delaySamples; i++ {
		noiseBuf[i] = k.rng.next()
	}
	coeff := clampf(1-brightness, 0, 0.99)
	var prev Sample
	for i := 0; i < delaySamples; i++ {
		noiseBuf[i] = noiseBuf[i]*(1-coeff) + prev*coeff
		prev = noiseBuf[i]
	}
	pluckDelay := int(clampf(pluckPos, 0.1, 0.9) * Sample(delaySamples))
	if pluckDelay < 1 {
		pluckDelay = 1
	}
	for i := pluckDelay; i < delaySamples; i++ {
		noiseBuf[i] -= noiseBuf[i-pluckDelay] * 0.5
	}
	n := delaySamples
	if n > karplusMaxDelay {
		n = karplusMaxDelay
	}
	for i := 0; i < n; i++ {
		k.delayLine[i] = noiseBuf[i] * 0.8
	}
	k.writePos = delaySamples % karplusMaxDelay
	k.lastOutput = 0
	k.active = true
}

func (k *karplus) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	freqP := k.params.Get("frequency", frames)
	dampP := k.params.Get("damping", frames)
	decayP := k.params.Get("decay", frames)
	brightP := k.params.Get("brightness", frames)
	pluckPosP := k.params.Get("pluck_pos", frames)
	pitch, gateIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		freqParam := sampleAt(freqP, i, 220)
		damping := clampf(sampleAt(dampP, i, 0.3), 0, 1)
		decay := clampf(sampleAt(decayP, i, 0.99), 0.5, 0.9999)
		brightness := clampf(sampleAt(brightP, i, 0.5), 0, 1)
		pluckPos := clampf(sampleAt(pluckPosP, i, 0.3), 0.1, 0.9)

		pitchCV := inputAt(pitch, i)
		freq := freqParam * Sample(math.Pow(2, float64(pitchCV)/12))
		freqClamped := clampf(freq, 20, Sample(k.sampleRate)/2)

		delaySamplesF := Sample(k.sampleRate) / freqClamped
		delaySamples := int(delaySamplesF)
		if delaySamples > karplusMaxDelay-1 {
			delaySamples = karplusMaxDelay - 1
		}
		if delaySamples < 2 {
			delaySamples = 2
		}
		k.fracDelay = delaySamplesF - Sample(delaySamples)

		gate := inputAt(gateIn, i)
		if gate > 0.5 && k.prevGate <= 0.5 {
			k.pluck(delaySamples, brightness, pluckPos)
		}
		k.prevGate = gate

		var outSample Sample
		if k.active {
			readPos := (k.writePos + karplusMaxDelay - delaySamples) % karplusMaxDelay
			readPosNext := (readPos + 1) % karplusMaxDelay
			a, b := k.delayLine[readPos], k.delayLine[readPosNext]
			current := a + (b-a)*k.fracDelay

			filterCoeff := 0.5 + damping*0.4
			filtered := current*(1-filterCoeff) + k.lastOutput*filterCoeff
			feedback := filtered * decay

			k.delayLine[k.writePos] = feedback
			k.writePos = (k.writePos + 1) % karplusMaxDelay
			k.lastOutput = filtered

			if Sample(math.Abs(float64(filtered))) < 1e-4 {
				k.active = false
			}
			outSample = filtered
		}
		out[i] = outSample
	}
}
