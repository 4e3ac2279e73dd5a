package fluxgraph

import "math"

func init() {
	registerModule("Nes", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newNesOsc(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}}, // pitch CV
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// nesOsc emulates the NES 2A03 APU: two duty-selectable pulse channels'
// worth of waveform (selected per-instance by "mode"), a 4-bit stepped
// triangle, and an LFSR noise channel, finished with a 7-bit DAC
// quantizer for the lo-fi character (spec.md §2 NES oscillator).
type nesOsc struct {
	params      *ParamSet
	sampleRate  float64
	phase       Sample
	lfsr        uint16
	noiseTimer  Sample
}

func newNesOsc(ctx ProcessContext) *nesOsc {
	return &nesOsc{
		params: NewParamSet(map[string]Sample{
			"base_freq": 220,
			"fine":      0,
			"volume":    1,
			"mode":      0,
			"duty":      1,
			"noise_mode": 0,
			"bitcrush":  1,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
		lfsr:       1,
	}
}

func (n *nesOsc) Reset(sampleRate float64) {
	n.sampleRate = sampleRate
	n.phase = 0
	n.lfsr = 1
	n.noiseTimer = 0
}

func (n *nesOsc) Params() *ParamSet { return n.params }

func nesPulse(phase Sample, duty int) Sample {
	threshold := Sample(0.5)
	switch duty {
	case 0:
		threshold = 0.125
	case 1:
		threshold = 0.25
	case 2:
		threshold = 0.5
	case 3:
		threshold = 0.75
	}
	if phase < threshold {
		return 1
	}
	return -1
}

func nesTriangle(step int) Sample {
	level := step
	if step >= 16 {
		level = 31 - step
	}
	return Sample(level)/7.5 - 1
}

func nesNoiseStep(lfsr *uint16, loopMode bool) Sample {
	var feedback uint16
	if loopMode {
		feedback = (*lfsr & 1) ^ ((*lfsr >> 6) & 1)
	} else {
		feedback = (*lfsr & 1) ^ ((*lfsr >> 1) & 1)
	}
	*lfsr = (*lfsr >> 1) | (feedback << 14)
	if *lfsr&1 == 1 {
		return 1
	}
	return -1
}

func dac7Bit(sample, amount Sample) Sample {
	if amount <= 0 {
		return sample
	}
	t := 1 - amount
	levels := 64 + t*(128-64)
	quantized := Sample(math.Round(float64(sample*levels))) / levels
	return sample*(1-amount) + quantized*amount
}

func (n *nesOsc) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	baseP := n.params.Get("base_freq", frames)
	fineP := n.params.Get("fine", frames)
	volP := n.params.Get("volume", frames)
	modeP := n.params.Get("mode", frames)
	dutyP := n.params.Get("duty", frames)
	noiseModeP := n.params.Get("noise_mode", frames)
	crushP := n.params.Get("bitcrush", frames)
	pitch := ins[0].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		base := sampleAt(baseP, i, 220)
		fineCents := sampleAt(fineP, i, 0)
		pitchCV := inputAt(pitch, i)
		freq := base * Sample(math.Pow(2, float64(pitchCV+fineCents/1200)))
		freq = clampf(freq, 20, 20000)
		vol := clampf(sampleAt(volP, i, 1), 0, 1)
		mode := int(sampleAt(modeP, i, 0))
		duty := int(sampleAt(dutyP, i, 1))
		noiseLoop := sampleAt(noiseModeP, i, 0) >= 0.5
		crush := clampf(sampleAt(crushP, i, 1), 0, 1)

		var sample Sample
		switch mode {
		case 0, 1:
			n.phase += freq / Sample(n.sampleRate)
			if n.phase >= 1 {
				n.phase -= 1
			}
			sample = nesPulse(n.phase, duty)
		case 2:
			n.phase += freq / Sample(n.sampleRate)
			if n.phase >= 1 {
				n.phase -= 1
			}
			step := int(n.phase * 32)
			sample = nesTriangle(step)
		case 3:
			noiseFreq := freq * 8
			n.noiseTimer += noiseFreq / Sample(n.sampleRate)
			if n.noiseTimer >= 1 {
				n.noiseTimer -= 1
				nesNoiseStep(&n.lfsr, noiseLoop)
			}
			if n.lfsr&1 == 1 {
				sample = 1
			} else {
				sample = -1
			}
		}
		out[i] = dac7Bit(sample*vol, crush)
	}
}
