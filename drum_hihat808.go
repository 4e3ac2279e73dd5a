package fluxgraph

import "math"

func init() {
	registerModule("HiHat808", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newHiHat808(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

var hihat808Ratios = [6]Sample{1.0, 1.3420, 1.5618, 1.9283, 2.5014, 2.6680}

const hihat808BaseFreq = 400

// hihat808 is thinner and brighter than the 909 hat: the same 6-oscillator
// metallic core, but high-passed before a bandpass resonance stage, with a
// snap parameter that reshapes the envelope's decay curve (spec.md §4.7
// 808 hi-hat).
type hihat808 struct {
	params        *ParamSet
	sampleRate    float64
	phases        [6]Sample
	hpState       Sample
	bpState       [2]Sample
	ampEnv        Sample
	lastTrig      Sample
	latchedAccent Sample
}

func newHiHat808(ctx ProcessContext) *hihat808 {
	return &hihat808{
		params:        NewParamSet(map[string]Sample{"tune": 1, "decay": 0.15, "tone": 0.6, "snap": 0.5}),
		sampleRate:    ctx.sampleRateOrDefault(),
		latchedAccent: 0.5,
	}
}

func (h *hihat808) Reset(sampleRate float64) {
	h.sampleRate = sampleRate
	h.phases = [6]Sample{}
	h.hpState = 0
	h.bpState = [2]Sample{}
	h.ampEnv = 0
	h.lastTrig = 0
}

func (h *hihat808) Params() *ParamSet { return h.params }

func (h *hihat808) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	tuneP := h.params.Get("tune", frames)
	decayP := h.params.Get("decay", frames)
	toneP := h.params.Get("tone", frames)
	snapP := h.params.Get("snap", frames)
	trigIn, accentIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		tune := clampf(sampleAt(tuneP, i, 1), 0.5, 2)
		decay := clampf(sampleAt(decayP, i, 0.15), 0.02, 2)
		tone := clampf(sampleAt(toneP, i, 0.6), 0, 1)
		snap := clampf(sampleAt(snapP, i, 0.5), 0, 1)

		trig := inputAt(trigIn, i)
		accent := clampf(sampleAt(accentIn, i, 0.5), 0, 1)

		if trig > 0.5 && h.lastTrig <= 0.5 {
			h.ampEnv = 1
			h.latchedAccent = accent
		}
		h.lastTrig = trig

		baseFreq := hihat808BaseFreq * tune
		var metallic Sample
		for j := 0; j < 6; j++ {
			freq := baseFreq * hihat808Ratios[j]
			dt := freq / Sample(h.sampleRate)
			h.phases[j] += dt
			if h.phases[j] >= 1 {
				h.phases[j] -= 1
			}
			duty := Sample(0.5) + Sample(j)*0.02
			square := Sample(-1)
			if h.phases[j] < duty {
				square = 1
			}
			metallic += square
		}
		metallic /= 6

		hpCutoff := 5000 + tone*5000
		hpCoeff := 1 - Sample(math.Min(math.Pi*float64(hpCutoff)/h.sampleRate, 0.99))
		h.hpState = hpCoeff * (h.hpState + metallic)
		hpSignal := metallic - h.hpState

		bpCutoff := 8000 + tone*6000
		f := Sample(math.Tan(math.Pi * float64(bpCutoff) / h.sampleRate))
		q := 0.7 + tone
		k := 1 / q

		h.bpState[0] += f * (hpSignal - h.bpState[0] - h.bpState[1]*k)
		h.bpState[1] += f * h.bpState[0]
		bandpass := h.bpState[0]

		filtered := hpSignal*0.4 + bandpass*0.6

		envShape := 1 + snap*2
		ampDecayRate := 1 / (decay * Sample(h.sampleRate))
		base := math.Pow(float64(h.ampEnv), 1/float64(envShape)) - float64(ampDecayRate)
		if base < 0 {
			base = 0
		}
		h.ampEnv = Sample(math.Pow(base, float64(envShape)))

		sample := filtered * h.ampEnv * 0.7
		sample *= 0.7 + h.latchedAccent*0.4

		out[i] = clampf(sample, -1, 1)
	}
}
