package fluxgraph

import "math"

func init() {
	registerModule("HiHat909", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newHiHat909(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

var hihat909Ratios = [6]Sample{1.0, 1.4471, 1.6170, 1.9265, 2.5028, 2.6637}

const hihat909BaseFreq = 320

// hihat909 sums 6 square-wave oscillators at inharmonic ratios through a
// resonant bandpass to approximate the 909's metallic cymbal character,
// with separate short (closed) and long (open) decay times (spec.md §4.7
// 909 hi-hat).
type hihat909 struct {
	params       *ParamSet
	sampleRate   float64
	phases       [6]Sample
	filterState  [2]Sample
	ampEnv       Sample
	lastTrig     Sample
	isOpen       bool
	latchedAccent Sample
}

func newHiHat909(ctx ProcessContext) *hihat909 {
	return &hihat909{
		params:        NewParamSet(map[string]Sample{"tune": 1, "decay": 0.1, "tone": 0.5, "open": 0}),
		sampleRate:    ctx.sampleRateOrDefault(),
		latchedAccent: 0.5,
	}
}

func (h *hihat909) Reset(sampleRate float64) {
	h.sampleRate = sampleRate
	h.phases = [6]Sample{}
	h.filterState = [2]Sample{}
	h.ampEnv = 0
	h.lastTrig = 0
}

func (h *hihat909) Params() *ParamSet { return h.params }

func (h *hihat909) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	tuneP := h.params.Get("tune", frames)
	decayP := h.params.Get("decay", frames)
	toneP := h.params.Get("tone", frames)
	openP := h.params.Get("open", frames)
	trigIn, accentIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		tune := clampf(sampleAt(tuneP, i, 1), 0.5, 2)
		decay := clampf(sampleAt(decayP, i, 0.1), 0.02, 1.5)
		tone := clampf(sampleAt(toneP, i, 0.5), 0, 1)
		open := sampleAt(openP, i, 0)

		trig := inputAt(trigIn, i)
		accent := clampf(sampleAt(accentIn, i, 0.5), 0, 1)

		if trig > 0.5 && h.lastTrig <= 0.5 {
			h.ampEnv = 1
			h.isOpen = open > 0.5
			h.latchedAccent = accent
		}
		h.lastTrig = trig

		baseFreq := hihat909BaseFreq * tune
		var metallic Sample
		for j := 0; j < 6; j++ {
			freq := baseFreq * hihat909Ratios[j]
			dt := freq / Sample(h.sampleRate)
			h.phases[j] += dt
			if h.phases[j] >= 1 {
				h.phases[j] -= 1
			}
			square := Sample(-1)
			if h.phases[j] < 0.5 {
				square = 1
			}
			metallic += square
		}
		metallic /= 6

		cutoff := 4000 + tone*8000
		f := Sample(math.Tan(math.Pi * float64(cutoff) / h.sampleRate))
		q := 0.5 + tone*1.5
		k := 1 / q
		norm := 1 / (1 + k*f + f*f)

		h.filterState[0] += f * (metallic - h.filterState[0] - h.filterState[1]*k)
		h.filterState[1] += f * h.filterState[0]
		bandpass := h.filterState[0] * f * norm * 2

		actualDecay := decay * 0.15
		if h.isOpen {
			actualDecay = decay
		}
		ampDecayRate := 1 / (actualDecay * Sample(h.sampleRate))
		h.ampEnv = clampf(h.ampEnv-ampDecayRate, 0, 1)

		sample := bandpass * h.ampEnv * 0.8
		sample *= 0.7 + h.latchedAccent*0.4

		out[i] = clampf(sample, -1, 1)
	}
}
