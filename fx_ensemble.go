package fluxgraph

import "math"

func init() {
	registerModule("Ensemble", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newEnsembleFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 2}},
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

const ensembleMaxDelayMs = 60

var ensembleRateMults = [3]Sample{0.85, 1.0, 1.2}

// ensembleFx is a tri-chorus: one delay line per channel read at three
// taps, each modulated by its own LFO rate and summed, for a thick string-section
// spread rather than a single chorus voice (spec.md §4.8 Ensemble).
type ensembleFx struct {
	params     *ParamSet
	sampleRate float64
	phases     [3]Sample
	bufferL, bufferR []Sample
	writeIndex int
}

func newEnsembleFx(ctx ProcessContext) *ensembleFx {
	e := &ensembleFx{
		params: NewParamSet(map[string]Sample{
			"rate": 0.25, "depth_ms": 12, "delay_ms": 12, "mix": 0.6, "spread": 0.7,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
	e.allocate()
	return e
}

func (e *ensembleFx) allocate() {
	size := int(math.Ceil(ensembleMaxDelayMs/1000*e.sampleRate)) + 2
	if len(e.bufferL) != size {
		e.bufferL = make([]Sample, size)
		e.bufferR = make([]Sample, size)
		e.writeIndex = 0
		e.phases = [3]Sample{0, 2 * math.Pi / 3, 2 * 2 * math.Pi / 3}
	}
}

func (e *ensembleFx) Reset(sampleRate float64) {
	e.sampleRate = sampleRate
	e.allocate()
}

func (e *ensembleFx) Params() *ParamSet { return e.params }

func (e *ensembleFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	rateP := e.params.Get("rate", frames)
	depthP := e.params.Get("depth_ms", frames)
	delayP := e.params.Get("delay_ms", frames)
	mixP := e.params.Get("mix", frames)
	spreadP := e.params.Get("spread", frames)
	inL, inR := ins[0].Chan(0), ins[0].Chan(1)
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)

	bufferSize := len(e.bufferL)
	tau := Sample(2 * math.Pi)
	maxDelay := Sample(bufferSize) - 2
	if maxDelay < 1 {
		maxDelay = 1
	}

	for i := 0; i < frames; i++ {
		rate := clampf(sampleAt(rateP, i, 0.25), 0.01, 5)
		depthMs := clampf(sampleAt(depthP, i, 12), 0, 25)
		delayMs := clampf(sampleAt(delayP, i, 12), 1, 30)
		mix := clampf(sampleAt(mixP, i, 0.6), 0, 1)
		spread := clampf(sampleAt(spreadP, i, 0.7), 0, 1)
		spreadOffset := spread * tau * 0.25

		sampleL := inputAt(inL, i)
		sampleR := sampleL
		if len(inR) > 0 {
			sampleR = inputAt(inR, i)
		}

		var delaysL, delaysR [3]Sample
		for idx := range e.phases {
			phase := e.phases[idx]
			lfoL := Sample(math.Sin(float64(phase)))
			lfoR := Sample(math.Sin(float64(phase + spreadOffset)))
			delaysL[idx] = clampf((delayMs+depthMs*lfoL)*Sample(e.sampleRate)/1000, 1, maxDelay)
			delaysR[idx] = clampf((delayMs+depthMs*lfoR)*Sample(e.sampleRate)/1000, 1, maxDelay)
			phase += tau * rate * ensembleRateMults[idx] / Sample(e.sampleRate)
			if phase >= tau {
				phase -= tau
			}
			e.phases[idx] = phase
		}

		var sumL, sumR Sample
		for idx := 0; idx < 3; idx++ {
			sumL += readDelayLine(e.bufferL, e.writeIndex, delaysL[idx])
			sumR += readDelayLine(e.bufferR, e.writeIndex, delaysR[idx])
		}
		wetL := sumL / 3
		wetR := sumR / 3
		dry := 1 - mix
		outL[i] = sampleL*dry + wetL*mix
		outR[i] = sampleR*dry + wetR*mix

		e.bufferL[e.writeIndex] = sampleL
		e.bufferR[e.writeIndex] = sampleR
		e.writeIndex = (e.writeIndex + 1) % bufferSize
	}
}
