package fluxgraph

import "math"

func init() {
	registerModule("Reverb", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newReverbFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 2}},
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

// combFilter is a Freeverb-style lowpass-damped comb: feedback runs
// through a one-pole lowpass so high frequencies decay faster than
// lows (spec.md §4.8 Reverb).
type combFilter struct {
	buffer       []Sample
	index        int
	filterStore  Sample
	feedback     Sample
	damp1, damp2 Sample
}

func newCombFilter(size int) *combFilter {
	return &combFilter{buffer: make([]Sample, size), feedback: 0.5, damp1: 0.2, damp2: 0.8}
}

func (c *combFilter) setFeedback(v Sample) { c.feedback = v }

func (c *combFilter) setDamp(v Sample) {
	c.damp1 = clampf(v, 0, 0.99)
	c.damp2 = 1 - c.damp1
}

func (c *combFilter) process(input Sample) Sample {
	output := c.buffer[c.index]
	c.filterStore = output*c.damp2 + c.filterStore*c.damp1
	c.buffer[c.index] = input + c.filterStore*c.feedback
	c.index = (c.index + 1) % len(c.buffer)
	return output
}

// allpassFilter diffuses the comb output into a dense, smooth tail.
type allpassFilter struct {
	buffer   []Sample
	index    int
	feedback Sample
}

func newAllpassFilter(size int, feedback Sample) *allpassFilter {
	return &allpassFilter{buffer: make([]Sample, size), feedback: feedback}
}

func (a *allpassFilter) process(input Sample) Sample {
	bufferOut := a.buffer[a.index]
	output := -input + bufferOut
	a.buffer[a.index] = input + bufferOut*a.feedback
	a.index = (a.index + 1) % len(a.buffer)
	return output
}

var (
	reverbCombTuning    = [4]int{1116, 1188, 1277, 1356}
	reverbAllpassTuning = [2]int{556, 441}
)

const reverbStereoSpread = 23

type reverbFx struct {
	params                 *ParamSet
	sampleRate             float64
	combsL, combsR         [4]*combFilter
	allpassL, allpassR     [2]*allpassFilter
	preBufferL, preBufferR []Sample
	preWriteIndex          int
}

func newReverbFx(ctx ProcessContext) *reverbFx {
	r := &reverbFx{
		params: NewParamSet(map[string]Sample{
			"time": 0.62, "damp": 0.4, "pre_delay": 0, "mix": 0.25,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
	r.allocate()
	return r
}

func (r *reverbFx) allocate() {
	scale := r.sampleRate / 44100
	for j, length := range reverbCombTuning {
		r.combsL[j] = newCombFilter(maxInt(1, int(math.Round(float64(length)*scale))))
		r.combsR[j] = newCombFilter(maxInt(1, int(math.Round(float64(length+reverbStereoSpread)*scale))))
	}
	for j, length := range reverbAllpassTuning {
		r.allpassL[j] = newAllpassFilter(maxInt(1, int(math.Round(float64(length)*scale))), 0.5)
		r.allpassR[j] = newAllpassFilter(maxInt(1, int(math.Round(float64(length+reverbStereoSpread)*scale))), 0.5)
	}
	maxPreDelayMs := 120.0
	preSamples := int(math.Ceil(maxPreDelayMs/1000*r.sampleRate)) + 2
	r.preBufferL = make([]Sample, preSamples)
	r.preBufferR = make([]Sample, preSamples)
	r.preWriteIndex = 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (r *reverbFx) Reset(sampleRate float64) {
	r.sampleRate = sampleRate
	r.allocate()
}

func (r *reverbFx) Params() *ParamSet { return r.params }

func (r *reverbFx) readPreDelay(buffer []Sample, delaySamples Sample) Sample {
	return readDelayLine(buffer, r.preWriteIndex, delaySamples)
}

func (r *reverbFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	timeP := r.params.Get("time", frames)
	dampP := r.params.Get("damp", frames)
	preDelayP := r.params.Get("pre_delay", frames)
	mixP := r.params.Get("mix", frames)
	inL, inR := ins[0].Chan(0), ins[0].Chan(1)
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)

	time := clampf(sampleAt(timeP, 0, 0.62), 0.1, 0.98)
	damp := clampf(sampleAt(dampP, 0, 0.4), 0, 1)
	roomSize := clampf(0.2+time*0.78, 0.2, 0.98)
	dampValue := 0.05 + damp*0.9

	for _, c := range r.combsL {
		c.setFeedback(roomSize)
		c.setDamp(dampValue)
	}
	for _, c := range r.combsR {
		c.setFeedback(roomSize)
		c.setDamp(dampValue)
	}

	preBufferSize := len(r.preBufferL)
	maxPreDelay := Sample(preBufferSize - 2)

	for i := 0; i < frames; i++ {
		mix := clampf(sampleAt(mixP, i, 0.25), 0, 1)
		preDelayMs := sampleAt(preDelayP, i, 0)
		preDelaySamples := clampf(preDelayMs*Sample(r.sampleRate)/1000, 0, maxPreDelay)

		sampleL := inputAt(inL, i)
		sampleR := sampleL
		if len(inR) > 0 {
			sampleR = inputAt(inR, i)
		}

		preL := r.readPreDelay(r.preBufferL, preDelaySamples)
		preR := r.readPreDelay(r.preBufferR, preDelaySamples)

		r.preBufferL[r.preWriteIndex] = sampleL
		r.preBufferR[r.preWriteIndex] = sampleR
		r.preWriteIndex = (r.preWriteIndex + 1) % preBufferSize

		inputGain := Sample(0.35)
		reverbInL := preL * inputGain
		reverbInR := preR * inputGain

		var wetL, wetR Sample
		for _, c := range r.combsL {
			wetL += c.process(reverbInL)
		}
		for _, c := range r.combsR {
			wetR += c.process(reverbInR)
		}
		for _, a := range r.allpassL {
			wetL = a.process(wetL)
		}
		for _, a := range r.allpassR {
			wetR = a.process(wetR)
		}

		wetScale := Sample(0.3)
		wetL *= wetScale
		wetR *= wetScale

		dry := 1 - mix
		outL[i] = sampleL*dry + wetL*mix
		outR[i] = sampleR*dry + wetR*mix
	}
}
