package fluxgraph

import "math"

func init() {
	registerModule("Chorus", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newChorusFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 2}},
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

const chorusMaxDelayMs = 40

// chorusFx runs an LFO-modulated delay per channel with a phase offset
// between L and R for stereo spread, feeding back into the delay line
// before the dry/wet mix (spec.md §4.8 Chorus).
type chorusFx struct {
	params     *ParamSet
	sampleRate float64
	bufL, bufR []Sample
	writeIndex int
	lfoPhase   Sample
}

func newChorusFx(ctx ProcessContext) *chorusFx {
	c := &chorusFx{
		params: NewParamSet(map[string]Sample{
			"rate": 0.5, "depth": 0.5, "feedback": 0.2, "spread": 0.7, "mix": 0.5,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
	c.allocate()
	return c
}

func (c *chorusFx) allocate() {
	size := int(math.Ceil(chorusMaxDelayMs/1000*c.sampleRate)) + 2
	if len(c.bufL) != size {
		c.bufL = make([]Sample, size)
		c.bufR = make([]Sample, size)
		c.writeIndex = 0
	}
}

func (c *chorusFx) Reset(sampleRate float64) {
	c.sampleRate = sampleRate
	c.allocate()
	c.lfoPhase = 0
}

func (c *chorusFx) Params() *ParamSet { return c.params }

func (c *chorusFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	rateP := c.params.Get("rate", frames)
	depthP := c.params.Get("depth", frames)
	fbP := c.params.Get("feedback", frames)
	spreadP := c.params.Get("spread", frames)
	mixP := c.params.Get("mix", frames)
	inL, inR := ins[0].Chan(0), ins[0].Chan(1)
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)

	bufferSize := len(c.bufL)
	centerMs := Sample(12)
	maxDelay := Sample(bufferSize) - 2

	for i := 0; i < frames; i++ {
		rate := clampf(sampleAt(rateP, i, 0.5), 0.01, 10)
		depth := clampf(sampleAt(depthP, i, 0.5), 0, 1)
		feedback := clampf(sampleAt(fbP, i, 0.2), 0, 0.9)
		spread := clampf(sampleAt(spreadP, i, 0.7), 0, 1)
		mix := clampf(sampleAt(mixP, i, 0.5), 0, 1)

		sampleL := inL[i]
		sampleR := sampleL
		if len(inR) > 0 {
			sampleR = inR[i]
		}

		phaseOffset := spread * Sample(math.Pi) * 0.9
		lfoL := Sample(math.Sin(float64(c.lfoPhase) * 2 * math.Pi))
		lfoR := Sample(math.Sin(float64(c.lfoPhase)*2*math.Pi + float64(phaseOffset)))

		depthMs := depth * 8
		delayMsL := clampf(centerMs+lfoL*depthMs, 1, maxDelay*1000/Sample(c.sampleRate))
		delayMsR := clampf(centerMs+lfoR*depthMs, 1, maxDelay*1000/Sample(c.sampleRate))

		delaySamplesL := delayMsL * Sample(c.sampleRate) / 1000
		delaySamplesR := delayMsR * Sample(c.sampleRate) / 1000

		delayedL := readDelayLine(c.bufL, c.writeIndex, delaySamplesL)
		delayedR := readDelayLine(c.bufR, c.writeIndex, delaySamplesR)

		c.bufL[c.writeIndex] = sampleL + delayedL*feedback
		c.bufR[c.writeIndex] = sampleR + delayedR*feedback

		dry := 1 - mix
		outL[i] = sampleL*dry + delayedL*mix
		outR[i] = sampleR*dry + delayedR*mix

		c.writeIndex = (c.writeIndex + 1) % bufferSize

		c.lfoPhase += rate / Sample(c.sampleRate)
		if c.lfoPhase >= 1 {
			c.lfoPhase -= 1
		}
	}
}
