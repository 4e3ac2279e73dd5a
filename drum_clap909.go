package fluxgraph

import "math"

func init() {
	registerModule("Clap909", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newClap909(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// clap909 re-triggers a resonant bandpassed noise burst three times in
// quick succession before settling into a decay tail, producing the
// characteristic "clapping hands" smear (spec.md §4.7 909 clap).
type clap909 struct {
	params        *ParamSet
	sampleRate    float64
	noiseState    uint32
	filterState   [2]Sample
	ampEnv        Sample
	clapStage     int
	stageCounter  int
	lastTrig      Sample
	latchedAccent Sample
}

func newClap909(ctx ProcessContext) *clap909 {
	return &clap909{
		params:        NewParamSet(map[string]Sample{"tone": 0.5, "decay": 0.3}),
		sampleRate:    ctx.sampleRateOrDefault(),
		noiseState:    0xABCDEF01,
		clapStage:     3,
		latchedAccent: 0.5,
	}
}

func (c *clap909) Reset(sampleRate float64) {
	c.sampleRate = sampleRate
	c.filterState = [2]Sample{}
	c.ampEnv = 0
	c.clapStage = 3
	c.stageCounter = 0
	c.lastTrig = 0
}

func (c *clap909) Params() *ParamSet { return c.params }

func (c *clap909) whiteNoise() Sample {
	c.noiseState ^= c.noiseState << 13
	c.noiseState ^= c.noiseState >> 17
	c.noiseState ^= c.noiseState << 5
	return Sample(c.noiseState)/Sample(^uint32(0))*2 - 1
}

func (c *clap909) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	toneP := c.params.Get("tone", frames)
	decayP := c.params.Get("decay", frames)
	trigIn, accentIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	stageSamples := int(c.sampleRate * 0.012)

	for i := 0; i < frames; i++ {
		tone := clampf(sampleAt(toneP, i, 0.5), 0, 1)
		decay := clampf(sampleAt(decayP, i, 0.3), 0.1, 1)

		trig := inputAt(trigIn, i)
		accent := clampf(sampleAt(accentIn, i, 0.5), 0, 1)

		if trig > 0.5 && c.lastTrig <= 0.5 {
			c.clapStage = 0
			c.stageCounter = 0
			c.ampEnv = 1
			c.latchedAccent = accent
		}
		c.lastTrig = trig

		c.stageCounter++
		if c.clapStage < 3 && c.stageCounter >= stageSamples {
			c.clapStage++
			c.stageCounter = 0
			c.ampEnv = 0.8
		}

		noise := c.whiteNoise()

		cutoff := 1000 + tone*2000
		f := Sample(math.Tan(math.Pi * float64(cutoff) / c.sampleRate))
		q := 2 + tone*4
		k := 1 / q

		c.filterState[0] += f * (noise - c.filterState[0] - c.filterState[1]*k)
		c.filterState[1] += f * c.filterState[0]
		bandpass := c.filterState[0] * 3

		envDecay := Sample(0.002)
		if c.clapStage >= 3 {
			envDecay = 1 / (decay * Sample(c.sampleRate))
		}
		c.ampEnv = clampf(c.ampEnv-envDecay, 0, 1)

		sample := bandpass * c.ampEnv * 0.7
		sample *= 0.7 + c.latchedAccent*0.5

		out[i] = clampf(sample, -1, 1)
	}
}
