package fluxgraph

import "math"

func init() {
	registerModule("Clap808", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newClap808(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// clap808 layers four fast, individually-decaying noise bursts (spread
// controls their spacing) over a longer reverb-like tail, for the more
// electronic/synthetic 808 handclap (spec.md §4.7 808 clap).
type clap808 struct {
	params        *ParamSet
	sampleRate    float64
	noiseState    uint32
	ampEnv        Sample
	burstEnv      [4]Sample
	burstIndex    int
	burstTimer    Sample
	bpState       [2]Sample
	lastTrig      Sample
	latchedAccent Sample
}

func newClap808(ctx ProcessContext) *clap808 {
	return &clap808{
		params:        NewParamSet(map[string]Sample{"tone": 0.5, "decay": 0.3, "spread": 0.5}),
		sampleRate:    ctx.sampleRateOrDefault(),
		noiseState:    0x12345678,
		burstIndex:    4,
		latchedAccent: 0.5,
	}
}

func (c *clap808) Reset(sampleRate float64) {
	c.sampleRate = sampleRate
	c.ampEnv = 0
	c.burstEnv = [4]Sample{}
	c.burstIndex = 4
	c.burstTimer = 0
	c.bpState = [2]Sample{}
	c.lastTrig = 0
}

func (c *clap808) Params() *ParamSet { return c.params }

func (c *clap808) whiteNoise() Sample {
	c.noiseState ^= c.noiseState << 13
	c.noiseState ^= c.noiseState >> 17
	c.noiseState ^= c.noiseState << 5
	return Sample(c.noiseState)/Sample(^uint32(0))*2 - 1
}

func (c *clap808) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	toneP := c.params.Get("tone", frames)
	decayP := c.params.Get("decay", frames)
	spreadP := c.params.Get("spread", frames)
	trigIn, accentIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		tone := clampf(sampleAt(toneP, i, 0.5), 0, 1)
		decay := clampf(sampleAt(decayP, i, 0.3), 0.1, 0.8)
		spread := clampf(sampleAt(spreadP, i, 0.5), 0, 1)

		trig := inputAt(trigIn, i)
		accent := clampf(sampleAt(accentIn, i, 0.5), 0, 1)

		if trig > 0.5 && c.lastTrig <= 0.5 {
			c.ampEnv = 1
			c.burstIndex = 0
			c.burstTimer = 0
			c.burstEnv = [4]Sample{1, 0, 0, 0}
			c.latchedAccent = accent
		}
		c.lastTrig = trig

		burstInterval := (0.01 + spread*0.02) * Sample(c.sampleRate)

		if c.burstIndex < 4 {
			c.burstTimer++
			if c.burstTimer >= burstInterval && c.burstIndex < 3 {
				c.burstIndex++
				c.burstEnv[c.burstIndex] = 0.8 - Sample(c.burstIndex)*0.15
				c.burstTimer = 0
			}
		}

		noise := c.whiteNoise()

		bpFreq := 1000 + tone*1500
		f := Sample(math.Tan(math.Pi * float64(bpFreq) / c.sampleRate))
		q := 1.5 + tone
		k := 1 / q

		c.bpState[0] += f * (noise - c.bpState[0] - c.bpState[1]*k)
		c.bpState[1] += f * c.bpState[0]
		filtered := c.bpState[0]

		var burstSum Sample
		for j := range c.burstEnv {
			if c.burstEnv[j] > 0 {
				burstSum += c.burstEnv[j]
				c.burstEnv[j] = clampf(c.burstEnv[j]-Sample(0.002)*Sample(c.sampleRate/48000), 0, 1)
			}
		}

		decayRate := 1 / (decay * Sample(c.sampleRate))
		c.ampEnv = clampf(c.ampEnv-decayRate, 0, 1)

		burstSignal := filtered * burstSum * 0.5
		tailSignal := filtered * c.ampEnv * 0.3
		sample := burstSignal + tailSignal
		sample *= 0.7 + c.latchedAccent*0.5

		out[i] = clampf(sample, -1, 1)
	}
}
