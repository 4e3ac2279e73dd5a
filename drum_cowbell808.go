package fluxgraph

import "math"

func init() {
	registerModule("Cowbell808", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newCowbell808(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

const (
	cowbell808Freq1 = 540
	cowbell808Freq2 = 800
)

// cowbell808 pairs two square waves at the classic 540/800Hz 808 cowbell
// ratio through a resonant bandpass with a very short, punchy decay
// (spec.md §4.7 808 cowbell).
type cowbell808 struct {
	params        *ParamSet
	sampleRate    float64
	phase1, phase2 Sample
	ampEnv        Sample
	bpState       [2]Sample
	lastTrig      Sample
	latchedAccent Sample
}

func newCowbell808(ctx ProcessContext) *cowbell808 {
	return &cowbell808{
		params:        NewParamSet(map[string]Sample{"tune": 1, "decay": 0.1, "tone": 0.6}),
		sampleRate:    ctx.sampleRateOrDefault(),
		latchedAccent: 0.5,
	}
}

func (c *cowbell808) Reset(sampleRate float64) {
	c.sampleRate = sampleRate
	c.phase1, c.phase2, c.ampEnv = 0, 0, 0
	c.bpState = [2]Sample{}
	c.lastTrig = 0
}

func (c *cowbell808) Params() *ParamSet { return c.params }

func (c *cowbell808) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	tuneP := c.params.Get("tune", frames)
	decayP := c.params.Get("decay", frames)
	toneP := c.params.Get("tone", frames)
	trigIn, accentIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		tune := clampf(sampleAt(tuneP, i, 1), 0.5, 2)
		decay := clampf(sampleAt(decayP, i, 0.1), 0.01, 0.5)
		tone := clampf(sampleAt(toneP, i, 0.6), 0, 1)

		trig := inputAt(trigIn, i)
		accent := clampf(sampleAt(accentIn, i, 0.5), 0, 1)

		if trig > 0.5 && c.lastTrig <= 0.5 {
			c.ampEnv = 1
			c.phase1, c.phase2 = 0, 0
			c.latchedAccent = accent
		}
		c.lastTrig = trig

		freq1 := Sample(cowbell808Freq1) * tune
		freq2 := Sample(cowbell808Freq2) * tune

		c.phase1 += freq1 / Sample(c.sampleRate)
		c.phase2 += freq2 / Sample(c.sampleRate)
		if c.phase1 >= 1 {
			c.phase1 -= 1
		}
		if c.phase2 >= 1 {
			c.phase2 -= 1
		}

		sq1 := Sample(-1)
		if c.phase1 < 0.5 {
			sq1 = 1
		}
		sq2 := Sample(-1)
		if c.phase2 < 0.5 {
			sq2 = 1
		}
		oscMix := (sq1 + sq2) * 0.5

		bpFreq := 800 + tone*400
		f := Sample(math.Tan(math.Pi * float64(bpFreq) / c.sampleRate))
		q := 2 + tone*3
		k := 1 / q

		c.bpState[0] += f * (oscMix - c.bpState[0] - c.bpState[1]*k)
		c.bpState[1] += f * c.bpState[0]
		filtered := c.bpState[0]

		decayRate := 1 / (decay * Sample(c.sampleRate))
		c.ampEnv = clampf(c.ampEnv-decayRate*2, 0, 1)

		sample := filtered * c.ampEnv * 0.8
		sample *= 0.7 + c.latchedAccent*0.5

		out[i] = clampf(sample, -1, 1)
	}
}
