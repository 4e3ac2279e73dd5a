package fluxgraph

import "math"

func init() {
	registerModule("Choir", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newChoirFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 2}},
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

// formantFilter is a trapezoidal-integrated state-variable bandpass,
// used three at a time to sculpt a vowel's formants out of raw input
// (spec.md §4.8 Choir).
type formantFilter struct {
	ic1, ic2 Sample
}

func (f *formantFilter) process(input, cutoff, q Sample, sampleRate float64) Sample {
	cutoff = clampf(cutoff, 20, Sample(sampleRate)*0.45)
	if q < 0.1 {
		q = 0.1
	}
	g := Sample(math.Tan(math.Pi * float64(cutoff) / sampleRate))
	k := 1 / q
	a1 := 1 / (1 + g*(g+k))
	a2 := g * a1
	a3 := g * a2
	v3 := input - f.ic2
	v1 := a1*f.ic1 + a2*v3
	v2 := f.ic2 + a2*f.ic1 + a3*v3
	f.ic1 = 2*v1 - f.ic1
	f.ic2 = 2*v2 - f.ic2
	return v1
}

var (
	choirVowels = [5][3]Sample{
		{800, 1150, 2900},
		{400, 1700, 2600},
		{350, 1700, 2700},
		{450, 800, 2830},
		{325, 700, 2530},
	}
	choirQValues = [3]Sample{5, 4.5, 4}
	choirWeights = [3]Sample{0.55, 0.45, 0.35}
)

type choirFx struct {
	params             *ParamSet
	sampleRate         float64
	phase              Sample
	filtersL, filtersR [3]formantFilter
}

func newChoirFx(ctx ProcessContext) *choirFx {
	return &choirFx{
		params: NewParamSet(map[string]Sample{
			"vowel": 0, "rate": 0.25, "depth": 0.35, "mix": 0.5,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
}

func (c *choirFx) Reset(sampleRate float64) {
	c.sampleRate = sampleRate
	c.phase = 0
	c.filtersL, c.filtersR = [3]formantFilter{}, [3]formantFilter{}
}

func (c *choirFx) Params() *ParamSet { return c.params }

func (c *choirFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	vowelP := c.params.Get("vowel", frames)
	rateP := c.params.Get("rate", frames)
	depthP := c.params.Get("depth", frames)
	mixP := c.params.Get("mix", frames)
	inL, inR := ins[0].Chan(0), ins[0].Chan(1)
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)

	tau := Sample(2 * math.Pi)

	for i := 0; i < frames; i++ {
		vowel := int(clampf(Sample(math.Round(float64(sampleAt(vowelP, i, 0)))), 0, 4))
		rate := clampf(sampleAt(rateP, i, 0.25), 0.05, 2)
		depth := clampf(sampleAt(depthP, i, 0.35), 0, 1)
		mix := clampf(sampleAt(mixP, i, 0.5), 0, 1)

		sampleL := inputAt(inL, i)
		sampleR := sampleL
		if len(inR) > 0 {
			sampleR = inputAt(inR, i)
		}

		lfoL := Sample(math.Sin(float64(c.phase)))
		lfoR := Sample(math.Sin(float64(c.phase) + 0.7))
		modL := 1 + depth*0.04*lfoL
		modR := 1 + depth*0.04*lfoR

		var wetL, wetR Sample
		for band := 0; band < 3; band++ {
			freq := choirVowels[vowel][band]
			wetL += c.filtersL[band].process(sampleL, freq*modL, choirQValues[band], c.sampleRate) * choirWeights[band]
			wetR += c.filtersR[band].process(sampleR, freq*modR, choirQValues[band], c.sampleRate) * choirWeights[band]
		}

		dry := 1 - mix
		outL[i] = sampleL*dry + wetL*mix
		outR[i] = sampleR*dry + wetR*mix

		c.phase += tau * rate / Sample(c.sampleRate)
		if c.phase >= tau {
			c.phase -= tau
		}
	}
}
