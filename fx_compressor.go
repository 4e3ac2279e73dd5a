package fluxgraph

import "math"

func init() {
	registerModule("Compressor", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newCompressorFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 2}},
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

func dbToLinear(db Sample) Sample {
	return Sample(math.Pow(10, float64(db)/20))
}

func linearToDb(lin Sample) Sample {
	v := lin
	if v < 1e-10 {
		v = 1e-10
	}
	return Sample(20 * math.Log10(float64(v)))
}

// compressorFx is a feed-forward peak compressor with linked stereo
// detection: the gain reduction applied to both channels is driven by
// whichever channel has the larger instantaneous peak, so the stereo
// image doesn't shift under compression (spec.md §4.8 Compressor).
type compressorFx struct {
	params     *ParamSet
	sampleRate float64
	envelope   Sample
}

func newCompressorFx(ctx ProcessContext) *compressorFx {
	return &compressorFx{
		params: NewParamSet(map[string]Sample{
			"threshold_db": -18, "ratio": 4, "attack_ms": 10, "release_ms": 100,
			"makeup_db": 0, "mix": 1,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
}

func (c *compressorFx) Reset(sampleRate float64) {
	c.sampleRate = sampleRate
	c.envelope = 0
}

func (c *compressorFx) Params() *ParamSet { return c.params }

func attackReleaseCoeff(timeMs Sample, sampleRate float64) Sample {
	if timeMs <= 0 {
		return 0
	}
	return Sample(math.Exp(-2 * math.Pi * 1000 / (float64(timeMs) * sampleRate)))
}

func (c *compressorFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	threshP := c.params.Get("threshold_db", frames)
	ratioP := c.params.Get("ratio", frames)
	attackP := c.params.Get("attack_ms", frames)
	releaseP := c.params.Get("release_ms", frames)
	makeupP := c.params.Get("makeup_db", frames)
	mixP := c.params.Get("mix", frames)
	inL, inR := ins[0].Chan(0), ins[0].Chan(1)
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)
	stereo := len(inR) > 0

	for i := 0; i < frames; i++ {
		threshold := sampleAt(threshP, i, -18)
		ratio := clampf(sampleAt(ratioP, i, 4), 1, 20)
		attack := clampf(sampleAt(attackP, i, 10), 0.1, 500)
		release := clampf(sampleAt(releaseP, i, 100), 1, 2000)
		makeup := sampleAt(makeupP, i, 0)
		mix := clampf(sampleAt(mixP, i, 1), 0, 1)

		sampleL := inL[i]
		sampleR := sampleL
		if stereo {
			sampleR = inR[i]
		}

		peak := Sample(math.Abs(float64(sampleL)))
		if stereo {
			absR := Sample(math.Abs(float64(sampleR)))
			if absR > peak {
				peak = absR
			}
		}

		attackCoeff := attackReleaseCoeff(attack, c.sampleRate)
		releaseCoeff := attackReleaseCoeff(release, c.sampleRate)
		if peak > c.envelope {
			c.envelope = attackCoeff*c.envelope + (1-attackCoeff)*peak
		} else {
			c.envelope = releaseCoeff*c.envelope + (1-releaseCoeff)*peak
		}

		levelDb := linearToDb(c.envelope)
		var gainReductionDb Sample
		if levelDb > threshold {
			gainReductionDb = (levelDb - threshold) * (1 - 1/ratio)
		}
		gain := dbToLinear(makeup - gainReductionDb)

		compressedL := sampleL * gain
		compressedR := sampleR * gain
		dry := 1 - mix

		outL[i] = sampleL*dry + compressedL*mix
		if stereo {
			outR[i] = sampleR*dry + compressedR*mix
		} else if len(outR) > 0 {
			outR[i] = outL[i]
		}
	}
}
