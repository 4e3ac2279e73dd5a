package fluxgraph

import "math"

func init() {
	registerModule("Vocoder", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newVocoderFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

const vocoderBands = 16

// vocoderFx analyzes a modulator's spectral envelope across 16 bands
// and imposes it on a carrier, the classic robot-voice effect, with an
// unvoiced-sibilant path so consonants don't disappear into the tonal
// carrier (spec.md §4.8 Vocoder).
type vocoderFx struct {
	params               *ParamSet
	sampleRate           float64
	modFilters, carFilters [vocoderBands]formantFilter
	envelopes            [vocoderBands]Sample
	unvoicedEnv          Sample
	hpState, hpPrev      Sample
	rng                  uint32
}

func newVocoderFx(ctx ProcessContext) *vocoderFx {
	return &vocoderFx{
		params: NewParamSet(map[string]Sample{
			"attack": 25, "release": 140, "low": 120, "high": 5000, "q": 2.5,
			"formant": 0, "emphasis": 0.4, "unvoiced": 0, "mix": 0.8,
			"mod_gain": 1, "car_gain": 1,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
		rng:        0x12345678,
	}
}

func (v *vocoderFx) Reset(sampleRate float64) {
	v.sampleRate = sampleRate
	v.modFilters, v.carFilters = [vocoderBands]formantFilter{}, [vocoderBands]formantFilter{}
	v.envelopes = [vocoderBands]Sample{}
	v.unvoicedEnv, v.hpState, v.hpPrev = 0, 0, 0
}

func (v *vocoderFx) Params() *ParamSet { return v.params }

func (v *vocoderFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	attackP := v.params.Get("attack", frames)
	releaseP := v.params.Get("release", frames)
	lowP := v.params.Get("low", frames)
	highP := v.params.Get("high", frames)
	qP := v.params.Get("q", frames)
	formantP := v.params.Get("formant", frames)
	emphasisP := v.params.Get("emphasis", frames)
	unvoicedP := v.params.Get("unvoiced", frames)
	mixP := v.params.Get("mix", frames)
	modGainP := v.params.Get("mod_gain", frames)
	carGainP := v.params.Get("car_gain", frames)
	modIn, carIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	bands := Sample(vocoderBands)

	for i := 0; i < frames; i++ {
		attackMs := clampf(sampleAt(attackP, i, 25), 2, 300)
		releaseMs := clampf(sampleAt(releaseP, i, 140), 10, 1200)
		low := clampf(sampleAt(lowP, i, 120), 40, 2000)
		high := clampf(sampleAt(highP, i, 5000), 400, 12000)
		if high <= low {
			high = Sample(math.Min(float64(low)*1.5, 12000))
		}
		q := clampf(sampleAt(qP, i, 2.5), 0.4, 8)
		formant := clampf(sampleAt(formantP, i, 0), -12, 12)
		emphasis := clampf(sampleAt(emphasisP, i, 0.4), 0, 1)
		unvoiced := clampf(sampleAt(unvoicedP, i, 0), 0, 1)
		mix := clampf(sampleAt(mixP, i, 0.8), 0, 1)
		modGain := clampf(sampleAt(modGainP, i, 1), 0, 4)
		carGain := clampf(sampleAt(carGainP, i, 1), 0, 4)

		modInput := inputAt(modIn, i) * modGain
		carInput := inputAt(carIn, i) * carGain

		attack := float64(attackMs) * 0.001
		release := float64(releaseMs) * 0.001
		attackCoeff := Sample(1 - math.Exp(-1/(attack*v.sampleRate)))
		releaseCoeff := Sample(1 - math.Exp(-1/(release*v.sampleRate)))
		shift := Sample(math.Pow(2, float64(formant)/12))
		ratio := high / low

		emphasisCutoff := 600 + emphasis*3400
		hpCoeff := Sample(math.Exp(-2 * math.Pi * float64(emphasisCutoff) / v.sampleRate))
		hpOut := modInput - v.hpPrev + hpCoeff*v.hpState
		v.hpPrev = modInput
		v.hpState = hpOut
		modEmph := modInput + hpOut*(emphasis*0.7)

		unvoicedAttack := 0.004
		unvoicedRelease := 0.06
		unvoicedAttackCoeff := Sample(1 - math.Exp(-1/(unvoicedAttack*v.sampleRate)))
		unvoicedReleaseCoeff := Sample(1 - math.Exp(-1/(unvoicedRelease*v.sampleRate)))
		unvoicedTarget := Sample(math.Abs(float64(hpOut)))
		unvoicedCoeff := unvoicedReleaseCoeff
		if unvoicedTarget > v.unvoicedEnv {
			unvoicedCoeff = unvoicedAttackCoeff
		}
		v.unvoicedEnv += unvoicedCoeff * (unvoicedTarget - v.unvoicedEnv)
		v.rng = v.rng*1664525 + 1013904223
		noise := Sample(v.rng>>9)/8388607*2 - 1
		unvoicedMix := noise * v.unvoicedEnv * unvoiced * 0.45

		var wet Sample
		for band := 0; band < vocoderBands; band++ {
			t := Sample(band) / (bands - 1)
			freq := low * Sample(math.Pow(float64(ratio), float64(t))) * shift
			modBand := v.modFilters[band].process(modEmph, freq, q, v.sampleRate)
			carBand := v.carFilters[band].process(carInput, freq, q, v.sampleRate)
			env := v.envelopes[band]
			rectified := Sample(math.Abs(float64(modBand)))
			coeff := releaseCoeff
			if rectified > env {
				coeff = attackCoeff
			}
			nextEnv := env + coeff*(rectified-env)
			v.envelopes[band] = nextEnv
			wet += carBand * nextEnv
		}

		scaled := wet * (1 / bands)
		dry := 1 - mix
		out[i] = carInput*dry + (scaled+unvoicedMix)*mix
	}
}
