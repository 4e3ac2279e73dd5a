package fluxgraph

import "math"

func init() {
	registerModule("FmOperator", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newFMOperator() },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}, {Channels: 1}}, // pitch, gate, fm_in
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

type fmEnvStage int

const (
	fmEnvIdle fmEnvStage = iota
	fmEnvAttack
	fmEnvDecay
	fmEnvSustain
	fmEnvRelease
)

// fmOperator is a single sine-core FM operator: phase modulation from an
// external input, self-feedback averaged over the last two output samples,
// and a millisecond-scale ADSR gating the output. Operators are chained
// externally via edges to build DX-style algorithms (spec.md §4.5 FM
// operator).
type fmOperator struct {
	params     *ParamSet
	sampleRate float64

	phase    float64
	envStage fmEnvStage
	envLevel Sample
	envTime  Sample

	feedbackOut [2]Sample
	feedbackIdx int

	prevGate Sample
}

func newFMOperator() *fmOperator {
	return &fmOperator{
		params: NewParamSet(map[string]Sample{
			"frequency": 440,
			"ratio":     1,
			"level":     1,
			"feedback":  0,
			"attack":    5,
			"decay":     100,
			"sustain":   0.7,
			"release":   200,
		}),
	}
}

func (f *fmOperator) Reset(sampleRate float64) {
	f.sampleRate = sampleRate
	f.phase = 0
	f.envStage = fmEnvIdle
	f.envLevel = 0
}

func (f *fmOperator) Params() *ParamSet { return f.params }

func (f *fmOperator) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	pitchIn, gateIn, fmIn := ins[0].Chan(0), ins[1].Chan(0), ins[2].Chan(0)

	baseFreq := Sample(math.Max(float64(f.params.Scalar("frequency", 440)), 1))
	ratio := Sample(math.Max(float64(f.params.Scalar("ratio", 1)), 0.01))
	level := clampf(f.params.Scalar("level", 1), 0, 1)
	feedback := clampf(f.params.Scalar("feedback", 0), 0, 1)
	attackMs := Sample(math.Max(float64(f.params.Scalar("attack", 5)), 0.1))
	decayMs := Sample(math.Max(float64(f.params.Scalar("decay", 100)), 0.1))
	sustain := clampf(f.params.Scalar("sustain", 0.7), 0, 1)
	releaseMs := Sample(math.Max(float64(f.params.Scalar("release", 200)), 0.1))

	out := outs[0].Chan(0)
	twoPi := 2 * math.Pi
	dtMs := Sample(1000 / f.sampleRate)

	for i := 0; i < frames; i++ {
		pitchCV := inputAt(pitchIn, i)
		freq := baseFreq * ratio * Sample(math.Pow(2, float64(pitchCV)/12))

		gate := inputAt(gateIn, i)
		gateOn := gate > 0.5
		gateRising := gate > 0.5 && f.prevGate <= 0.5
		gateFalling := gate <= 0.5 && f.prevGate > 0.5
		f.prevGate = gate

		if gateRising {
			f.envStage = fmEnvAttack
			f.envTime = 0
		} else if gateFalling && f.envStage != fmEnvIdle {
			f.envStage = fmEnvRelease
			f.envTime = 0
		}

		switch f.envStage {
		case fmEnvIdle:
			f.envLevel = 0
		case fmEnvAttack:
			f.envTime += dtMs
			f.envLevel += (1 / attackMs) * dtMs
			if f.envLevel >= 1 {
				f.envLevel = 1
				f.envStage = fmEnvDecay
				f.envTime = 0
			}
		case fmEnvDecay:
			f.envTime += dtMs
			f.envLevel -= ((1 - sustain) / decayMs) * dtMs
			if f.envLevel <= sustain {
				f.envLevel = sustain
				f.envStage = fmEnvSustain
			}
		case fmEnvSustain:
			f.envLevel = sustain
			if !gateOn {
				f.envStage = fmEnvRelease
				f.envTime = 0
			}
		case fmEnvRelease:
			f.envTime += dtMs
			f.envLevel -= (f.envLevel / releaseMs) * dtMs
			if f.envLevel <= 0.001 {
				f.envLevel = 0
				f.envStage = fmEnvIdle
			}
		}

		fmMod := inputAt(fmIn, i)
		fb := (f.feedbackOut[0] + f.feedbackOut[1]) * 0.5 * feedback * Sample(math.Pi)

		phaseInc := float64(freq) / f.sampleRate * twoPi
		fmAmount := float64(fmMod + fb)

		outSample := Sample(math.Sin(f.phase + fmAmount))

		f.phase += phaseInc
		if f.phase >= twoPi {
			f.phase -= twoPi
		}

		f.feedbackOut[f.feedbackIdx] = outSample
		f.feedbackIdx = (f.feedbackIdx + 1) % 2

		out[i] = outSample * f.envLevel * level
	}
}
