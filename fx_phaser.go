package fluxgraph

import "math"

func init() {
	registerModule("Phaser", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newPhaserFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 2}},
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

var phaserBaseFreqs = [4]Sample{200, 400, 800, 1600}

// phaserFx cascades four first-order allpass stages per channel, their
// corner frequencies swept together by a single LFO, with feedback from
// the last stage back into the first for the classic jet-sweep resonance
// (spec.md §4.8 Phaser).
type phaserFx struct {
	sampleRate        float64
	params            *ParamSet
	allpassL, allpassR [4]Sample
	lfoPhase          Sample
}

func newPhaserFx(ctx ProcessContext) *phaserFx {
	return &phaserFx{
		sampleRate: ctx.sampleRateOrDefault(),
		params: NewParamSet(map[string]Sample{
			"rate": 0.5, "depth": 0.7, "feedback": 0.3, "mix": 0.5,
		}),
	}
}

func (p *phaserFx) Reset(sampleRate float64) {
	p.sampleRate = sampleRate
	p.allpassL, p.allpassR = [4]Sample{}, [4]Sample{}
	p.lfoPhase = 0
}

func (p *phaserFx) Params() *ParamSet { return p.params }

func phaserAllpass(input, coeff Sample, state *Sample) Sample {
	output := *state - input*coeff
	*state = input + output*coeff
	return output
}

func (p *phaserFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	rateP := p.params.Get("rate", frames)
	depthP := p.params.Get("depth", frames)
	fbP := p.params.Get("feedback", frames)
	mixP := p.params.Get("mix", frames)
	inL, inR := ins[0].Chan(0), ins[0].Chan(1)
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)

	for i := 0; i < frames; i++ {
		rate := clampf(sampleAt(rateP, i, 0.5), 0.05, 5)
		depth := clampf(sampleAt(depthP, i, 0.7), 0, 1)
		feedback := clampf(sampleAt(fbP, i, 0.3), 0, 0.9)
		mix := clampf(sampleAt(mixP, i, 0.5), 0, 1)

		p.lfoPhase += rate / Sample(p.sampleRate)
		if p.lfoPhase >= 1 {
			p.lfoPhase -= 1
		}
		lfo := Sample(math.Sin(float64(p.lfoPhase) * 2 * math.Pi))
		modAmount := 0.5 + lfo*0.5*depth

		sampleL := inputAt(inL, i)
		sampleR := sampleL
		if len(inR) > 0 {
			sampleR = inputAt(inR, i)
		}

		procL := sampleL + p.allpassL[3]*feedback
		procR := sampleR + p.allpassR[3]*feedback

		for stage := 0; stage < 4; stage++ {
			freq := phaserBaseFreqs[stage] * modAmount
			coeff := clampf(1-freq/Sample(p.sampleRate), -0.99, 0.99)
			procL = phaserAllpass(procL, coeff, &p.allpassL[stage])
			procR = phaserAllpass(procR, coeff, &p.allpassR[stage])
		}

		dry := 1 - mix
		outL[i] = sampleL*dry + procL*mix
		outR[i] = sampleR*dry + procR*mix
	}
}
