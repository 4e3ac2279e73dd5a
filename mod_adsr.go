package fluxgraph

func init() {
	registerModule("Adsr", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newAdsr(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

const (
	adsrIdle = iota
	adsrAttack
	adsrDecay
	adsrSustain
	adsrRelease
)

// adsr is a classic four-stage envelope generator: the release rate is
// computed once at gate-off from the envelope level at that instant, so
// release always takes the configured time regardless of where in the
// envelope the gate let go (spec.md §4.6 ADSR).
type adsr struct {
	params      *ParamSet
	sampleRate  float64
	stage       int
	env         Sample
	lastGate    Sample
	releaseStep Sample
}

func newAdsr(ctx ProcessContext) *adsr {
	return &adsr{
		params:     NewParamSet(map[string]Sample{"attack": 0.02, "decay": 0.2, "sustain": 0.65, "release": 0.4}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
}

func (a *adsr) Reset(sampleRate float64) {
	a.sampleRate = sampleRate
	a.stage = adsrIdle
	a.env = 0
	a.lastGate = 0
	a.releaseStep = 0
}

func (a *adsr) Params() *ParamSet { return a.params }

func (a *adsr) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	attackP := a.params.Get("attack", frames)
	decayP := a.params.Get("decay", frames)
	sustainP := a.params.Get("sustain", frames)
	releaseP := a.params.Get("release", frames)
	gateIn := ins[0].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		gate := inputAt(gateIn, i)
		attack := sampleAt(attackP, i, 0.02)
		decay := sampleAt(decayP, i, 0.2)
		sustain := clampf(sampleAt(sustainP, i, 0.65), 0, 1)
		release := sampleAt(releaseP, i, 0.4)

		if gate > 0.5 && a.lastGate <= 0.5 {
			a.stage = adsrAttack
			a.releaseStep = 0
		} else if gate <= 0.5 && a.lastGate > 0.5 {
			if a.env > 0 {
				releaseTime := Sample(maxF(float64(release), 0.001))
				a.releaseStep = a.env / (releaseTime * Sample(a.sampleRate))
				a.stage = adsrRelease
			} else {
				a.stage = adsrIdle
			}
		}
		a.lastGate = gate

		switch a.stage {
		case adsrAttack:
			attackTime := Sample(maxF(float64(attack), 0.001))
			step := 1 / (attackTime * Sample(a.sampleRate))
			a.env += step
			if a.env >= 1 {
				a.env = 1
				a.stage = adsrDecay
			}
		case adsrDecay:
			decayTime := Sample(maxF(float64(decay), 0.001))
			step := (1 - sustain) / (decayTime * Sample(a.sampleRate))
			a.env -= step
			if a.env <= sustain {
				a.env = sustain
				a.stage = adsrSustain
			}
		case adsrSustain:
			a.env = sustain
		case adsrRelease:
			if a.releaseStep <= 0 {
				a.env = 0
				a.stage = adsrIdle
			} else {
				a.env -= a.releaseStep
				if a.env <= 0 {
					a.env = 0
					a.stage = adsrIdle
				}
			}
		default:
			a.env = 0
		}

		out[i] = a.env
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
