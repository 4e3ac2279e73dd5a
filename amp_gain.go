package fluxgraph

func init() {
	registerModule("Gain", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newGain() },
		InputPorts:  []PortSpec{{Channels: 2}},
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

// gain is a static stereo scalar multiplier.
type gain struct {
	params *ParamSet
}

func newGain() *gain {
	return &gain{params: NewParamSet(map[string]Sample{
		"level": 1.0,
	})}
}

func (g *gain) Reset(sampleRate float64) {}

func (g *gain) Params() *ParamSet { return g.params }

func (g *gain) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	level := g.params.Get("level", frames)
	inL, inR := ins[0].Chan(0), ins[0].Chan(1)
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)
	for i := 0; i < frames; i++ {
		l := sampleAt(level, i, 1)
		outL[i] = inL[i] * l
		outR[i] = inR[i] * l
	}
}
