package fluxgraph

func init() {
	registerModule("Vca", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newVCA() },
		InputPorts:  []PortSpec{{Channels: 2}, {Channels: 1}}, // 0: audio, 1: CV
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

// vca is a voltage-controlled amplifier: audio in port 0, a 0..1 control
// signal in port 1, scaled additionally by the "depth" and "offset"
// parameters so a bipolar LFO or envelope can drive it directly.
type vca struct {
	params *ParamSet
}

func newVCA() *vca {
	return &vca{params: NewParamSet(map[string]Sample{
		"depth":  1.0,
		"offset": 0.0,
	})}
}

func (v *vca) Reset(sampleRate float64) {}

func (v *vca) Params() *ParamSet { return v.params }

func (v *vca) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	depth := v.params.Get("depth", frames)
	offset := v.params.Get("offset", frames)
	inL, inR, cv := ins[0].Chan(0), ins[0].Chan(1), ins[1].Chan(0)
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)
	for i := 0; i < frames; i++ {
		d := sampleAt(depth, i, 1)
		o := sampleAt(offset, i, 0)
		amt := clampf(cv[i]*d+o, 0, 1)
		outL[i] = inL[i] * amt
		outR[i] = inR[i] * amt
	}
}
