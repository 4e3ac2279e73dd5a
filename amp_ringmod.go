package fluxgraph

func init() {
	registerModule("RingMod", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newRingMod() },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// ringMod multiplies its two mono inputs sample-wise, scaled by "level"
// (spec.md §4.8 Ring modulator).
type ringMod struct {
	params *ParamSet
}

func newRingMod() *ringMod {
	return &ringMod{params: NewParamSet(map[string]Sample{"level": 1.0})}
}

func (r *ringMod) Reset(sampleRate float64) {}

func (r *ringMod) Params() *ParamSet { return r.params }

func (r *ringMod) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	level := r.params.Get("level", frames)
	a, b := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)
	for i := 0; i < frames; i++ {
		out[i] = inputAt(a, i) * inputAt(b, i) * sampleAt(level, i, 1)
	}
}
