package fluxgraph

func init() {
	registerModule("Output", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newOutputModule(ctx) },
		InputPorts:  []PortSpec{{Channels: 2}},
		OutputPorts: nil,
	})
}

// outputModule is the graph's single terminal sink: its stereo input is
// exactly what Engine.Render copies into the host's interleaved buffer.
// Fan-in summation on its input follows the same generic edge-accumulation
// rule as any other port (spec.md §9 open question on Output summation).
type outputModule struct {
	params *ParamSet
	buf    *Buffer
}

func newOutputModule(ctx ProcessContext) *outputModule {
	return &outputModule{params: NewParamSet(nil), buf: NewBuffer(2, ctx.BlockSize)}
}

func (o *outputModule) Reset(sampleRate float64) {}

func (o *outputModule) Params() *ParamSet { return o.params }

func (o *outputModule) Output() *Buffer { return o.buf }

func (o *outputModule) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	in := ins[0]
	if o.buf.Frames() != in.Frames() {
		o.buf.Resize(in.Frames())
	}
	copy(o.buf.Chan(0), in.Chan(0))
	copy(o.buf.Chan(1), in.Chan(1))
}
