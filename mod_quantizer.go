package fluxgraph

func init() {
	registerModule("Quantizer", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newQuantizer() },
		InputPorts:  []PortSpec{{Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// quantizer snaps a continuous V/octave pitch CV to the nearest degree of a
// selected scale/root, keeping melodic modulation in key (spec.md §4.6
// Quantizer).
type quantizer struct {
	params *ParamSet
}

func newQuantizer() *quantizer {
	return &quantizer{
		params: NewParamSet(map[string]Sample{"root": 0, "scale": 0}),
	}
}

func (q *quantizer) Reset(sampleRate float64) {}

func (q *quantizer) Params() *ParamSet { return q.params }

func (q *quantizer) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	rootP := q.params.Get("root", frames)
	scaleP := q.params.Get("scale", frames)
	in := ins[0].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		input := inputAt(in, i)
		root := int(clampf(sampleAt(rootP, i, 0), 0, 11))
		scaleIdx := int(sampleAt(scaleP, i, 0))

		semitone := input * 12
		note := quantizeToScale(semitone, scaleIdx, root)
		out[i] = note / 12
	}
}
