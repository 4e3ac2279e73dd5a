package fluxgraph

func init() {
	registerModule("AudioIn", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newAudioIn() },
		InputPorts:  nil,
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// audioIn exposes the host-supplied external-input buffer as its mono
// output; with no buffer supplied it emits silence (spec.md §4.1 External
// input).
type audioIn struct {
	params   *ParamSet
	external []Sample
}

func newAudioIn() *audioIn {
	return &audioIn{params: NewParamSet(nil)}
}

func (a *audioIn) Reset(sampleRate float64) {}

func (a *audioIn) Params() *ParamSet { return a.params }

func (a *audioIn) SetExternalInput(samples []Sample) { a.external = samples }

func (a *audioIn) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	out := outs[0].Chan(0)
	for i := range out {
		out[i] = sampleAt(a.external, i, 0)
	}
}
