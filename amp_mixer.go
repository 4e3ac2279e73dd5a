package fluxgraph

// mixerVoices is the fixed number of stereo inputs a Mixer module exposes.
// The module set is closed and port counts are table-driven (spec.md §9),
// so the input count is fixed at construction rather than dynamic.
const mixerVoices = 4

func init() {
	ports := make([]PortSpec, mixerVoices)
	for i := range ports {
		ports[i] = PortSpec{Channels: 2}
	}
	registerModule("Mixer", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newMixer() },
		InputPorts:  ports,
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

// mixer sums mixerVoices stereo inputs, each scaled by its own "levelN"
// parameter, into one stereo output.
type mixer struct {
	params *ParamSet
}

func newMixer() *mixer {
	defaults := make(map[string]Sample, mixerVoices)
	for i := 0; i < mixerVoices; i++ {
		defaults[levelParamName(i)] = 1.0
	}
	return &mixer{params: NewParamSet(defaults)}
}

func levelParamName(i int) string {
	return "level" + string(rune('0'+i))
}

func (m *mixer) Reset(sampleRate float64) {}

func (m *mixer) Params() *ParamSet { return m.params }

func (m *mixer) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)
	for i := 0; i < frames; i++ {
		outL[i] = 0
		outR[i] = 0
	}
	for v := 0; v < mixerVoices; v++ {
		level := m.params.Get(levelParamName(v), frames)
		inL, inR := ins[v].Chan(0), ins[v].Chan(1)
		for i := 0; i < frames; i++ {
			l := sampleAt(level, i, 1)
			outL[i] += inL[i] * l
			outR[i] += inR[i] * l
		}
	}
}
