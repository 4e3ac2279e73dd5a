package fluxgraph

func init() {
	registerModule("Rimshot909", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newRimshot909(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// rimshot909 sums two detuned triangle waves at an inharmonic ratio with a
// very fast decay for a short metallic ping (spec.md §4.7 909 rimshot).
type rimshot909 struct {
	params        *ParamSet
	sampleRate    float64
	phases        [2]Sample
	ampEnv        Sample
	lastTrig      Sample
	latchedAccent Sample
}

func newRimshot909(ctx ProcessContext) *rimshot909 {
	return &rimshot909{
		params:        NewParamSet(map[string]Sample{"tune": 400}),
		sampleRate:    ctx.sampleRateOrDefault(),
		latchedAccent: 0.5,
	}
}

func (r *rimshot909) Reset(sampleRate float64) {
	r.sampleRate = sampleRate
	r.phases = [2]Sample{}
	r.ampEnv = 0
	r.lastTrig = 0
}

func (r *rimshot909) Params() *ParamSet { return r.params }

func triangleWave(phase Sample) Sample {
	return 4*abs32(phase-floorSample(phase+0.5)) - 1
}

func floorSample(v Sample) Sample {
	i := int(v)
	if v < 0 && Sample(i) != v {
		i--
	}
	return Sample(i)
}

func abs32(v Sample) Sample {
	if v < 0 {
		return -v
	}
	return v
}

func (r *rimshot909) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	tuneP := r.params.Get("tune", frames)
	trigIn, accentIn := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		tune := clampf(sampleAt(tuneP, i, 400), 200, 600)

		trig := inputAt(trigIn, i)
		accent := clampf(sampleAt(accentIn, i, 0.5), 0, 1)

		if trig > 0.5 && r.lastTrig <= 0.5 {
			r.ampEnv = 1
			r.phases = [2]Sample{}
			r.latchedAccent = accent
		}
		r.lastTrig = trig

		freq1 := tune
		freq2 := tune * 1.47

		r.phases[0] += freq1 / Sample(r.sampleRate)
		r.phases[1] += freq2 / Sample(r.sampleRate)
		if r.phases[0] >= 1 {
			r.phases[0] -= 1
		}
		if r.phases[1] >= 1 {
			r.phases[1] -= 1
		}

		tri1 := triangleWave(r.phases[0])
		tri2 := triangleWave(r.phases[1])

		ampDecayRate := 1 / (Sample(0.02) * Sample(r.sampleRate))
		r.ampEnv = clampf(r.ampEnv-ampDecayRate, 0, 1)

		sample := (tri1 + tri2*0.5) * r.ampEnv * 0.6
		sample *= 0.7 + r.latchedAccent*0.5

		out[i] = clampf(sample, -1, 1)
	}
}
