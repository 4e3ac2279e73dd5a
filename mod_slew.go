package fluxgraph

func init() {
	registerModule("Slew", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newSlewLimiter(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// slewLimiter limits how fast a signal can change, with independent rise
// and fall time constants so it doubles as portamento/glide or an envelope
// follower (spec.md §4.6 Slew limiter).
type slewLimiter struct {
	params     *ParamSet
	sampleRate float64
	value      Sample
}

func newSlewLimiter(ctx ProcessContext) *slewLimiter {
	return &slewLimiter{
		params:     NewParamSet(map[string]Sample{"rise": 0.05, "fall": 0.05}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
}

func (s *slewLimiter) Reset(sampleRate float64) {
	s.sampleRate = sampleRate
	s.value = 0
}

func (s *slewLimiter) Params() *ParamSet { return s.params }

func (s *slewLimiter) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	riseP := s.params.Get("rise", frames)
	fallP := s.params.Get("fall", frames)
	in := ins[0].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		target := inputAt(in, i)
		rise := clampf(sampleAt(riseP, i, 0.05), 0, 1e9)
		fall := clampf(sampleAt(fallP, i, 0.05), 0, 1e9)

		time := rise
		if target < s.value {
			time = fall
		}
		coeff := smoothingCoeff(float64(time), s.sampleRate)
		s.value += (target - s.value) * coeff
		out[i] = s.value
	}
}
