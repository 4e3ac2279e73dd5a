package fluxgraph

func init() {
	registerModule("SampleHold", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newSampleHold() },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}}, // input, trigger
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// sampleHold captures the input value on each trigger rising edge (track
// mode) or draws a fresh LCG random value (random mode), holding it until
// the next trigger (spec.md §4.6 Sample & Hold).
type sampleHold struct {
	params      *ParamSet
	lastTrigger Sample
	held        Sample
	seed        uint32
}

func newSampleHold() *sampleHold {
	return &sampleHold{
		params: NewParamSet(map[string]Sample{"mode": 0}),
		seed:   0x12345678,
	}
}

func (s *sampleHold) Reset(sampleRate float64) {
	s.lastTrigger = 0
	s.held = 0
	s.seed = 0x12345678
}

func (s *sampleHold) Params() *ParamSet { return s.params }

func (s *sampleHold) nextRandom() Sample {
	s.seed = s.seed*1664525 + 1013904223
	raw := Sample(s.seed>>9) / 8388608
	return raw*2 - 1
}

func (s *sampleHold) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	modeP := s.params.Get("mode", frames)
	in, trigger := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		trig := inputAt(trigger, i)
		if trig > 0.5 && s.lastTrigger <= 0.5 {
			mode := sampleAt(modeP, i, 0)
			if mode < 0.5 {
				s.held = inputAt(in, i)
			} else {
				s.held = s.nextRandom()
			}
		}
		s.lastTrigger = trig
		out[i] = s.held
	}
}
