package fluxgraph

func init() {
	registerModule("StepSequencer", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newStepSequencer(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}, {Channels: 1}, {Channels: 1}},
	})
}

const stepSeqMaxSteps = 16

// stepSequencer walks a fixed-length table of per-step CV/gate-on/tie
// values, the classic step-sequencer grid (spec.md §4.9 Step Sequencer).
// The table lives in named ParamSet entries ("step0_cv".."step15_cv",
// plus "_gate"/"_tie" siblings) so it is settable through the engine's
// ordinary scalar control surface.
type stepSequencer struct {
	params         *ParamSet
	clock          stepClock
	current        int
	gateOn         bool
	gateSamples    int
	gateLenSamples int
	heldCv         Sample
}

func newStepSequencer(ctx ProcessContext) *stepSequencer {
	params := map[string]Sample{
		"enabled": 1, "tempo": 120, "rate": 7, "step_count": 8, "gate_length": 50,
	}
	for i := 0; i < stepSeqMaxSteps; i++ {
		params[stepCvName(i)] = 0
		params[stepGateName(i)] = 1
		params[stepTieName(i)] = 0
	}
	s := &stepSequencer{params: NewParamSet(params)}
	s.clock.configure(ctx.sampleRateOrDefault(), 120, 7)
	return s
}

func stepCvName(i int) string   { return "step" + itoa2(i) + "_cv" }
func stepGateName(i int) string { return "step" + itoa2(i) + "_gate" }
func stepTieName(i int) string  { return "step" + itoa2(i) + "_tie" }

// itoa2 formats small non-negative step indices without importing strconv,
// matching the other indexed-param helpers in this package.
func itoa2(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

func (s *stepSequencer) Reset(sampleRate float64) {
	s.clock.configure(sampleRate, 120, 7)
	s.clock.phase = 0
	s.current = 0
	s.gateOn = false
	s.gateSamples = 0
	s.heldCv = 0
}

func (s *stepSequencer) Params() *ParamSet { return s.params }

// CurrentStep reports the step the sequencer is currently sitting on.
func (s *stepSequencer) CurrentStep() int { return s.current }

func (s *stepSequencer) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	enabledP := s.params.Get("enabled", frames)
	tempoP := s.params.Get("tempo", frames)
	rateP := s.params.Get("rate", frames)
	countP := s.params.Get("step_count", frames)
	gateLenP := s.params.Get("gate_length", frames)
	clockIn, resetIn := ins[0].Chan(0), ins[1].Chan(0)
	cvOut, gateOut, stepOut := outs[0].Chan(0), outs[1].Chan(0), outs[2].Chan(0)

	enabled := sampleAt(enabledP, 0, 1) > 0.5
	stepCount := int(clampf(sampleAt(countP, 0, 8), 1, stepSeqMaxSteps))
	if !enabled {
		for i := 0; i < frames; i++ {
			cvOut[i] = s.heldCv
			gateOut[i] = 0
			stepOut[i] = Sample(s.current)
		}
		s.gateOn = false
		return
	}

	tempo := clampf(sampleAt(tempoP, 0, 120), 40, 300)
	rate := sampleAt(rateP, 0, 7)
	gateLenPct := clampf(sampleAt(gateLenP, 0, 50), 10, 100)
	s.clock.configure(ctx.sampleRateOrDefault(), tempo, rate)
	gateLenSamples := int(s.clock.samplesPerStep * float64(gateLenPct) / 100)
	if gateLenSamples < 1 {
		gateLenSamples = 1
	}
	s.gateLenSamples = gateLenSamples

	type stepData struct {
		cv   Sample
		gate bool
		tie  bool
	}
	table := make([]stepData, stepCount)
	for n := 0; n < stepCount; n++ {
		table[n] = stepData{
			cv:   s.params.Scalar(stepCvName(n), 0),
			gate: s.params.Scalar(stepGateName(n), 1) > 0.5,
			tie:  s.params.Scalar(stepTieName(n), 0) > 0.5,
		}
	}

	for i := 0; i < frames; i++ {
		shouldStep, didReset := s.clock.advance(clockIn, resetIn, i)
		if didReset {
			s.current = 0
		}
		if shouldStep {
			data := table[s.current]
			s.heldCv = data.cv
			if data.gate && !data.tie {
				s.gateOn = true
				s.gateSamples = 0
			} else if !data.gate {
				s.gateOn = false
			}
			// a tied step holds the prior gate state through this step
			s.current = (s.current + 1) % stepCount
		}

		if s.gateOn {
			s.gateSamples++
			if s.gateSamples >= s.gateLenSamples {
				s.gateOn = false
			}
		}

		cvOut[i] = s.heldCv
		if s.gateOn {
			gateOut[i] = 1
		} else {
			gateOut[i] = 0
		}
		stepOut[i] = Sample(s.current)
	}
}
