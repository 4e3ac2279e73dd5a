package fluxgraph

func init() {
	registerModule("Mario", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newMario(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}, {Channels: 1}},
	})
}

// marioNote is one entry of the fixed "coin" motif table: pitch in V/oct
// (0V = middle C) and duration as a multiple of the base step length.
type marioNote struct {
	cv    Sample
	steps int
	tie   bool
}

// marioCoinMotif is the classic two-note rising "coin get" jingle,
// grounded on the original's sequencers/mario.rs smoke-test fixture —
// rebuilt here as a self-contained fixed note/duration table rather
// than the original's pure host-driven CV/gate holder, so it stands on
// its own as a worked example of the step-table contract shared with
// the Step and Drum sequencers.
var marioCoinMotif = []marioNote{
	{cv: 11.0 / 12, steps: 1}, // B5
	{cv: 16.0 / 12, steps: 3}, // E6, held
}

// mario plays a fixed note/duration table at a tempo-derived rate; it
// is the self-contained counterpart of the original's host-controlled
// CV/gate bridge (spec.md §4.9 Mario).
type mario struct {
	params         *ParamSet
	clock          stepClock
	stepInNote     int
	noteIndex      int
	gateOn         bool
	gateSamples    int
	gateLenSamples int
	heldCv         Sample
}

func newMario(ctx ProcessContext) *mario {
	m := &mario{
		params: NewParamSet(map[string]Sample{
			"enabled": 1, "tempo": 160, "rate": 7, "gate_length": 80,
		}),
	}
	m.clock.configure(ctx.sampleRateOrDefault(), 160, 7)
	return m
}

func (m *mario) Reset(sampleRate float64) {
	m.clock.configure(sampleRate, 160, 7)
	m.clock.phase = 0
	m.noteIndex = 0
	m.stepInNote = 0
	m.gateOn = false
	m.gateSamples = 0
	m.heldCv = 0
}

func (m *mario) Params() *ParamSet { return m.params }

func (m *mario) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	enabledP := m.params.Get("enabled", frames)
	tempoP := m.params.Get("tempo", frames)
	rateP := m.params.Get("rate", frames)
	gateLenP := m.params.Get("gate_length", frames)
	resetIn := ins[0].Chan(0)
	cvOut, gateOut := outs[0].Chan(0), outs[1].Chan(0)

	enabled := sampleAt(enabledP, 0, 1) > 0.5
	if !enabled {
		for i := 0; i < frames; i++ {
			cvOut[i] = m.heldCv
			gateOut[i] = 0
		}
		m.gateOn = false
		return
	}

	tempo := clampf(sampleAt(tempoP, 0, 160), 40, 300)
	rate := sampleAt(rateP, 0, 7)
	gateLenPct := clampf(sampleAt(gateLenP, 0, 80), 10, 100)
	m.clock.configure(ctx.sampleRateOrDefault(), tempo, rate)
	gateLenSamples := int(m.clock.samplesPerStep * float64(gateLenPct) / 100)
	if gateLenSamples < 1 {
		gateLenSamples = 1
	}
	m.gateLenSamples = gateLenSamples

	for i := 0; i < frames; i++ {
		shouldStep, didReset := m.clock.advance(nil, resetIn, i)
		if didReset {
			m.noteIndex = 0
			m.stepInNote = 0
		}
		if shouldStep {
			if m.stepInNote == 0 {
				note := marioCoinMotif[m.noteIndex]
				m.heldCv = note.cv
				if !note.tie {
					m.gateOn = true
					m.gateSamples = 0
				}
			}
			m.stepInNote++
			if m.stepInNote >= marioCoinMotif[m.noteIndex].steps {
				m.stepInNote = 0
				m.noteIndex = (m.noteIndex + 1) % len(marioCoinMotif)
			}
		}

		if m.gateOn {
			m.gateSamples++
			if m.gateSamples >= m.gateLenSamples {
				m.gateOn = false
			}
		}

		cvOut[i] = m.heldCv
		if m.gateOn {
			gateOut[i] = 1
		} else {
			gateOut[i] = 0
		}
	}
}
