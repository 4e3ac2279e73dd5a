package fluxgraph

func init() {
	registerModule("Arpeggiator", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newArpeggiator(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}, {Channels: 1}},
	})
}

const arpMaxNotes = 8

// arpMode selects the walk direction over the held note set.
const (
	arpModeUp = iota
	arpModeDown
	arpModeUpDown
	arpModeRandom
)

// arpeggiator holds a small note set (written by the control surface via
// the "note_N" params, sized by "note_count") and walks it at clock rate
// emitting one voice CV/gate pair, per spec.md §4.9's shared sequencer
// contract.
type arpeggiator struct {
	params         *ParamSet
	clock          stepClock
	index          int
	goingUp        bool
	gateOn         bool
	gateSamples    int
	gateLenSamples int
	rng            uint32
}

func newArpeggiator(ctx ProcessContext) *arpeggiator {
	params := map[string]Sample{
		"enabled": 1, "tempo": 120, "rate": 7, "mode": arpModeUp,
		"note_count": 0, "gate_length": 50,
	}
	for i := 0; i < arpMaxNotes; i++ {
		params[noteParamName(i)] = 0
	}
	a := &arpeggiator{
		params:  NewParamSet(params),
		goingUp: true,
		rng:     0xACE1ACE1,
	}
	a.clock.configure(ctx.sampleRateOrDefault(), 120, 7)
	return a
}

func noteParamName(i int) string {
	return "note_" + string(rune('0'+i))
}

func (a *arpeggiator) Reset(sampleRate float64) {
	a.clock.configure(sampleRate, 120, 7)
	a.clock.phase = 0
	a.index = 0
	a.goingUp = true
	a.gateOn = false
	a.gateSamples = 0
}

func (a *arpeggiator) Params() *ParamSet { return a.params }

func (a *arpeggiator) nextRandom() uint32 {
	a.rng = a.rng*1664525 + 1013904223
	return a.rng
}

func (a *arpeggiator) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	enabledP := a.params.Get("enabled", frames)
	tempoP := a.params.Get("tempo", frames)
	rateP := a.params.Get("rate", frames)
	modeP := a.params.Get("mode", frames)
	countP := a.params.Get("note_count", frames)
	gateLenP := a.params.Get("gate_length", frames)
	clockIn, resetIn := ins[0].Chan(0), ins[1].Chan(0)
	cvOut, gateOut := outs[0].Chan(0), outs[1].Chan(0)

	enabled := sampleAt(enabledP, 0, 1) > 0.5
	noteCount := int(clampf(sampleAt(countP, 0, 0), 0, arpMaxNotes))
	if !enabled || noteCount == 0 {
		for i := 0; i < frames; i++ {
			cvOut[i] = 0
			gateOut[i] = 0
		}
		a.gateOn = false
		return
	}

	tempo := clampf(sampleAt(tempoP, 0, 120), 40, 300)
	rate := sampleAt(rateP, 0, 7)
	mode := int(sampleAt(modeP, 0, arpModeUp))
	gateLenPct := clampf(sampleAt(gateLenP, 0, 50), 10, 100)
	a.clock.configure(ctx.sampleRateOrDefault(), tempo, rate)
	gateLenSamples := int(a.clock.samplesPerStep * float64(gateLenPct) / 100)
	if gateLenSamples < 1 {
		gateLenSamples = 1
	}
	a.gateLenSamples = gateLenSamples

	notes := make([]Sample, noteCount)
	for n := 0; n < noteCount; n++ {
		notes[n] = a.params.Scalar(noteParamName(n), 0)
	}

	for i := 0; i < frames; i++ {
		shouldStep, didReset := a.clock.advance(clockIn, resetIn, i)
		if didReset {
			a.index = 0
			a.goingUp = true
		}
		if shouldStep {
			switch mode {
			case arpModeUp:
				a.index = (a.index + 1) % noteCount
			case arpModeDown:
				a.index = (a.index - 1 + noteCount) % noteCount
			case arpModeUpDown:
				if noteCount > 1 {
					if a.goingUp {
						a.index++
						if a.index >= noteCount-1 {
							a.index = noteCount - 1
							a.goingUp = false
						}
					} else {
						a.index--
						if a.index <= 0 {
							a.index = 0
							a.goingUp = true
						}
					}
				}
			case arpModeRandom:
				a.index = int(a.nextRandom() % uint32(noteCount))
			}
			a.gateOn = true
			a.gateSamples = 0
		}

		if a.gateOn {
			a.gateSamples++
			if a.gateSamples >= a.gateLenSamples {
				a.gateOn = false
			}
		}

		idx := a.index
		if idx < 0 || idx >= noteCount {
			idx = 0
		}
		cvOut[i] = notes[idx]
		if a.gateOn {
			gateOut[i] = 1
		} else {
			gateOut[i] = 0
		}
	}
}
