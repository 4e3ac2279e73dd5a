package fluxgraph

func init() {
	outs := make([]PortSpec, 0, drumSeqVoices*2)
	for v := 0; v < drumSeqVoices; v++ {
		outs = append(outs, PortSpec{Channels: 1}, PortSpec{Channels: 1})
	}
	registerModule("DrumSequencer", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newDrumSequencer(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: outs,
	})
}

const (
	drumSeqVoices   = 8
	drumSeqMaxSteps = 16
)

// drumSequencer is an 8-voice by N-step boolean trigger/accent grid,
// the classic drum-machine pattern (spec.md §4.9 Drum Sequencer). Each
// voice's pattern and accent bits are packed into a single bitmask float
// per named param ("voiceN_pattern", "voiceN_accent") since the control
// surface only carries named real-valued parameters (spec.md §6) — one
// named param per voice instead of one per cell.
type drumSequencer struct {
	params         *ParamSet
	clock          stepClock
	current        int
	gateOn         [drumSeqVoices]bool
	gateSamples    [drumSeqVoices]int
	gateLenSamples int
	heldAccent     [drumSeqVoices]Sample
}

func newDrumSequencer(ctx ProcessContext) *drumSequencer {
	params := map[string]Sample{
		"enabled": 1, "tempo": 120, "rate": 7, "step_count": 16, "gate_length": 30,
	}
	for v := 0; v < drumSeqVoices; v++ {
		params[drumPatternName(v)] = 0
		params[drumAccentName(v)] = 0
	}
	d := &drumSequencer{params: NewParamSet(params)}
	d.clock.configure(ctx.sampleRateOrDefault(), 120, 7)
	return d
}

func drumPatternName(v int) string { return "voice" + itoa2(v) + "_pattern" }
func drumAccentName(v int) string  { return "voice" + itoa2(v) + "_accent" }

// bitSet reports whether bit i of a bitmask encoded as a float is set.
func bitSet(mask Sample, i int) bool {
	return (uint32(mask) & (1 << uint(i))) != 0
}

func (d *drumSequencer) Reset(sampleRate float64) {
	d.clock.configure(sampleRate, 120, 7)
	d.clock.phase = 0
	d.current = 0
	for v := 0; v < drumSeqVoices; v++ {
		d.gateOn[v] = false
		d.gateSamples[v] = 0
		d.heldAccent[v] = 0
	}
}

func (d *drumSequencer) Params() *ParamSet { return d.params }

// CurrentStep reports the step the pattern is currently sitting on.
func (d *drumSequencer) CurrentStep() int { return d.current }

func (d *drumSequencer) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	enabledP := d.params.Get("enabled", frames)
	tempoP := d.params.Get("tempo", frames)
	rateP := d.params.Get("rate", frames)
	countP := d.params.Get("step_count", frames)
	gateLenP := d.params.Get("gate_length", frames)
	clockIn, resetIn := ins[0].Chan(0), ins[1].Chan(0)

	trigOut := make([][]Sample, drumSeqVoices)
	accentOut := make([][]Sample, drumSeqVoices)
	for v := 0; v < drumSeqVoices; v++ {
		trigOut[v] = outs[v*2].Chan(0)
		accentOut[v] = outs[v*2+1].Chan(0)
	}

	enabled := sampleAt(enabledP, 0, 1) > 0.5
	stepCount := int(clampf(sampleAt(countP, 0, 16), 1, drumSeqMaxSteps))
	if !enabled {
		for v := 0; v < drumSeqVoices; v++ {
			for i := 0; i < frames; i++ {
				trigOut[v][i] = 0
				accentOut[v][i] = 0
			}
			d.gateOn[v] = false
		}
		return
	}

	tempo := clampf(sampleAt(tempoP, 0, 120), 40, 300)
	rate := sampleAt(rateP, 0, 7)
	gateLenPct := clampf(sampleAt(gateLenP, 0, 30), 5, 100)
	d.clock.configure(ctx.sampleRateOrDefault(), tempo, rate)
	gateLenSamples := int(d.clock.samplesPerStep * float64(gateLenPct) / 100)
	if gateLenSamples < 1 {
		gateLenSamples = 1
	}
	d.gateLenSamples = gateLenSamples

	var patternMask, accentMask [drumSeqVoices]Sample
	for v := 0; v < drumSeqVoices; v++ {
		patternMask[v] = d.params.Scalar(drumPatternName(v), 0)
		accentMask[v] = d.params.Scalar(drumAccentName(v), 0)
	}

	for i := 0; i < frames; i++ {
		shouldStep, didReset := d.clock.advance(clockIn, resetIn, i)
		if didReset {
			d.current = 0
		}
		if shouldStep {
			step := d.current % stepCount
			for v := 0; v < drumSeqVoices; v++ {
				if bitSet(patternMask[v], step) {
					d.gateOn[v] = true
					d.gateSamples[v] = 0
					if bitSet(accentMask[v], step) {
						d.heldAccent[v] = 1
					} else {
						d.heldAccent[v] = 0.7
					}
				}
			}
			d.current = (d.current + 1) % stepCount
		}

		for v := 0; v < drumSeqVoices; v++ {
			if d.gateOn[v] {
				d.gateSamples[v]++
				if d.gateSamples[v] >= d.gateLenSamples {
					d.gateOn[v] = false
				}
				trigOut[v][i] = 1
				accentOut[v][i] = d.heldAccent[v]
			} else {
				trigOut[v][i] = 0
				accentOut[v][i] = 0
			}
		}
	}
}
