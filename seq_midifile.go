package fluxgraph

func init() {
	registerModule("MidiFileSequencer", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newMidiFileSequencer(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}, {Channels: 1}},
	})
}

// midiTicksPerQuarter matches the common General MIDI PPQ resolution;
// tick-to-sample conversion assumes events were authored against it.
const midiTicksPerQuarter = 480

// midiFileSequencer walks a pre-parsed slice of MidiEvent at a
// tempo-derived tick rate, driving a single monophonic CV/gate pair and
// keeping a drainable log of the events it has fired — the host
// performs .mid file parsing and loads the resulting slice via
// Engine.LoadMidiEvents (spec.md §1 Non-goals; §4.2 inspection surface).
type midiFileSequencer struct {
	params        *ParamSet
	events        []MidiEvent
	sampleRate    float64
	tickPhase     float64
	samplesPerTick float64
	currentTick   int64
	nextEventIdx  int
	fired         []MidiEvent
	heldCv        Sample
	gateOn        bool
	prevReset     Sample
}

func newMidiFileSequencer(ctx ProcessContext) *midiFileSequencer {
	m := &midiFileSequencer{
		params:     NewParamSet(map[string]Sample{"enabled": 1, "tempo": 120}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
	m.recomputeRate(120)
	return m
}

func (m *midiFileSequencer) recomputeRate(tempo Sample) {
	ticksPerSecond := float64(tempo) / 60 * midiTicksPerQuarter
	m.samplesPerTick = m.sampleRate / ticksPerSecond
}

func (m *midiFileSequencer) Reset(sampleRate float64) {
	m.sampleRate = sampleRate
	m.tickPhase = 0
	m.currentTick = 0
	m.nextEventIdx = 0
	m.fired = m.fired[:0]
	m.heldCv = 0
	m.gateOn = false
	m.prevReset = 0
	m.recomputeRate(m.params.Scalar("tempo", 120))
}

func (m *midiFileSequencer) Params() *ParamSet { return m.params }

// LoadEvents installs a new pre-parsed event slice, resetting playback.
func (m *midiFileSequencer) LoadEvents(events []MidiEvent) {
	m.events = events
	m.currentTick = 0
	m.tickPhase = 0
	m.nextEventIdx = 0
	m.fired = m.fired[:0]
	m.gateOn = false
}

// Seek jumps the playhead to the given tick, re-synchronizing the next
// pending event index by linear scan (event slices are expected small).
func (m *midiFileSequencer) Seek(tick int64) {
	if tick < 0 {
		tick = 0
	}
	m.currentTick = tick
	m.tickPhase = 0
	m.nextEventIdx = 0
	for m.nextEventIdx < len(m.events) && m.events[m.nextEventIdx].Tick < tick {
		m.nextEventIdx++
	}
}

// TotalTicks reports the tick of the last loaded event, or 0 if empty.
func (m *midiFileSequencer) TotalTicks() int64 {
	if len(m.events) == 0 {
		return 0
	}
	return m.events[len(m.events)-1].Tick
}

// DrainEvents returns and clears the events fired since the last drain.
func (m *midiFileSequencer) DrainEvents() []MidiEvent {
	drained := m.fired
	m.fired = nil
	return drained
}

func (m *midiFileSequencer) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	enabledP := m.params.Get("enabled", frames)
	tempoP := m.params.Get("tempo", frames)
	resetIn := ins[0].Chan(0)
	cvOut, gateOut := outs[0].Chan(0), outs[1].Chan(0)

	enabled := sampleAt(enabledP, 0, 1) > 0.5
	if !enabled || len(m.events) == 0 {
		for i := 0; i < frames; i++ {
			cvOut[i] = m.heldCv
			gateOut[i] = 0
		}
		return
	}

	m.recomputeRate(sampleAt(tempoP, 0, 120))

	for i := 0; i < frames; i++ {
		resetVal := inputAt(resetIn, i)
		if resetVal > 0.5 && m.prevReset <= 0.5 {
			m.Seek(0)
		}
		m.prevReset = resetVal

		m.tickPhase++
		for m.tickPhase >= m.samplesPerTick {
			m.tickPhase -= m.samplesPerTick
			m.currentTick++
			for m.nextEventIdx < len(m.events) && m.events[m.nextEventIdx].Tick <= m.currentTick {
				ev := m.events[m.nextEventIdx]
				m.nextEventIdx++
				m.fired = append(m.fired, ev)
				if ev.On {
					m.heldCv = Sample(ev.Note-60) / 12
					m.gateOn = true
				} else {
					m.gateOn = false
				}
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
