package fluxgraph

// stepReporter is implemented by the step-table sequencer family
// (Euclidean, StepSequencer, DrumSequencer) so the host can poll the
// current step without a dedicated tap (spec.md §4.2 get_sequencer_step).
type stepReporter interface {
	CurrentStep() int
}

// GetSequencerStep returns the current step of a step-table sequencer,
// or -1 if moduleID does not name one.
func (e *Engine) GetSequencerStep(moduleID string) int {
	inst, ok := e.byID[moduleID]
	if !ok {
		return -1
	}
	reporter, ok := inst.mod.(stepReporter)
	if !ok {
		return -1
	}
	return reporter.CurrentStep()
}

// midiEventLoadable is implemented by the MIDI-file sequencer.
type midiEventLoadable interface {
	LoadEvents(events []MidiEvent)
	Seek(tick int64)
	TotalTicks() int64
	DrainEvents() []MidiEvent
}

// LoadMidiEvents installs a pre-parsed event slice on a MIDI-file
// sequencer module; unknown module or wrong type is a silent no-op.
func (e *Engine) LoadMidiEvents(moduleID string, events []MidiEvent) {
	if inst, ok := e.byID[moduleID]; ok {
		if m, ok := inst.mod.(midiEventLoadable); ok {
			m.LoadEvents(events)
		}
	}
}

// SeekMidiSequencer jumps a MIDI-file sequencer's playhead to the given
// tick, re-synchronizing its pending-event cursor.
func (e *Engine) SeekMidiSequencer(moduleID string, tick int64) {
	if inst, ok := e.byID[moduleID]; ok {
		if m, ok := inst.mod.(midiEventLoadable); ok {
			m.Seek(tick)
		}
	}
}

// GetMidiTotalTicks returns the tick of a MIDI-file sequencer's last
// loaded event, or 0 if no module or no events are loaded.
func (e *Engine) GetMidiTotalTicks(moduleID string) int64 {
	if inst, ok := e.byID[moduleID]; ok {
		if m, ok := inst.mod.(midiEventLoadable); ok {
			return m.TotalTicks()
		}
	}
	return 0
}

// DrainMidiEvents returns and clears the events a MIDI-file sequencer
// has fired since the last drain.
func (e *Engine) DrainMidiEvents(moduleID string) []MidiEvent {
	if inst, ok := e.byID[moduleID]; ok {
		if m, ok := inst.mod.(midiEventLoadable); ok {
			return m.DrainEvents()
		}
	}
	return nil
}

// sidFrameLoadable is implemented by the SID player.
type sidFrameLoadable interface {
	LoadFrames(frames []SidFrame)
}

// LoadSidFrames installs a pre-decoded per-frame voice slice on a SID
// player module; unknown module or wrong type is a silent no-op.
func (e *Engine) LoadSidFrames(moduleID string, frames []SidFrame) {
	if inst, ok := e.byID[moduleID]; ok {
		if s, ok := inst.mod.(sidFrameLoadable); ok {
			s.LoadFrames(frames)
		}
	}
}

// ayFrameLoadable is implemented by the YM/AY player.
type ayFrameLoadable interface {
	LoadFrames(frames []AyFrame)
}

// LoadAyFrames installs a pre-decoded per-frame voice slice on a YM/AY
// player module; unknown module or wrong type is a silent no-op.
func (e *Engine) LoadAyFrames(moduleID string, frames []AyFrame) {
	if inst, ok := e.byID[moduleID]; ok {
		if y, ok := inst.mod.(ayFrameLoadable); ok {
			y.LoadFrames(frames)
		}
	}
}

// GetSidVoiceStates reads back the SID player's most recently rendered
// per-voice CV/level/waveform outputs from its nine output ports (three
// CV, three level, three waveform) through the engine's existing output
// buffers, converting each voice's 1V/oct CV back to Hz.
func (e *Engine) GetSidVoiceStates(moduleID string) []SidVoiceFrame {
	inst, ok := e.byID[moduleID]
	if !ok || len(inst.outBufs) < 9 {
		return nil
	}
	states := make([]SidVoiceFrame, sidVoices)
	for v := 0; v < sidVoices; v++ {
		states[v] = SidVoiceFrame{
			FreqHz:   vOctToSidFreq(lastSample(inst.outBufs[v])),
			Volume:   lastSample(inst.outBufs[v+3]),
			Waveform: int(lastSample(inst.outBufs[v+6])),
		}
	}
	return states
}

// GetAyVoiceStates is the YM/AY player's counterpart to GetSidVoiceStates.
func (e *Engine) GetAyVoiceStates(moduleID string) []AyVoiceFrame {
	inst, ok := e.byID[moduleID]
	if !ok || len(inst.outBufs) < 9 {
		return nil
	}
	states := make([]AyVoiceFrame, ymVoices)
	for v := 0; v < ymVoices; v++ {
		states[v] = AyVoiceFrame{
			FreqHz:      vOctToSidFreq(lastSample(inst.outBufs[v])),
			Volume:      lastSample(inst.outBufs[v+3]),
			NoiseEnable: lastSample(inst.outBufs[v+6]) > 0.5,
		}
	}
	return states
}

// lastSample returns the final sample of a mono buffer's first channel,
// or 0 for an empty buffer.
func lastSample(buf *Buffer) Sample {
	if buf == nil || buf.Frames() == 0 {
		return 0
	}
	ch := buf.Chan(0)
	return ch[len(ch)-1]
}
