package fluxgraph

// stepClock drives per-step advancement for the sequencer family that
// shares spec.md §4.9's "clocked advance + reset + per-step output"
// contract (Arpeggiator, Step, Drum, Mario): internal tempo/rate timing
// when no external clock is patched in, external clock rising edges
// otherwise, plus a reset-to-step-zero input.
type stepClock struct {
	phase          float64
	samplesPerStep float64
	prevClock      Sample
	prevReset      Sample
}

func (c *stepClock) configure(sampleRate float64, tempo, rate Sample) {
	rateMult := euclideanRateMult(int(rate))
	beatsPerSecond := float64(tempo) / 60
	stepsPerSecond := beatsPerSecond * rateMult
	c.samplesPerStep = sampleRate / stepsPerSecond
}

// advance reports whether step i should fire, and whether a reset to
// step zero happened on this sample.
func (c *stepClock) advance(clockIn, resetIn []Sample, i int) (shouldStep bool, didReset bool) {
	if len(resetIn) > 0 {
		resetVal := inputAt(resetIn, i)
		if resetVal > 0.5 && c.prevReset <= 0.5 {
			didReset = true
			c.phase = 0
		}
		c.prevReset = resetVal
	}
	if len(clockIn) > 0 {
		clockVal := inputAt(clockIn, i)
		rising := clockVal > 0.5 && c.prevClock <= 0.5
		c.prevClock = clockVal
		return rising, didReset
	}
	c.phase++
	if c.phase >= c.samplesPerStep {
		c.phase -= c.samplesPerStep
		return true, didReset
	}
	return false, didReset
}

// MidiEvent is a single pre-parsed MIDI event as consumed by the
// MIDI-file sequencer; parsing a .mid file into this form is a file-I/O
// concern the host performs, outside this module's scope (spec.md §1
// Non-goals).
type MidiEvent struct {
	Tick     int64
	Note     int
	Velocity int
	On       bool
}

// SidVoiceFrame is one frame of C64 SID register-like state for a
// single voice: frequency in Hz, pulse width (0-1 of the period), and
// waveform select (0=triangle,1=saw,2=pulse,3=noise).
type SidVoiceFrame struct {
	FreqHz   Sample
	PulseW   Sample
	Waveform int
	Volume   Sample
}

// SidFrame bundles the SID's three voices for one player frame.
type SidFrame [3]SidVoiceFrame

// AyVoiceFrame is one frame of AY-3-8910/YM2149 PSG state for a single
// voice: tone frequency, volume, and whether the shared noise generator
// is mixed into this voice.
type AyVoiceFrame struct {
	FreqHz      Sample
	Volume      Sample
	NoiseEnable bool
}

// AyFrame bundles the PSG's three voices for one player frame.
type AyFrame [3]AyVoiceFrame
