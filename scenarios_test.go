package fluxgraph

import (
	"math"
	"testing"
)

// TestVCOSine_MatchesPhaseRecurrence checks the sine branch of the main VCO
// against a reference built from the same phase-accumulate-then-sample
// recurrence the module uses (spec.md §8's sine scenario: base_freq 440 at
// 48kHz), rather than re-deriving the scenario's own simplified formula,
// which drops a factor of two.
func TestVCOSine_MatchesPhaseRecurrence(t *testing.T) {
	ctx := ProcessContext{SampleRate: 48000, BlockSize: 480}
	v := newVCO(ctx)
	v.params.Set("base_freq", 440)
	v.params.Set("waveform", 0)

	frames := 480
	ins := make([]*Buffer, 6)
	for i := range ins {
		ins[i] = NewBuffer(1, frames)
	}
	outs := []*Buffer{NewBuffer(1, frames), NewBuffer(1, frames), NewBuffer(1, frames)}
	v.ProcessBlock(ctx, ins, outs)

	out := outs[0].Chan(0)
	phase := 0.0
	for i := 0; i < frames; i++ {
		phase += 440.0 / 48000.0
		if phase >= 1 {
			phase -= math.Floor(phase)
		}
		want := Sample(math.Sin(2 * math.Pi * phase))
		if math.Abs(float64(out[i]-want)) > 2e-4 {
			t.Fatalf("frame %d: got %v, want %v", i, out[i], want)
		}
	}
}

// TestVCOSine_Statistics checks the sine VCO against the same RMS/peak/
// zero-crossing statistics the teacher's golden tests use, independent of
// the exact sample-indexing convention.
func TestVCOSine_Statistics(t *testing.T) {
	ctx := ProcessContext{SampleRate: 48000, BlockSize: 4410}
	v := newVCO(ctx)
	v.params.Set("base_freq", 440)
	v.params.Set("waveform", 0)

	frames := 4410
	ins := make([]*Buffer, 6)
	for i := range ins {
		ins[i] = NewBuffer(1, frames)
	}
	outs := []*Buffer{NewBuffer(1, frames), NewBuffer(1, frames), NewBuffer(1, frames)}
	v.ProcessBlock(ctx, ins, outs)

	out := outs[0].Chan(0)
	var sumSq float64
	var peak float64
	crossings := 0
	for i, s := range out {
		f := float64(s)
		sumSq += f * f
		if math.Abs(f) > peak {
			peak = math.Abs(f)
		}
		if i > 0 && (out[i-1] >= 0) != (s >= 0) {
			crossings++
		}
	}
	rms := math.Sqrt(sumSq / float64(frames))
	if math.Abs(rms-0.707) > 0.05 {
		t.Errorf("RMS = %f, want ~0.707", rms)
	}
	if peak < 0.95 || peak > 1.05 {
		t.Errorf("peak = %f, want ~1.0", peak)
	}
	if crossings < 78 || crossings > 98 {
		t.Errorf("zero crossings = %d, want ~80", crossings)
	}
}

// TestKick909_TriggerEnvelope verifies the 909 kick's amplitude envelope
// shape: a trigger pulse produces a peak near 1.0 that decays to silence
// by the configured decay time (spec.md §8's Kick909 scenario: tune=55,
// attack=0, decay=0.5, drive=0).
func TestKick909_TriggerEnvelope(t *testing.T) {
	ctx := ProcessContext{SampleRate: 48000}
	k := newKick909(ctx)
	k.params.Set("tune", 55)
	k.params.Set("attack", 0)
	k.params.Set("decay", 0.5)
	k.params.Set("drive", 0)

	const totalFrames = 24200
	trig := NewBuffer(1, totalFrames)
	trig.Chan(0)[0] = 1
	accent := NewBuffer(1, totalFrames)
	out := NewBuffer(1, totalFrames)
	k.ProcessBlock(ctx, []*Buffer{trig, accent}, []*Buffer{out})

	samples := out.Chan(0)

	peak200ms := Sample(0)
	for i := 0; i < 9600; i++ {
		if abs32(samples[i]) > peak200ms {
			peak200ms = abs32(samples[i])
		}
	}
	if peak200ms < 0.6 || peak200ms > 1.0 {
		t.Errorf("peak over first 200ms = %v, want within [0.6, 1.0]", peak200ms)
	}

	mag500ms := abs32(samples[24000])
	if mag500ms > 0.01 {
		t.Errorf("magnitude at 500ms = %v, want < 0.01", mag500ms)
	}
}

// TestEuclidean_8_3_0 checks the canonical Euclidean(8,3,0) rhythm against
// spec.md §8's literal pattern [1,0,0,1,0,0,1,0].
func TestEuclidean_8_3_0(t *testing.T) {
	ctx := ProcessContext{SampleRate: 48000}
	e := newEuclidean(ctx)
	e.computePattern(8, 3, 0)

	want := [8]bool{true, false, false, true, false, false, true, false}
	for i := 0; i < 8; i++ {
		if e.pattern[i] != want[i] {
			t.Errorf("step %d = %v, want %v (full pattern %v)", i, e.pattern[i], want[i], e.pattern[:8])
			break
		}
	}
}

func TestEuclidean_BoundaryPulseCounts(t *testing.T) {
	ctx := ProcessContext{SampleRate: 48000}
	e := newEuclidean(ctx)

	e.computePattern(8, 0, 0)
	for i := 0; i < 8; i++ {
		if e.pattern[i] {
			t.Errorf("K=0: step %d set, want all steps clear", i)
		}
	}

	e.computePattern(8, 8, 0)
	for i := 0; i < 8; i++ {
		if !e.pattern[i] {
			t.Errorf("K=S: step %d clear, want all steps set", i)
		}
	}
}

// TestMasterClock_BarEveryFourQuarterPulses checks a 120 BPM clock at
// rate index 2 (quarter-note divisor) emits a clock pulse every 24000
// samples and a bar pulse every 4th clock pulse (spec.md §8's clock
// scenario).
func TestMasterClock_BarEveryFourQuarterPulses(t *testing.T) {
	ctx := ProcessContext{SampleRate: 48000}
	m := newMasterClock(ctx)
	m.params.Set("running", 1)
	m.params.Set("tempo", 120)
	m.params.Set("rate", 2)

	const frames = 96100
	ins := []*Buffer{NewBuffer(1, frames), NewBuffer(1, frames), NewBuffer(1, frames)}
	outs := []*Buffer{NewBuffer(1, frames), NewBuffer(1, frames), NewBuffer(1, frames), NewBuffer(1, frames)}
	m.ProcessBlock(ctx, ins, outs)

	clockOut, barOut := outs[0].Chan(0), outs[3].Chan(0)

	var clockPulses, barPulses []int
	prevClock, prevBar := Sample(0), Sample(0)
	for i := 0; i < frames; i++ {
		if clockOut[i] > 0.5 && prevClock <= 0.5 {
			clockPulses = append(clockPulses, i)
		}
		if barOut[i] > 0.5 && prevBar <= 0.5 {
			barPulses = append(barPulses, i)
		}
		prevClock, prevBar = clockOut[i], barOut[i]
	}

	if len(clockPulses) < 4 {
		t.Fatalf("got %d clock pulses, want at least 4", len(clockPulses))
	}
	for i := 1; i < 4; i++ {
		gap := clockPulses[i] - clockPulses[i-1]
		if gap != 24000 {
			t.Errorf("clock pulse gap %d = %d samples, want 24000", i, gap)
		}
	}

	if len(barPulses) < 1 {
		t.Fatalf("got %d bar pulses, want at least 1", len(barPulses))
	}
	if barPulses[0] != clockPulses[3] {
		t.Errorf("first bar pulse at sample %d, want it to align with the 4th clock pulse at %d", barPulses[0], clockPulses[3])
	}
}

// TestDelay_ImpulseResponse checks a 10ms delay with zero feedback and full
// wet mix reproduces an input impulse exactly time_ms later (spec.md §8's
// delay scenario).
func TestDelay_ImpulseResponse(t *testing.T) {
	ctx := ProcessContext{SampleRate: 48000}
	d := newDelayFx(ctx)
	d.params.Set("time_ms", 10)
	d.params.Set("feedback", 0)
	d.params.Set("mix", 1)
	d.params.Set("tone", 1)
	d.params.Set("ping_pong", 0)

	const frames = 1000
	in := NewBuffer(2, frames)
	in.Chan(0)[0] = 1
	in.Chan(1)[0] = 1
	out := NewBuffer(2, frames)
	d.ProcessBlock(ctx, []*Buffer{in}, []*Buffer{out})

	outL, outR := out.Chan(0), out.Chan(1)
	found := -1
	for i := 470; i < 490; i++ {
		if outL[i] > 0.9 {
			found = i
			break
		}
	}
	if found < 0 {
		t.Fatalf("no impulse found near sample 480 in left channel")
	}
	if math.Abs(float64(found-480)) > 1 {
		t.Errorf("impulse at sample %d, want within 1 sample of 480", found)
	}
	if math.Abs(float64(outR[found]-outL[found])) > 1e-5 {
		t.Errorf("left/right delayed impulse mismatch: %v vs %v", outL[found], outR[found])
	}
}

// TestAdsr_GateCycleReturnsToZero checks a full attack/decay/sustain/
// release cycle: the envelope sits near the sustain level at gate-off and
// settles back at exactly 0 after release (spec.md §4.6 round-trip law).
func TestAdsr_GateCycleReturnsToZero(t *testing.T) {
	ctx := ProcessContext{SampleRate: 48000}
	a := newAdsr(ctx)
	a.params.Set("attack", 0.01)
	a.params.Set("decay", 0.01)
	a.params.Set("sustain", 0.5)
	a.params.Set("release", 0.02)

	const frames = 48000
	gate := NewBuffer(1, frames)
	for i := 0; i < 10000; i++ {
		gate.Chan(0)[i] = 1
	}
	out := NewBuffer(1, frames)
	a.ProcessBlock(ctx, []*Buffer{gate}, []*Buffer{out})

	env := out.Chan(0)
	if env[9999] < 0.4 {
		t.Errorf("envelope at gate-off = %v, want close to sustain level 0.5", env[9999])
	}
	if env[frames-1] != 0 {
		t.Errorf("envelope at end of render = %v, want exactly 0 long after release", env[frames-1])
	}
}
