package fluxgraph

import "math"

func init() {
	registerModule("TapeDelay", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newTapeDelayFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 2}},
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

const tapeDelayMaxMs = 2000

// tapeDelayFx layers slow wow and fast flutter pitch modulation and a
// saturating feedback path onto a plain delay line, after vintage tape
// echo machines (spec.md §4.8 Tape Delay).
type tapeDelayFx struct {
	params                 *ParamSet
	sampleRate             float64
	bufferL, bufferR       []Sample
	writeIndex             int
	wowPhase, flutterPhase Sample
	dampStateL, dampStateR Sample
}

func newTapeDelayFx(ctx ProcessContext) *tapeDelayFx {
	t := &tapeDelayFx{
		params: NewParamSet(map[string]Sample{
			"time_ms": 420, "feedback": 0.35, "mix": 0.35, "tone": 0.55,
			"wow": 0.2, "flutter": 0.2, "drive": 0.2,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
	t.allocate()
	return t
}

func (t *tapeDelayFx) allocate() {
	size := int(math.Ceil(tapeDelayMaxMs/1000*t.sampleRate)) + 2
	if len(t.bufferL) != size {
		t.bufferL = make([]Sample, size)
		t.bufferR = make([]Sample, size)
		t.writeIndex = 0
		t.wowPhase, t.flutterPhase = 0, 0
		t.dampStateL, t.dampStateR = 0, 0
	}
}

func (t *tapeDelayFx) Reset(sampleRate float64) {
	t.sampleRate = sampleRate
	t.allocate()
}

func (t *tapeDelayFx) Params() *ParamSet { return t.params }

func (t *tapeDelayFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	timeP := t.params.Get("time_ms", frames)
	fbP := t.params.Get("feedback", frames)
	mixP := t.params.Get("mix", frames)
	toneP := t.params.Get("tone", frames)
	wowP := t.params.Get("wow", frames)
	flutterP := t.params.Get("flutter", frames)
	driveP := t.params.Get("drive", frames)
	inL, inR := ins[0].Chan(0), ins[0].Chan(1)
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)

	bufferSize := len(t.bufferL)
	tau := Sample(2 * math.Pi)
	maxDelay := Sample(bufferSize) - 2
	if maxDelay < 1 {
		maxDelay = 1
	}

	for i := 0; i < frames; i++ {
		timeMs := clampf(sampleAt(timeP, i, 420), 20, 2000)
		feedback := clampf(sampleAt(fbP, i, 0.35), 0, 0.9)
		mix := clampf(sampleAt(mixP, i, 0.35), 0, 1)
		tone := clampf(sampleAt(toneP, i, 0.55), 0, 1)
		wow := clampf(sampleAt(wowP, i, 0.2), 0, 1)
		flutter := clampf(sampleAt(flutterP, i, 0.2), 0, 1)
		drive := clampf(sampleAt(driveP, i, 0.2), 0, 1)

		wowDepth := wow * 6
		flutterDepth := flutter * 2
		wowRate := Sample(0.25)
		flutterRate := Sample(6)
		modMs := wowDepth*Sample(math.Sin(float64(t.wowPhase))) + flutterDepth*Sample(math.Sin(float64(t.flutterPhase)))

		delaySamples := clampf(clampf(timeMs+modMs, 5, 2000)*Sample(t.sampleRate)/1000, 1, maxDelay)

		sampleL := inputAt(inL, i)
		sampleR := sampleL
		if len(inR) > 0 {
			sampleR = inputAt(inR, i)
		}

		delayedL := readDelayLine(t.bufferL, t.writeIndex, delaySamples)
		delayedR := readDelayLine(t.bufferR, t.writeIndex, delaySamples)

		damp := 0.05 + (1-tone)*0.9
		driveGain := 1 + drive*6
		fbL := softClip((sampleL + delayedL*feedback) * driveGain)
		fbR := softClip((sampleR + delayedR*feedback) * driveGain)
		t.dampStateL = fbL*(1-damp) + t.dampStateL*damp
		t.dampStateR = fbR*(1-damp) + t.dampStateR*damp

		t.bufferL[t.writeIndex] = t.dampStateL
		t.bufferR[t.writeIndex] = t.dampStateR

		dry := 1 - mix
		outL[i] = sampleL*dry + delayedL*mix
		outR[i] = sampleR*dry + delayedR*mix

		t.writeIndex = (t.writeIndex + 1) % bufferSize
		t.wowPhase += tau * wowRate / Sample(t.sampleRate)
		if t.wowPhase >= tau {
			t.wowPhase -= tau
		}
		t.flutterPhase += tau * flutterRate / Sample(t.sampleRate)
		if t.flutterPhase >= tau {
			t.flutterPhase -= tau
		}
	}
}
