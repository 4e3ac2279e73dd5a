package fluxgraph

import "math"

func init() {
	registerModule("Delay", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newDelayFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 2}},
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

const delayMaxMs = 2000

// delayFx is a stereo delay line with damped feedback and an optional
// ping-pong mode that crosses the feedback path between channels
// (spec.md §4.8 Delay).
type delayFx struct {
	params               *ParamSet
	sampleRate           float64
	bufL, bufR           []Sample
	writeIndex           int
	dampStateL, dampStateR Sample
}

func newDelayFx(ctx ProcessContext) *delayFx {
	d := &delayFx{
		params: NewParamSet(map[string]Sample{
			"time_ms": 360, "feedback": 0.35, "mix": 0.25, "tone": 0.55, "ping_pong": 0,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
	d.allocate()
	return d
}

func (d *delayFx) allocate() {
	maxSamples := int(math.Ceil(delayMaxMs/1000*d.sampleRate)) + 2
	if len(d.bufL) != maxSamples {
		d.bufL = make([]Sample, maxSamples)
		d.bufR = make([]Sample, maxSamples)
		d.writeIndex = 0
		d.dampStateL, d.dampStateR = 0, 0
	}
}

func (d *delayFx) Reset(sampleRate float64) {
	d.sampleRate = sampleRate
	d.allocate()
}

func (d *delayFx) Params() *ParamSet { return d.params }

func readDelayLine(buf []Sample, writeIndex int, delaySamples Sample) Sample {
	size := len(buf)
	readPos := float64(writeIndex) - float64(delaySamples)
	baseIndex := int(math.Floor(readPos))
	indexA := baseIndex % size
	if indexA < 0 {
		indexA += size
	}
	indexB := (indexA + 1) % size
	frac := Sample(readPos - math.Floor(readPos))
	a, b := buf[indexA], buf[indexB]
	return a + (b-a)*frac
}

func (d *delayFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	timeP := d.params.Get("time_ms", frames)
	fbP := d.params.Get("feedback", frames)
	mixP := d.params.Get("mix", frames)
	toneP := d.params.Get("tone", frames)
	pingP := d.params.Get("ping_pong", frames)
	inL, inR := ins[0].Chan(0), ins[0].Chan(1)
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)

	bufferSize := len(d.bufL)
	maxDelay := Sample(bufferSize) - 2
	if maxDelay < 1 {
		maxDelay = 1
	}

	for i := 0; i < frames; i++ {
		timeMs := sampleAt(timeP, i, 360)
		feedback := clampf(sampleAt(fbP, i, 0.35), 0, 0.9)
		mix := clampf(sampleAt(mixP, i, 0.25), 0, 1)
		tone := clampf(sampleAt(toneP, i, 0.55), 0, 1)
		ping := sampleAt(pingP, i, 0) >= 0.5

		delaySamples := clampf(timeMs*Sample(d.sampleRate)/1000, 1, maxDelay)
		sampleL := inL[i]
		sampleR := sampleL
		if len(inR) > 0 {
			sampleR = inR[i]
		}

		delayedL := readDelayLine(d.bufL, d.writeIndex, delaySamples)
		delayedR := readDelayLine(d.bufR, d.writeIndex, delaySamples)

		fbSourceL, fbSourceR := delayedL, delayedR
		if ping {
			fbSourceL, fbSourceR = delayedR, delayedL
		}
		damp := 0.05 + (1-tone)*0.9

		d.dampStateL = fbSourceL*feedback*(1-damp) + d.dampStateL*damp
		d.dampStateR = fbSourceR*feedback*(1-damp) + d.dampStateR*damp

		d.bufL[d.writeIndex] = sampleL + d.dampStateL
		d.bufR[d.writeIndex] = sampleR + d.dampStateR

		dry := 1 - mix
		outL[i] = sampleL*dry + delayedL*mix
		outR[i] = sampleR*dry + delayedR*mix

		d.writeIndex = (d.writeIndex + 1) % bufferSize
	}
}
