package fluxgraph

import "math"

func init() {
	registerModule("Lfo", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newLfo(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}}, // rate_cv, sync
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// lfo generates a sub-audio periodic waveform (sine/triangle/saw/square) for
// modulating other module parameters, with 1V/octave rate CV and a sync
// input that resets phase on a rising edge (spec.md §4.6 LFO).
type lfo struct {
	params     *ParamSet
	sampleRate float64
	phase      Sample
	lastSync   Sample
}

func newLfo(ctx ProcessContext) *lfo {
	return &lfo{
		params: NewParamSet(map[string]Sample{
			"rate": 2, "shape": 0, "depth": 0.7, "offset": 0, "bipolar": 1,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
}

func (l *lfo) Reset(sampleRate float64) {
	l.sampleRate = sampleRate
	l.phase = 0
	l.lastSync = 0
}

func (l *lfo) Params() *ParamSet { return l.params }

func (l *lfo) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	rateP := l.params.Get("rate", frames)
	depthP := l.params.Get("depth", frames)
	offsetP := l.params.Get("offset", frames)
	rateCV, sync := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	shapeIndex := l.params.Scalar("shape", 0)
	bipolar := l.params.Scalar("bipolar", 1) >= 0.5

	for i := 0; i < frames; i++ {
		rateBase := sampleAt(rateP, i, 2)
		cv := inputAt(rateCV, i)
		syncIn := inputAt(sync, i)
		depth := sampleAt(depthP, i, 0.7)
		offset := sampleAt(offsetP, i, 0)

		if syncIn > 0.5 && l.lastSync <= 0.5 {
			l.phase = 0
		}
		l.lastSync = syncIn

		rate := rateBase * Sample(math.Pow(2, float64(cv)))
		if rate < 0 || math.IsNaN(float64(rate)) || math.IsInf(float64(rate), 0) {
			rate = 0
		}
		l.phase += rate / Sample(l.sampleRate)
		for l.phase >= 1 {
			l.phase -= Sample(math.Floor(float64(l.phase)))
		}

		var wave Sample
		switch {
		case shapeIndex < 0.5:
			wave = Sample(math.Sin(2 * math.Pi * float64(l.phase)))
		case shapeIndex < 1.5:
			wave = 2*Sample(math.Abs(2*float64(l.phase-Sample(math.Floor(float64(l.phase+0.5))))) ) - 1
		case shapeIndex < 2.5:
			wave = 2 * (l.phase - 0.5)
		case l.phase < 0.5:
			wave = 1
		default:
			wave = -1
		}

		var sample Sample
		if bipolar {
			sample = wave*depth + offset
		} else {
			sample = (wave*0.5+0.5)*depth + offset
		}
		out[i] = clampf(sample, -1, 1)
	}
}
