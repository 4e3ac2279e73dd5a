package fluxgraph

func init() {
	registerModule("Distortion", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newDistortionFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// distortionFx is a multi-mode waveshaper: soft clip (tanh-style
// rational approximation), hard clip, or foldback (spec.md §4.8
// Distortion).
type distortionFx struct {
	params *ParamSet
}

func newDistortionFx(ctx ProcessContext) *distortionFx {
	return &distortionFx{
		params: NewParamSet(map[string]Sample{
			"drive": 0.5, "tone": 0.5, "mix": 1, "mode": 0,
		}),
	}
}

func (d *distortionFx) Reset(sampleRate float64) {}

func (d *distortionFx) Params() *ParamSet { return d.params }

func foldback(x Sample) Sample {
	for x > 1 || x < -1 {
		if x > 1 {
			x = 2 - x
		}
		if x < -1 {
			x = -2 - x
		}
	}
	return x
}

func (d *distortionFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	driveP := d.params.Get("drive", frames)
	toneP := d.params.Get("tone", frames)
	mixP := d.params.Get("mix", frames)
	modeP := d.params.Get("mode", frames)
	in := ins[0].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		drive := clampf(sampleAt(driveP, i, 0.5), 0, 1)
		tone := clampf(sampleAt(toneP, i, 0.5), 0, 1)
		mix := clampf(sampleAt(mixP, i, 1), 0, 1)
		mode := sampleAt(modeP, i, 0)

		inSample := inputAt(in, i)
		gain := 1 + drive*20
		driven := inSample * gain

		var shaped Sample
		switch {
		case mode < 0.5:
			x := clampf(driven, -3, 3)
			shaped = softClip(x)
		case mode < 1.5:
			shaped = clampf(driven, -1, 1)
		default:
			shaped = foldback(driven)
		}

		outputSample := shaped*tone + shaped*(1-tone)*0.7
		dry := 1 - mix
		out[i] = inSample*dry + outputSample*mix
	}
}
