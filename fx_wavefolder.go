package fluxgraph

import "math"

func init() {
	registerModule("Wavefolder", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newWavefolderFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// wavefolderFx folds a signal back on itself once it crosses a
// drive-and-fold-dependent threshold, generating the dense harmonic
// stack a plain clipper can't reach (spec.md §4.8 Wavefolder).
type wavefolderFx struct {
	params *ParamSet
}

func newWavefolderFx(ctx ProcessContext) *wavefolderFx {
	return &wavefolderFx{
		params: NewParamSet(map[string]Sample{
			"drive": 0.4, "fold": 0.5, "bias": 0, "mix": 0.8,
		}),
	}
}

func (w *wavefolderFx) Reset(sampleRate float64) {}

func (w *wavefolderFx) Params() *ParamSet { return w.params }

func wavefoldValue(value, threshold Sample) Sample {
	if threshold <= 0 {
		return value
	}
	limit := Sample(math.Abs(float64(threshold)))
	if value <= limit && value >= -limit {
		return value
	}
	rangeSpan := 4 * limit
	folded := Sample(math.Mod(float64(value+limit), float64(rangeSpan)))
	if folded < 0 {
		folded += rangeSpan
	}
	if folded > 2*limit {
		folded = rangeSpan - folded
	}
	return folded - limit
}

func (w *wavefolderFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	driveP := w.params.Get("drive", frames)
	foldP := w.params.Get("fold", frames)
	biasP := w.params.Get("bias", frames)
	mixP := w.params.Get("mix", frames)
	in := ins[0].Chan(0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		drive := clampf(sampleAt(driveP, i, 0.4), 0, 1)
		fold := clampf(sampleAt(foldP, i, 0.5), 0, 1)
		bias := clampf(sampleAt(biasP, i, 0), -1, 1)
		mix := clampf(sampleAt(mixP, i, 0.8), 0, 1)

		inSample := inputAt(in, i)
		pre := inSample*(1+drive*8) + bias
		threshold := clampf(1-fold*0.85, 0.1, 1)
		folded := wavefoldValue(pre, threshold)
		shaped := softClip(folded * (1 + fold*0.5))

		dry := 1 - mix
		out[i] = inSample*dry + shaped*mix
	}
}
