package fluxgraph

import "math"

func init() {
	registerModule("Vcf", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newVCF(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}, {Channels: 1}, {Channels: 1}}, // audio, mod, env, key
		OutputPorts: []PortSpec{{Channels: 1}},
	})
	registerModule("Hpf", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newHPF(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// svfState is the trapezoidal-integrator two-memory state shared by each
// stage of the state-variable filter (spec.md §4.4).
type svfState struct {
	ic1, ic2 Sample
}

// svfStage runs one trapezoidal SVF update and returns lowpass, bandpass,
// and highpass outputs simultaneously; notch is hp+lp at the call site.
func svfStage(input, g, k Sample, s *svfState) (lp, bp, hp Sample) {
	a1 := 1 / (1 + g*(g+k))
	a2 := g * a1
	a3 := g * a2
	v3 := input - s.ic2
	v1 := a1*s.ic1 + a2*v3
	v2 := s.ic2 + a2*s.ic1 + a3*v3
	s.ic1 = 2*v1 - s.ic1
	s.ic2 = 2*v2 - s.ic2
	lp = v2
	bp = v1
	hp = input - k*v1 - v2
	return
}

func selectSVFMode(lp, bp, hp, mode Sample) Sample {
	switch {
	case mode < 0.5:
		return lp
	case mode < 1.5:
		return hp
	case mode < 2.5:
		return bp
	default:
		return hp + lp
	}
}

// ladderState holds the four cascaded one-pole stages of the Moog-style
// ladder filter.
type ladderState struct {
	s1, s2, s3, s4 Sample
}

// vcf implements both filter models behind one module, selected per-block
// by the "model" parameter (spec.md §4.4).
type vcf struct {
	params             *ParamSet
	sampleRate         float64
	stageA, stageB     svfState
	ladder             ladderState
	cutoffSmooth       Sample
	resSmooth          Sample
	hpfPreset          bool
}

func newVCF(ctx ProcessContext) *vcf {
	return newVCFPreset(ctx, false)
}

func newHPF(ctx ProcessContext) *vcf {
	return newVCFPreset(ctx, true)
}

func newVCFPreset(ctx ProcessContext, hpf bool) *vcf {
	v := &vcf{
		sampleRate:   ctx.sampleRateOrDefault(),
		cutoffSmooth: 800,
		resSmooth:    0.4,
		hpfPreset:    hpf,
	}
	defaults := map[string]Sample{
		"cutoff":     800,
		"resonance":  0.4,
		"drive":      0.2,
		"env_amount": 0,
		"mod_amount": 0,
		"key_track":  0,
		"model":      0,
		"mode":       0,
		"slope":      1,
	}
	if hpf {
		// HPF is a thin preset: fixed highpass mode, fixed 12dB slope, SVF
		// model only (spec.md §4.4). The params still exist so the generic
		// control surface works, but mode/model/slope are pinned.
		defaults["mode"] = 1
		defaults["model"] = 0
		defaults["slope"] = 0
	}
	v.params = NewParamSet(defaults)
	return v
}

func (v *vcf) Reset(sampleRate float64) {
	v.sampleRate = sampleRate
	v.stageA = svfState{}
	v.stageB = svfState{}
	v.ladder = ladderState{}
}

func (v *vcf) Params() *ParamSet { return v.params }

func (v *vcf) processSVF(input, cutoff, resonance, mode, slope, drive Sample) Sample {
	clampedCutoff := Sample(math.Min(float64(cutoff), v.sampleRate*0.45))
	g := Sample(math.Tan(math.Pi * float64(clampedCutoff) / v.sampleRate))
	slope24 := slope >= 0.5
	resScale := Sample(1.0)
	if slope24 {
		resScale = 0.38
	}
	resonanceScaled := resonance * resScale
	qBase := Sample(8.0)
	if slope24 {
		qBase = 3.8
	}
	q := 0.7 + resonanceScaled*qBase
	k := 1 / q

	driveGain := Sample(1.0)
	if slope24 {
		driveGain += drive
	} else {
		driveGain += drive * 2.6
	}
	shaped := softSaturate(input * driveGain)

	lp1, bp1, hp1 := svfStage(shaped, g, k, &v.stageA)
	if slope24 {
		stage1Out := softSaturate(lp1 * (1 + drive*0.2))
		lp2, bp2, hp2 := svfStage(stage1Out, g, k, &v.stageB)
		out := selectSVFMode(lp2, bp2, hp2, mode)
		resComp := 1 / (1 + resonanceScaled*1.5)
		return softSaturate(out * 0.52 * resComp)
	}
	out := selectSVFMode(lp1, bp1, hp1, mode)
	resComp := 1 / (1 + resonanceScaled*0.6)
	return softSaturate(out * 0.85 * resComp)
}

func (v *vcf) processLadder(input, cutoff, resonance, slope, drive Sample) Sample {
	f := Sample(math.Min(float64(cutoff)/v.sampleRate, 0.49))
	p := f * (1.8 - 0.8*f)
	t1 := (1 - p) * 1.386249
	t2 := 12 + t1*t1
	r := resonance * (t2 + 6*t1) / (t2 - 6*t1)

	driveGain := 1 + drive*1.7
	inputDrive := softSaturate(input*driveGain - r*v.ladder.s4)
	v.ladder.s1 = inputDrive*p + v.ladder.s1*(1-p)
	v.ladder.s2 = v.ladder.s1*p + v.ladder.s2*(1-p)
	v.ladder.s3 = v.ladder.s2*p + v.ladder.s3*(1-p)
	v.ladder.s4 = v.ladder.s3*p + v.ladder.s4*(1-p)

	var output Sample
	if slope >= 0.5 {
		output = v.ladder.s4
	} else {
		output = v.ladder.s2
	}
	resComp := 1 / (1 + resonance*0.85)
	return softSaturate(output * 0.9 * resComp)
}

func (v *vcf) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	audio := ins[0].Chan(0)
	var modIn, env, key []Sample
	if len(ins) > 3 {
		modIn, env, key = ins[1].Chan(0), ins[2].Chan(0), ins[3].Chan(0)
	}

	cutoffP := v.params.Get("cutoff", frames)
	resP := v.params.Get("resonance", frames)
	driveP := v.params.Get("drive", frames)
	envAmtP := v.params.Get("env_amount", frames)
	modAmtP := v.params.Get("mod_amount", frames)
	keyTrackP := v.params.Get("key_track", frames)
	mode := v.params.Scalar("mode", 0)
	slope := v.params.Scalar("slope", 1)
	model := v.params.Scalar("model", 0)
	if v.hpfPreset {
		mode, slope, model = 1, 0, 0
	}

	smoothCoeff := smoothingCoeff(0.01, v.sampleRate)
	out := outs[0].Chan(0)

	useLadder := model >= 0.5 && mode < 0.5

	for i := 0; i < frames; i++ {
		in := inputAt(audio, i)
		baseCutoff := sampleAt(cutoffP, i, 800)
		baseRes := sampleAt(resP, i, 0.4)
		drive := sampleAt(driveP, i, 0.2)
		envAmt := sampleAt(envAmtP, i, 0)
		modAmt := sampleAt(modAmtP, i, 0)
		keyTrack := sampleAt(keyTrackP, i, 0)
		m := inputAt(modIn, i)
		e := inputAt(env, i)
		kv := inputAt(key, i)

		cutoff := baseCutoff * Sample(math.Pow(2, float64(kv*keyTrack+m*modAmt+e*envAmt)))
		v.cutoffSmooth = onePole(v.cutoffSmooth, cutoff, smoothCoeff)
		v.resSmooth = onePole(v.resSmooth, baseRes, smoothCoeff)

		cutoffHz := clampf(v.cutoffSmooth, 20, 20000)
		resonance := clampf(v.resSmooth, 0, 1)

		if useLadder {
			out[i] = v.processLadder(in, cutoffHz, resonance, slope, drive)
		} else {
			out[i] = v.processSVF(in, cutoffHz, resonance, mode, slope, drive)
		}
	}
}

// softSaturate is the tanh-shaped output saturation stage the VCF applies
// after each filter topology (spec.md §4.4).
func softSaturate(x Sample) Sample {
	return Sample(math.Tanh(float64(x)))
}
