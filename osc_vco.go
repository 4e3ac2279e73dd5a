package fluxgraph

import "math"

func init() {
	registerModule("Oscillator", moduleFactory{
		New: func(ctx ProcessContext) Module { return newVCO(ctx) },
		InputPorts: []PortSpec{
			{Channels: 1}, // pitch CV
			{Channels: 1}, // linear FM
			{Channels: 1}, // audio-rate FM
			{Channels: 1}, // exponential FM
			{Channels: 1}, // PWM mod
			{Channels: 1}, // hard sync
		},
		OutputPorts: []PortSpec{
			{Channels: 1}, // main
			{Channels: 1}, // sub-oscillator
			{Channels: 1}, // sync pulse out
		},
	})
}

const vcoMaxVoices = 4

// vco is the main oscillator: up to 4 unison voices, 4 waveforms with
// polyBLEP anti-aliasing, hard sync, sub-oscillator, and linear/exponential
// FM (spec.md §4.5 VCO).
type vco struct {
	params     *ParamSet
	sampleRate float64

	lastSync    Sample
	pwmSmooth   Sample
	phases      [vcoMaxVoices]Sample
	subPhases   [vcoMaxVoices]Sample
	triStates   [vcoMaxVoices]Sample
	voiceCount  int
	voiceOffset [vcoMaxVoices]Sample
}

func newVCO(ctx ProcessContext) *vco {
	v := &vco{
		sampleRate: ctx.sampleRateOrDefault(),
		pwmSmooth:  0.5,
		voiceCount: 1,
	}
	for i := range v.phases {
		v.phases[i] = Sample(i) / vcoMaxVoices
		v.subPhases[i] = v.phases[i]
	}
	v.updateVoiceOffsets(1)
	v.params = NewParamSet(map[string]Sample{
		"base_freq":    220,
		"waveform":     2,
		"pwm":          0.5,
		"fm_lin_depth": 0,
		"fm_exp_depth": 0,
		"unison":       1,
		"detune":       0,
		"sub_mix":      0,
		"sub_oct":      1,
	})
	return v
}

func (v *vco) Reset(sampleRate float64) {
	v.sampleRate = sampleRate
	v.phases = [vcoMaxVoices]Sample{}
	v.subPhases = [vcoMaxVoices]Sample{}
	v.triStates = [vcoMaxVoices]Sample{}
	for i := range v.phases {
		v.phases[i] = Sample(i) / vcoMaxVoices
		v.subPhases[i] = v.phases[i]
	}
}

func (v *vco) Params() *ParamSet { return v.params }

func (v *vco) updateVoiceOffsets(voices Sample) {
	count := int(clampf(Sample(math.Round(float64(voices))), 1, vcoMaxVoices))
	v.voiceCount = count
	if count == 1 {
		v.voiceOffset[0] = 0
		return
	}
	step := Sample(2.0) / Sample(count-1)
	for i := 0; i < count; i++ {
		v.voiceOffset[i] = -1 + step*Sample(i)
	}
}

func (v *vco) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	pitchIn, fmLinIn, fmAudioIn, fmExpIn, pwmIn, syncIn :=
		ins[0].Chan(0), ins[1].Chan(0), ins[2].Chan(0), ins[3].Chan(0), ins[4].Chan(0), ins[5].Chan(0)

	baseFreqP := v.params.Get("base_freq", frames)
	waveform := v.params.Scalar("waveform", 2)
	pwmBaseP := v.params.Get("pwm", frames)
	linDepthP := v.params.Get("fm_lin_depth", frames)
	expDepthP := v.params.Get("fm_exp_depth", frames)
	unison := v.params.Scalar("unison", 1)
	detuneP := v.params.Get("detune", frames)
	subMixP := v.params.Get("sub_mix", frames)
	subOctP := v.params.Get("sub_oct", frames)

	if int(math.Round(float64(unison))) != v.voiceCount {
		v.updateVoiceOffsets(unison)
	}

	pwmCoeff := smoothingCoeff(0.004, v.sampleRate)

	out, subOut, syncOut := outs[0].Chan(0), outs[1].Chan(0), outs[2].Chan(0)

	for i := 0; i < frames; i++ {
		base := sampleAt(baseFreqP, i, 220)
		pitch := inputAt(pitchIn, i)
		fmLin := inputAt(fmLinIn, i) + inputAt(fmAudioIn, i)
		fmExp := inputAt(fmExpIn, i)
		pwmMod := inputAt(pwmIn, i)
		sync := inputAt(syncIn, i)
		pwmBase := sampleAt(pwmBaseP, i, 0.5)
		linDepth := sampleAt(linDepthP, i, 0)
		expDepth := sampleAt(expDepthP, i, 0)
		detuneCents := sampleAt(detuneP, i, 0)
		subMix := clampf(sampleAt(subMixP, i, 0), 0, 1)
		subOct := clampf(sampleAt(subOctP, i, 1), 1, 2)

		if sync > 0.5 && v.lastSync <= 0.5 {
			for vIdx := 0; vIdx < v.voiceCount; vIdx++ {
				v.phases[vIdx] = 0
				v.subPhases[vIdx] = 0
				v.triStates[vIdx] = 0
			}
		}
		v.lastSync = sync

		expOffset := pitch + fmExp*expDepth
		frequency := base * Sample(math.Pow(2, float64(expOffset)))
		frequency += fmLin * linDepth
		if frequency != frequency || frequency < 0 {
			frequency = 0
		}
		pwmTarget := clampf(pwmBase+pwmMod*0.5, 0.05, 0.95)
		v.pwmSmooth = onePole(v.pwmSmooth, pwmTarget, pwmCoeff)

		subDiv := Sample(2)
		if subOct >= 1.5 {
			subDiv = 4
		}

		var sample, subSample, syncPulse Sample

		for vIdx := 0; vIdx < v.voiceCount; vIdx++ {
			offset := v.voiceOffset[vIdx]
			detuneFactor := Sample(math.Pow(2, float64(detuneCents*offset)/1200))
			voiceFreq := frequency * detuneFactor
			dt := Sample(math.Min(float64(voiceFreq)/v.sampleRate, 1))

			nextPhase := v.phases[vIdx] + voiceFreq/Sample(v.sampleRate)
			if nextPhase >= 1 {
				nextPhase -= Sample(math.Floor(float64(nextPhase)))
				syncPulse = 1
			}
			v.phases[vIdx] = nextPhase
			phase := nextPhase

			var voiceSample Sample
			switch {
			case waveform < 0.5: // sine
				voiceSample = Sample(math.Sin(2 * math.Pi * float64(phase)))
			case waveform < 1.5: // triangle: integrated bandlimited square
				square := Sample(1)
				if phase >= 0.5 {
					square = -1
				}
				square += polyBLEP(phase, dt)
				square -= polyBLEP(wrap01(phase-0.5), dt)
				v.triStates[vIdx] += square * (2 * voiceFreq / Sample(v.sampleRate))
				v.triStates[vIdx] = clampf(v.triStates[vIdx], -1, 1)
				voiceSample = v.triStates[vIdx]
			case waveform < 2.5: // sawtooth
				saw := 2*phase - 1
				saw -= polyBLEP(phase, dt)
				voiceSample = saw
			default: // pulse with PWM
				pulse := Sample(1)
				if phase >= v.pwmSmooth {
					pulse = -1
				}
				pulse += polyBLEP(phase, dt)
				pulse -= polyBLEP(wrap01(phase-v.pwmSmooth), dt)
				voiceSample = pulse
			}
			sample += voiceSample

			subFreq := voiceFreq / subDiv
			subDt := Sample(math.Min(float64(subFreq)/v.sampleRate, 1))
			v.subPhases[vIdx] += subFreq / Sample(v.sampleRate)
			if v.subPhases[vIdx] >= 1 {
				v.subPhases[vIdx] -= Sample(math.Floor(float64(v.subPhases[vIdx])))
			}
			subPhase := v.subPhases[vIdx]
			subWave := Sample(1)
			if subPhase >= 0.5 {
				subWave = -1
			}
			subWave += polyBLEP(subPhase, subDt)
			subWave -= polyBLEP(wrap01(subPhase-0.5), subDt)
			subSample += subWave
		}

		sample /= Sample(v.voiceCount)
		subSample /= Sample(v.voiceCount)
		out[i] = sample + subSample*subMix
		subOut[i] = subSample
		syncOut[i] = syncPulse
	}
}

func wrap01(x Sample) Sample {
	x -= Sample(math.Floor(float64(x)))
	if x < 0 {
		x += 1
	}
	return x
}
