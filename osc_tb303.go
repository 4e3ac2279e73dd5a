package fluxgraph

import "math"

func init() {
	registerModule("Tb303", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newTB303(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}, {Channels: 1}, {Channels: 1}}, // pitch, gate, velocity, cutoff_cv
		OutputPorts: []PortSpec{{Channels: 1}, {Channels: 1}},                               // audio, env_out
	})
}

// tb303 emulates the Roland TB-303: bandlimited saw/square oscillator,
// portamento glide, a 3-pole diode-ladder filter with decay + accent
// envelope modulation, and a short amp envelope (spec.md §4.5 TB-303).
type tb303 struct {
	params     *ParamSet
	sampleRate float64

	phase                  Sample
	currentFreq, targetFreq Sample
	stage1, stage2, stage3 Sample
	filterEnv, accentEnv, ampEnv Sample
	gateOn                 bool
	lastGate               Sample
	lastVelocity           Sample
}

func newTB303(ctx ProcessContext) *tb303 {
	return &tb303{
		params: NewParamSet(map[string]Sample{
			"waveform":  0,
			"cutoff":    800,
			"resonance": 0.3,
			"decay":     0.3,
			"envmod":    0.5,
			"accent":    0.6,
			"glide":     0.02,
		}),
		sampleRate:  ctx.sampleRateOrDefault(),
		currentFreq: 110,
		targetFreq:  110,
	}
}

func (t *tb303) Reset(sampleRate float64) {
	t.sampleRate = sampleRate
	t.stage1, t.stage2, t.stage3 = 0, 0, 0
}

func (t *tb303) Params() *ParamSet { return t.params }

func (t *tb303) diodeLadder(input, cutoff, reso Sample) Sample {
	f := Sample(math.Tan(math.Pi * float64(cutoff) / t.sampleRate))
	f = f / (1 + f)

	feedback := reso * 3.8 * t.stage3
	x := Sample(math.Tanh(float64(input - feedback)))

	t.stage1 += f * (x - t.stage1)
	t.stage2 += f * (t.stage1 - t.stage2)
	t.stage3 += f * (t.stage2 - t.stage3)

	return Sample(math.Tanh(float64(t.stage3 * 1.2)))
}

func (t *tb303) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	pitchIn, gateIn, velIn, cutoffCVIn := ins[0].Chan(0), ins[1].Chan(0), ins[2].Chan(0), ins[3].Chan(0)

	baseCutoff := clampf(t.params.Scalar("cutoff", 800), 40, 12000)
	resonance := clampf(t.params.Scalar("resonance", 0.3), 0, 1)
	decayTime := clampf(t.params.Scalar("decay", 0.3), 0.01, 2)
	envmod := clampf(t.params.Scalar("envmod", 0.5), 0, 1)
	accentAmount := clampf(t.params.Scalar("accent", 0.6), 0, 1)
	glideTime := clampf(t.params.Scalar("glide", 0.02), 0, 0.5)
	waveform := t.params.Scalar("waveform", 0)

	decayCoeff := Sample(math.Exp(-1 / (float64(decayTime) * t.sampleRate)))
	accentDecayCoeff := Sample(math.Exp(-1 / (0.05 * t.sampleRate)))
	ampAttackCoeff := smoothingCoeff(0.003, t.sampleRate)
	ampReleaseCoeff := Sample(math.Exp(-1 / (0.01 * t.sampleRate)))

	glideCoeff := Sample(1)
	if glideTime > 0.001 {
		glideCoeff = smoothingCoeff(float64(glideTime), t.sampleRate)
	}

	audioOut, envOut := outs[0].Chan(0), outs[1].Chan(0)

	for i := 0; i < frames; i++ {
		pitchCV := inputAt(pitchIn, i)
		gate := inputAt(gateIn, i)
		velocity := clampf(inputAt(velIn, i), 0, 1)
		cutoffCV := inputAt(cutoffCVIn, i)

		gateRising := gate > 0.5 && t.lastGate <= 0.5
		gateFalling := gate <= 0.5 && t.lastGate > 0.5
		t.lastGate = gate

		if gateRising {
			t.targetFreq = 110 * Sample(math.Pow(2, float64(pitchCV)))
			t.gateOn = true
			t.lastVelocity = velocity
			t.filterEnv = 1
			if velocity > 0.7 {
				t.accentEnv = 1
			}
		}
		if gateFalling {
			t.gateOn = false
		}

		t.currentFreq = onePole(t.currentFreq, t.targetFreq, glideCoeff)
		t.currentFreq = clampf(t.currentFreq, 20, 20000)

		t.filterEnv *= decayCoeff
		t.accentEnv *= accentDecayCoeff

		if t.gateOn {
			t.ampEnv += (1 - t.ampEnv) * ampAttackCoeff
		} else {
			t.ampEnv *= ampReleaseCoeff
		}

		dt := t.currentFreq / Sample(t.sampleRate)
		t.phase += dt
		if t.phase >= 1 {
			t.phase -= 1
		}

		var oscOut Sample
		if waveform < 0.5 {
			saw := 2*t.phase - 1
			saw -= polyBLEP(t.phase, dt)
			oscOut = saw
		} else {
			square := Sample(1)
			if t.phase >= 0.5 {
				square = -1
			}
			square += polyBLEP(t.phase, dt)
			square -= polyBLEP(wrap01(t.phase+0.5), dt)
			oscOut = square
		}

		accentBoost := t.accentEnv * accentAmount * 2
		envModOctaves := t.filterEnv*envmod*4 + accentBoost
		modulatedCutoff := baseCutoff * Sample(math.Pow(2, float64(envModOctaves+cutoffCV)))
		finalCutoff := clampf(modulatedCutoff, 40, 18000)

		filtered := t.diodeLadder(oscOut, finalCutoff, resonance)

		accentAmpBoost := Sample(1)
		if t.lastVelocity > 0.7 {
			accentAmpBoost = 1 + accentAmount*0.5
		}
		audio := filtered * t.ampEnv * accentAmpBoost

		audioOut[i] = clampf(audio, -1, 1)
		envOut[i] = t.filterEnv
	}
}
