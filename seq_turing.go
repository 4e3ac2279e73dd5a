package fluxgraph

func init() {
	registerModule("Turing", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newTuring(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}}, // clock, reset
		OutputPorts: []PortSpec{{Channels: 1}, {Channels: 1}, {Channels: 1}}, // cv, gate, pulse
	})
}

const turingInitialRegister = 0b1010_0110_1001_0101

// turing is a Music Thing Modular-style Turing Machine: a 16-bit shift
// register that feeds back through itself each clock, with a probability
// knob that ranges from fully locked (always repeats) through evolving to
// fully random (spec.md §4.6 Turing machine).
type turing struct {
	params     *ParamSet
	sampleRate float64

	register      uint16
	lastClock     Sample
	lastReset     Sample
	step          int
	rngState      uint32
	triggerTimer  int
	currentCV     Sample
	gateState     Sample
}

func newTuring(ctx ProcessContext) *turing {
	return &turing{
		params: NewParamSet(map[string]Sample{
			"probability": 0.5, "length": 8, "range": 2, "scale": 0, "root": 0,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
		register:   turingInitialRegister,
		rngState:   12345,
	}
}

func (t *turing) Reset(sampleRate float64) {
	t.sampleRate = sampleRate
	t.register = turingInitialRegister
	t.lastClock, t.lastReset = 0, 0
	t.step = 0
	t.rngState = 12345
	t.triggerTimer = 0
	t.currentCV = 0
	t.gateState = 0
}

func (t *turing) Params() *ParamSet { return t.params }

func (t *turing) nextRandom() Sample {
	t.rngState = t.rngState*1664525 + 1013904223
	return Sample(t.rngState) / Sample(^uint32(0))
}

func (t *turing) quantize(value Sample, scaleIdx, root int) Sample {
	noteIn := value * 12
	return quantizeToScale(noteIn, scaleIdx-1, root) / 12
}

func (t *turing) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	probP := t.params.Get("probability", frames)
	lengthP := t.params.Get("length", frames)
	rangeP := t.params.Get("range", frames)
	scaleP := t.params.Get("scale", frames)
	rootP := t.params.Get("root", frames)
	clockIn, resetIn := ins[0].Chan(0), ins[1].Chan(0)
	outCV, outGate, outPulse := outs[0].Chan(0), outs[1].Chan(0), outs[2].Chan(0)

	pulseSamples := int(0.005 * t.sampleRate)

	for i := 0; i < frames; i++ {
		clock := inputAt(clockIn, i)
		reset := inputAt(resetIn, i)
		prob := clampf(sampleAt(probP, i, 0.5), 0, 1)
		length := int(clampf(sampleAt(lengthP, i, 8), 2, 16))
		rng := clampf(sampleAt(rangeP, i, 2), 1, 5)
		scaleIdx := int(sampleAt(scaleP, i, 0))
		root := int(sampleAt(rootP, i, 0))

		if reset > 0.5 && t.lastReset <= 0.5 {
			t.step = 0
			t.register = turingInitialRegister
		}
		t.lastReset = reset

		if clock > 0.5 && t.lastClock <= 0.5 {
			feedbackBit := (t.register >> uint(length-1)) & 1

			var newBit uint16
			if t.nextRandom() < prob {
				if t.nextRandom() < 0.5 {
					newBit = 0
				} else {
					newBit = 1
				}
			} else {
				newBit = feedbackBit
			}

			t.register = (t.register<<1 | newBit) & 0xFFFF
			t.step = (t.step + 1) % length

			mask := uint16(1<<uint(length)) - 1
			value := Sample(t.register&mask) / Sample(mask)
			cvRaw := (value - 0.5) * rng

			if scaleIdx > 0 {
				t.currentCV = t.quantize(cvRaw, scaleIdx, root)
			} else {
				t.currentCV = cvRaw
			}
			t.triggerTimer = pulseSamples
		}
		t.lastClock = clock

		if clock > 0.5 {
			t.gateState = 1
		} else {
			t.gateState = 0
		}

		outCV[i] = t.currentCV
		outGate[i] = t.gateState
		if t.triggerTimer > 0 {
			outPulse[i] = 1
			t.triggerTimer--
		} else {
			outPulse[i] = 0
		}
	}
}
