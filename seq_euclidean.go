package fluxgraph

func init() {
	registerModule("Euclidean", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newEuclidean(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}, {Channels: 1}},
	})
}

const euclideanMaxSteps = 32

// euclidean distributes a number of pulses as evenly as possible across
// a number of steps using a Bresenham-style bucket accumulator — the
// same distribution Bjorklund's algorithm produces, found in rhythms
// from Cuban tresillo to Brazilian samba (spec.md §4.9 Euclidean).
type euclidean struct {
	params            *ParamSet
	sampleRate        float64
	pattern           [euclideanMaxSteps]bool
	patternLength     int
	currentStep       int
	phase             float64
	samplesPerStep    float64
	gateOn            bool
	gateSamples       int
	gateLengthSamples int
	swingPending      bool
	swingDelayRemaining int
	prevClock         Sample
	prevReset         Sample
	cachedSteps       int
	cachedPulses      int
	cachedRotation    int
	currentGate       Sample
}

func newEuclidean(ctx ProcessContext) *euclidean {
	e := &euclidean{
		params: NewParamSet(map[string]Sample{
			"enabled": 1, "tempo": 120, "rate": 7, "steps": 8, "pulses": 3,
			"rotation": 0, "gate_length": 50, "swing": 0,
		}),
		sampleRate:     ctx.sampleRateOrDefault(),
		patternLength:  16,
		samplesPerStep: ctx.sampleRateOrDefault() * 0.5,
		cachedSteps:    16,
		cachedPulses:   4,
	}
	e.computePattern(16, 4, 0)
	return e
}

func (e *euclidean) Reset(sampleRate float64) {
	e.sampleRate = sampleRate
	e.currentStep = 0
	e.phase = 0
	e.gateOn = false
	e.gateSamples = 0
	e.swingPending = false
	e.swingDelayRemaining = 0
	e.prevClock, e.prevReset = 0, 0
	e.currentGate = 0
}

func (e *euclidean) Params() *ParamSet { return e.params }

// CurrentStep reports the step the pattern is currently sitting on.
func (e *euclidean) CurrentStep() int { return e.currentStep }

func (e *euclidean) computePattern(steps, pulses, rotation int) {
	steps = int(clampf(Sample(steps), 2, euclideanMaxSteps))
	pulses = int(clampf(Sample(pulses), 0, Sample(steps)))

	for i := range e.pattern {
		e.pattern[i] = false
	}
	e.patternLength = steps

	if pulses == 0 {
		e.cachedSteps, e.cachedPulses, e.cachedRotation = steps, pulses, rotation
		return
	}
	if pulses >= steps {
		for i := 0; i < steps; i++ {
			e.pattern[i] = true
		}
		e.cachedSteps, e.cachedPulses, e.cachedRotation = steps, pulses, rotation
		return
	}

	bucket := 0
	rot := rotation % steps
	for i := 0; i < steps; i++ {
		bucket += pulses
		if bucket >= steps {
			bucket -= steps
			// The carry lands on the *next* step, not the one that
			// produced it: spec.md §8's Euclidean(8,3,0) scenario
			// ([1,0,0,1,0,0,1,0]) only falls out of the bucket
			// algorithm in §4.9 with this one-step offset.
			pos := (i + 1 + steps - rot) % steps
			e.pattern[pos] = true
		}
	}
	e.cachedSteps, e.cachedPulses, e.cachedRotation = steps, pulses, rotation
}

func euclideanRateMult(rateIdx int) float64 {
	switch rateIdx {
	case 0:
		return 0.25
	case 1:
		return 0.5
	case 2:
		return 0.75
	case 3:
		return 1
	case 4:
		return 1.5
	case 5:
		return 2
	case 6:
		return 3
	case 7:
		return 4
	case 8:
		return 6
	case 9:
		return 8
	case 10:
		return 12
	case 11:
		return 16
	default:
		return 4
	}
}

func (e *euclidean) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	enabledP := e.params.Get("enabled", frames)
	tempoP := e.params.Get("tempo", frames)
	rateP := e.params.Get("rate", frames)
	stepsP := e.params.Get("steps", frames)
	pulsesP := e.params.Get("pulses", frames)
	rotationP := e.params.Get("rotation", frames)
	gateLenP := e.params.Get("gate_length", frames)
	swingP := e.params.Get("swing", frames)
	clockIn, resetIn := ins[0].Chan(0), ins[1].Chan(0)
	gateOut, stepOut := outs[0].Chan(0), outs[1].Chan(0)

	enabled := sampleAt(enabledP, 0, 1) > 0.5
	if !enabled {
		for i := 0; i < frames; i++ {
			gateOut[i] = 0
			stepOut[i] = Sample(e.currentStep)
		}
		e.currentGate = 0
		e.gateOn = false
		return
	}

	tempo := clampf(sampleAt(tempoP, 0, 120), 40, 300)
	rateIdx := int(sampleAt(rateP, 0, 7))
	steps := int(sampleAt(stepsP, 0, 8))
	pulses := int(sampleAt(pulsesP, 0, 3))
	rotation := int(sampleAt(rotationP, 0, 0))
	gateLenPct := clampf(sampleAt(gateLenP, 0, 50), 10, 100)
	swingPct := clampf(sampleAt(swingP, 0, 0), 0, 90)

	if steps != e.cachedSteps || pulses != e.cachedPulses || rotation != e.cachedRotation {
		e.computePattern(steps, pulses, rotation)
	}

	rateMult := euclideanRateMult(rateIdx)
	beatsPerSecond := float64(tempo) / 60
	stepsPerSecond := beatsPerSecond * rateMult
	e.samplesPerStep = e.sampleRate / stepsPerSecond
	gateLenSamples := int(e.samplesPerStep * (float64(gateLenPct) / 100))
	if gateLenSamples < 1 {
		gateLenSamples = 1
	}
	e.gateLengthSamples = gateLenSamples

	hasExternalClock := len(clockIn) > 0

	for i := 0; i < frames; i++ {
		if len(resetIn) > 0 {
			resetVal := inputAt(resetIn, i)
			if resetVal > 0.5 && e.prevReset <= 0.5 {
				e.currentStep = 0
				e.phase = 0
				e.swingPending = false
				e.swingDelayRemaining = 0
			}
			e.prevReset = resetVal
		}

		if e.swingPending {
			if e.swingDelayRemaining > 0 {
				e.swingDelayRemaining--
			} else {
				e.swingPending = false
				e.gateOn = true
				e.gateSamples = 0
				e.currentGate = 1
			}
		}

		var shouldAdvance bool
		if hasExternalClock {
			clockVal := inputAt(clockIn, i)
			shouldAdvance = clockVal > 0.5 && e.prevClock <= 0.5
			e.prevClock = clockVal
		} else {
			e.phase++
			if e.phase >= e.samplesPerStep {
				e.phase -= e.samplesPerStep
				shouldAdvance = true
			}
		}

		if shouldAdvance && !e.swingPending {
			triggerStep := e.currentStep
			shouldTrigger := triggerStep < e.patternLength && e.pattern[triggerStep]

			e.currentStep = (e.currentStep + 1) % e.patternLength

			isOddStep := triggerStep%2 == 1
			if isOddStep && swingPct > 0 && shouldTrigger {
				swingSamples := int(e.samplesPerStep * (float64(swingPct) / 200))
				if swingSamples > 0 {
					e.swingPending = true
					e.swingDelayRemaining = swingSamples
				} else {
					e.gateOn = true
					e.gateSamples = 0
					e.currentGate = 1
				}
			} else if shouldTrigger {
				e.gateOn = true
				e.gateSamples = 0
				e.currentGate = 1
			}
		}

		if e.gateOn {
			e.gateSamples++
			if e.gateSamples >= e.gateLengthSamples {
				e.gateOn = false
				e.currentGate = 0
			}
		}

		gateOut[i] = e.currentGate
		stepOut[i] = Sample(e.currentStep)
	}
}
