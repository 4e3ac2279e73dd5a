package fluxgraph

func init() {
	registerModule("MasterClock", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newMasterClock(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}, {Channels: 1}, {Channels: 1}, {Channels: 1}},
	})
}

// masterClock is the global transport: a tempo/rate/swing-driven beat
// counter that emits 10ms clock, reset, run, and bar pulses for every
// other sequencer in the patch to follow (spec.md §4.9 Master Clock).
type masterClock struct {
	params            *ParamSet
	sampleRate        float64
	phase             float64
	samplesPerBeat    float64
	clockOn           bool
	clockSamples      int
	clockPulseSamples int
	resetPending      bool
	resetOn           bool
	resetSamples      int
	wasRunning        bool
	beatCount         int
	barOn             bool
	barSamples        int
	prevStart         Sample
	prevStop          Sample
	prevResetIn       Sample
}

func newMasterClock(ctx ProcessContext) *masterClock {
	m := &masterClock{
		params: NewParamSet(map[string]Sample{
			"running": 0, "tempo": 120, "rate": 4, "swing": 0,
		}),
	}
	m.Reset(ctx.sampleRateOrDefault())
	return m
}

func (m *masterClock) Reset(sampleRate float64) {
	m.sampleRate = sampleRate
	pulseMs := 10.0
	m.phase = 0
	m.samplesPerBeat = sampleRate * 60 / 120
	m.clockOn = false
	m.clockSamples = 0
	m.clockPulseSamples = int(pulseMs / 1000 * sampleRate)
	m.resetPending, m.resetOn, m.resetSamples = false, false, 0
	m.wasRunning = false
	m.beatCount = 0
	m.barOn, m.barSamples = false, 0
	m.prevStart, m.prevStop, m.prevResetIn = 0, 0, 0
}

func (m *masterClock) Params() *ParamSet { return m.params }

func clockRateDivisor(rate Sample) float64 {
	switch int(rate + 0.5) {
	case 0:
		return 4
	case 1:
		return 2
	case 2:
		return 1
	case 3:
		return 0.5
	case 4:
		return 0.25
	case 5:
		return 0.125
	default:
		return 0.25
	}
}

func (m *masterClock) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	runningP := m.params.Get("running", frames)
	tempoP := m.params.Get("tempo", frames)
	rateP := m.params.Get("rate", frames)
	swingP := m.params.Get("swing", frames)
	startIn, stopIn, resetIn := ins[0].Chan(0), ins[1].Chan(0), ins[2].Chan(0)
	clockOut, resetOut, runOut, barOut := outs[0].Chan(0), outs[1].Chan(0), outs[2].Chan(0), outs[3].Chan(0)

	for i := 0; i < frames; i++ {
		runningParam := sampleAt(runningP, i, 0) > 0.5
		tempo := clampf(sampleAt(tempoP, i, 120), 40, 300)
		rate := sampleAt(rateP, i, 4)
		swing := clampf(sampleAt(swingP, i, 0), 0, 90)

		startSample := inputAt(startIn, i)
		stopSample := inputAt(stopIn, i)
		resetSample := inputAt(resetIn, i)

		startTrigger := startSample > 0.5 && m.prevStart <= 0.5
		stopTrigger := stopSample > 0.5 && m.prevStop <= 0.5
		resetTrigger := resetSample > 0.5 && m.prevResetIn <= 0.5
		m.prevStart, m.prevStop, m.prevResetIn = startSample, stopSample, resetSample

		isRunning := runningParam
		if startTrigger {
			isRunning = true
		}
		if stopTrigger {
			isRunning = false
		}

		if isRunning && !m.wasRunning {
			m.resetPending = true
			m.phase = 0
			m.beatCount = 0
		}
		if resetTrigger && isRunning {
			m.resetPending = true
			m.phase = 0
			m.beatCount = 0
		}
		if m.resetPending {
			m.resetOn = true
			m.resetSamples = 0
			m.resetPending = false
		}

		rateDiv := clockRateDivisor(rate)
		m.samplesPerBeat = m.sampleRate * 60 / float64(tempo) * rateDiv

		if isRunning {
			m.phase++
			isOddBeat := m.beatCount%2 == 1
			swingDelay := 0.0
			if isOddBeat && swing > 0 {
				swingDelay = float64(int(m.samplesPerBeat * float64(swing) / 100 * 0.5))
			}
			triggerPoint := m.samplesPerBeat + swingDelay
			if m.phase >= triggerPoint {
				m.phase -= m.samplesPerBeat
				m.clockOn = true
				m.clockSamples = 0
				m.beatCount++

				clocksPerBar := int(4/rateDiv + 0.5)
				if clocksPerBar < 1 {
					clocksPerBar = 1
				}
				if m.beatCount%clocksPerBar == 0 {
					m.barOn = true
					m.barSamples = 0
				}
			}
		} else {
			m.phase = m.samplesPerBeat
		}

		clockValue := Sample(0)
		if m.clockOn {
			m.clockSamples++
			if m.clockSamples >= m.clockPulseSamples {
				m.clockOn = false
			}
			clockValue = 1
		}

		resetValue := Sample(0)
		if m.resetOn {
			m.resetSamples++
			if m.resetSamples >= m.clockPulseSamples {
				m.resetOn = false
			}
			resetValue = 1
		}

		barValue := Sample(0)
		if m.barOn {
			m.barSamples++
			if m.barSamples >= m.clockPulseSamples {
				m.barOn = false
			}
			barValue = 1
		}

		runValue := Sample(0)
		if isRunning {
			runValue = 1
		}

		clockOut[i] = clockValue
		resetOut[i] = resetValue
		runOut[i] = runValue
		barOut[i] = barValue

		m.wasRunning = isRunning
	}
}
