package fluxgraph

import "math"

func init() {
	registerModule("SidPlayer", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newSidPlayer(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}},
		OutputPorts: []PortSpec{
			{Channels: 1}, {Channels: 1}, {Channels: 1}, // voice CVs
			{Channels: 1}, {Channels: 1}, {Channels: 1}, // voice levels
			{Channels: 1}, {Channels: 1}, {Channels: 1}, // voice waveform selects
		},
	})
}

const sidVoices = 3

// sidPlayer walks a pre-loaded slice of SidFrame — per-frame register
// snapshots for the C64 SID's three voices — and drives per-voice
// frequency CV, level, and waveform-select outputs meant to patch into
// external VCO-style modules already in the graph, rather than
// synthesizing SID audio internally (spec.md §4.9 SID player; grounded
// on original_source's chips/mod.rs chip-emulator inventory).
type sidPlayer struct {
	params        *ParamSet
	frames        []SidFrame
	sampleRate    float64
	framePhase    float64
	samplesPerFrame float64
	currentFrame  int
	prevReset     Sample
}

func newSidPlayer(ctx ProcessContext) *sidPlayer {
	s := &sidPlayer{
		params:     NewParamSet(map[string]Sample{"enabled": 1, "frame_rate_hz": 50}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
	s.recomputeRate(50)
	return s
}

func (s *sidPlayer) recomputeRate(frameRateHz Sample) {
	if frameRateHz < 1 {
		frameRateHz = 1
	}
	s.samplesPerFrame = s.sampleRate / float64(frameRateHz)
}

func (s *sidPlayer) Reset(sampleRate float64) {
	s.sampleRate = sampleRate
	s.framePhase = 0
	s.currentFrame = 0
	s.prevReset = 0
	s.recomputeRate(s.params.Scalar("frame_rate_hz", 50))
}

func (s *sidPlayer) Params() *ParamSet { return s.params }

// LoadFrames installs a new pre-decoded frame slice, resetting playback.
func (s *sidPlayer) LoadFrames(frames []SidFrame) {
	s.frames = frames
	s.currentFrame = 0
	s.framePhase = 0
}

const middleCHz = 261.6256

// sidFreqToVOct converts a SID voice's frequency in Hz to 1V/oct CV
// referenced to middle C (0 V = middleCHz); a silent voice (0 Hz) maps
// to -10 V.
func sidFreqToVOct(freqHz Sample) Sample {
	if freqHz <= 0 {
		return -10
	}
	return Sample(math.Log2(float64(freqHz) / middleCHz))
}

// vOctToSidFreq inverts sidFreqToVOct, mapping -10 V or below back to 0 Hz.
func vOctToSidFreq(cv Sample) Sample {
	if cv <= -10 {
		return 0
	}
	return Sample(middleCHz * math.Exp2(float64(cv)))
}

func (s *sidPlayer) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	enabledP := s.params.Get("enabled", frames)
	rateP := s.params.Get("frame_rate_hz", frames)
	resetIn := ins[0].Chan(0)

	cvOut := [sidVoices][]Sample{outs[0].Chan(0), outs[1].Chan(0), outs[2].Chan(0)}
	levelOut := [sidVoices][]Sample{outs[3].Chan(0), outs[4].Chan(0), outs[5].Chan(0)}
	waveOut := [sidVoices][]Sample{outs[6].Chan(0), outs[7].Chan(0), outs[8].Chan(0)}

	enabled := sampleAt(enabledP, 0, 1) > 0.5
	if !enabled || len(s.frames) == 0 {
		for v := 0; v < sidVoices; v++ {
			for i := 0; i < frames; i++ {
				cvOut[v][i] = 0
				levelOut[v][i] = 0
				waveOut[v][i] = 0
			}
		}
		return
	}

	s.recomputeRate(sampleAt(rateP, 0, 50))

	for i := 0; i < frames; i++ {
		resetVal := inputAt(resetIn, i)
		if resetVal > 0.5 && s.prevReset <= 0.5 {
			s.currentFrame = 0
			s.framePhase = 0
		}
		s.prevReset = resetVal

		s.framePhase++
		if s.framePhase >= s.samplesPerFrame {
			s.framePhase -= s.samplesPerFrame
			if s.currentFrame < len(s.frames)-1 {
				s.currentFrame++
			}
		}

		frame := s.frames[s.currentFrame]
		for v := 0; v < sidVoices; v++ {
			voice := frame[v]
			cvOut[v][i] = sidFreqToVOct(voice.FreqHz)
			levelOut[v][i] = voice.Volume
			waveOut[v][i] = Sample(voice.Waveform)
		}
	}
}
