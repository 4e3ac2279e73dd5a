package fluxgraph

func init() {
	registerModule("YmPlayer", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newYmPlayer(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}},
		OutputPorts: []PortSpec{
			{Channels: 1}, {Channels: 1}, {Channels: 1}, // voice CVs
			{Channels: 1}, {Channels: 1}, {Channels: 1}, // voice levels
			{Channels: 1}, {Channels: 1}, {Channels: 1}, // noise-enable gates
		},
	})
}

const ymVoices = 3

// ymPlayer walks a pre-loaded slice of AyFrame — per-frame register
// snapshots for the AY-3-8910/YM2149 PSG's three voices, as used in the
// ZX Spectrum, Amstrad CPC, MSX, and Atari ST — and drives per-voice
// frequency CV, level, and noise-enable gate outputs for external
// VCO/noise modules to follow (spec.md §4.9 YM player; grounded on
// original_source's chips/mod.rs Ay3_8910 chip-emulator inventory).
type ymPlayer struct {
	params          *ParamSet
	frames          []AyFrame
	sampleRate      float64
	framePhase      float64
	samplesPerFrame float64
	currentFrame    int
	prevReset       Sample
}

func newYmPlayer(ctx ProcessContext) *ymPlayer {
	y := &ymPlayer{
		params:     NewParamSet(map[string]Sample{"enabled": 1, "frame_rate_hz": 50}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
	y.recomputeRate(50)
	return y
}

func (y *ymPlayer) recomputeRate(frameRateHz Sample) {
	if frameRateHz < 1 {
		frameRateHz = 1
	}
	y.samplesPerFrame = y.sampleRate / float64(frameRateHz)
}

func (y *ymPlayer) Reset(sampleRate float64) {
	y.sampleRate = sampleRate
	y.framePhase = 0
	y.currentFrame = 0
	y.prevReset = 0
	y.recomputeRate(y.params.Scalar("frame_rate_hz", 50))
}

func (y *ymPlayer) Params() *ParamSet { return y.params }

// LoadFrames installs a new pre-decoded frame slice, resetting playback.
func (y *ymPlayer) LoadFrames(frames []AyFrame) {
	y.frames = frames
	y.currentFrame = 0
	y.framePhase = 0
}

func (y *ymPlayer) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	enabledP := y.params.Get("enabled", frames)
	rateP := y.params.Get("frame_rate_hz", frames)
	resetIn := ins[0].Chan(0)

	cvOut := [ymVoices][]Sample{outs[0].Chan(0), outs[1].Chan(0), outs[2].Chan(0)}
	levelOut := [ymVoices][]Sample{outs[3].Chan(0), outs[4].Chan(0), outs[5].Chan(0)}
	noiseOut := [ymVoices][]Sample{outs[6].Chan(0), outs[7].Chan(0), outs[8].Chan(0)}

	enabled := sampleAt(enabledP, 0, 1) > 0.5
	if !enabled || len(y.frames) == 0 {
		for v := 0; v < ymVoices; v++ {
			for i := 0; i < frames; i++ {
				cvOut[v][i] = 0
				levelOut[v][i] = 0
				noiseOut[v][i] = 0
			}
		}
		return
	}

	y.recomputeRate(sampleAt(rateP, 0, 50))

	for i := 0; i < frames; i++ {
		resetVal := inputAt(resetIn, i)
		if resetVal > 0.5 && y.prevReset <= 0.5 {
			y.currentFrame = 0
			y.framePhase = 0
		}
		y.prevReset = resetVal

		y.framePhase++
		if y.framePhase >= y.samplesPerFrame {
			y.framePhase -= y.samplesPerFrame
			if y.currentFrame < len(y.frames)-1 {
				y.currentFrame++
			}
		}

		frame := y.frames[y.currentFrame]
		for v := 0; v < ymVoices; v++ {
			voice := frame[v]
			cvOut[v][i] = sidFreqToVOct(voice.FreqHz)
			levelOut[v][i] = voice.Volume
			if voice.NoiseEnable {
				noiseOut[v][i] = 1
			} else {
				noiseOut[v][i] = 0
			}
		}
	}
}
