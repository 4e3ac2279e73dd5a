package fluxgraph

import "math"

func init() {
	registerModule("GranularDelay", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newGranularDelayFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 2}},
		OutputPorts: []PortSpec{{Channels: 2}},
	})
}

const granularMaxDelayMs = 2500

type grain struct {
	active bool
	pos    Sample
	step   Sample
	age    int
	length int
	pan    Sample
}

// granularDelayFx spawns short overlapping grains from a delay buffer
// at a controllable density, each with its own playback rate (pitch)
// and random pan, for textural smear rather than a clean echo (spec.md
// §4.8 Granular Delay).
type granularDelayFx struct {
	params     *ParamSet
	sampleRate float64
	bufferL, bufferR []Sample
	writeIndex int
	grains     [6]grain
	spawnPhase Sample
	seed       uint32
}

func newGranularDelayFx(ctx ProcessContext) *granularDelayFx {
	g := &granularDelayFx{
		params: NewParamSet(map[string]Sample{
			"time_ms": 420, "size_ms": 120, "density": 6, "pitch": 1, "feedback": 0.35, "mix": 0.5,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
		seed:       0x98765432,
	}
	g.allocate()
	return g
}

func (g *granularDelayFx) allocate() {
	size := int(math.Ceil(granularMaxDelayMs/1000*g.sampleRate)) + 2
	if len(g.bufferL) != size {
		g.bufferL = make([]Sample, size)
		g.bufferR = make([]Sample, size)
		g.writeIndex = 0
		for j := range g.grains {
			g.grains[j].active = false
		}
	}
}

func (g *granularDelayFx) Reset(sampleRate float64) {
	g.sampleRate = sampleRate
	g.allocate()
}

func (g *granularDelayFx) Params() *ParamSet { return g.params }

func (g *granularDelayFx) nextRandom() Sample {
	g.seed = g.seed*1664525 + 1013904223
	raw := Sample(g.seed>>9) / 8388608
	return raw*2 - 1
}

func readSampleFractional(buffer []Sample, index Sample) Sample {
	size := len(buffer)
	base := math.Floor(float64(index))
	frac := Sample(float64(index) - base)
	indexA := int(base) % size
	if indexA < 0 {
		indexA += size
	}
	indexB := (indexA + 1) % size
	a, b := buffer[indexA], buffer[indexB]
	return a + (b-a)*frac
}

func (g *granularDelayFx) spawnGrain(delaySamples Sample, length int, pitch, pan Sample) {
	if length == 0 {
		return
	}
	index := 0
	for j := range g.grains {
		if !g.grains[j].active {
			index = j
			break
		}
	}
	gr := &g.grains[index]
	start := Sample(g.writeIndex) - delaySamples
	size := Sample(len(g.bufferL))
	for start < 0 {
		start += size
	}
	for start >= size {
		start -= size
	}
	gr.active = true
	gr.pos = start
	gr.step = pitch
	gr.age = 0
	gr.length = length
	gr.pan = pan
}

func (g *granularDelayFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	timeP := g.params.Get("time_ms", frames)
	sizeP := g.params.Get("size_ms", frames)
	densityP := g.params.Get("density", frames)
	pitchP := g.params.Get("pitch", frames)
	fbP := g.params.Get("feedback", frames)
	mixP := g.params.Get("mix", frames)
	inL, inR := ins[0].Chan(0), ins[0].Chan(1)
	outL, outR := outs[0].Chan(0), outs[0].Chan(1)

	bufferSize := Sample(len(g.bufferL))

	for i := 0; i < frames; i++ {
		timeMs := clampf(sampleAt(timeP, i, 420), 40, 2000)
		sizeMs := clampf(sampleAt(sizeP, i, 120), 10, 500)
		density := clampf(sampleAt(densityP, i, 6), 0.2, 40)
		pitch := clampf(sampleAt(pitchP, i, 1), 0.25, 2)
		feedback := clampf(sampleAt(fbP, i, 0.35), 0, 0.85)
		mix := clampf(sampleAt(mixP, i, 0.5), 0, 1)

		baseDelay := clampf(timeMs*Sample(g.sampleRate)/1000, 1, bufferSize-2)
		grainLength := int(math.Max(1, float64(sizeMs*Sample(g.sampleRate)/1000)))
		jitter := sizeMs * 0.5 * Sample(g.sampleRate) / 1000

		g.spawnPhase += density / Sample(g.sampleRate)
		for g.spawnPhase >= 1 {
			g.spawnPhase -= 1
			offset := baseDelay + g.nextRandom()*jitter
			delaySamples := clampf(offset, 1, bufferSize-2)
			pan := clampf(g.nextRandom(), -1, 1)
			g.spawnGrain(delaySamples, grainLength, pitch, pan)
		}

		sampleL := inputAt(inL, i)
		sampleR := sampleL
		if len(inR) > 0 {
			sampleR = inputAt(inR, i)
		}

		var wetL, wetR Sample
		for j := range g.grains {
			gr := &g.grains[j]
			if !gr.active {
				continue
			}
			phase := Sample(gr.age) / Sample(gr.length)
			window := 1 - Sample(math.Abs(float64(phase*2-1)))
			grSampleL := readSampleFractional(g.bufferL, gr.pos)
			grSampleR := readSampleFractional(g.bufferR, gr.pos)
			panL := 0.5 * (1 - gr.pan)
			panR := 0.5 * (1 + gr.pan)
			wetL += grSampleL * window * panL
			wetR += grSampleR * window * panR
			gr.pos += gr.step
			if gr.pos >= bufferSize {
				gr.pos -= bufferSize
			}
			gr.age++
			if gr.age >= gr.length {
				gr.active = false
			}
		}

		g.bufferL[g.writeIndex] = sampleL + wetL*feedback
		g.bufferR[g.writeIndex] = sampleR + wetR*feedback

		dry := 1 - mix
		outL[i] = sampleL*dry + wetL*mix
		outR[i] = sampleR*dry + wetR*mix

		g.writeIndex++
		if g.writeIndex >= len(g.bufferL) {
			g.writeIndex = 0
		}
	}
}
