package fluxgraph

import "math"

func init() {
	registerModule("PitchShifter", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newPitchShifterFx(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}, {Channels: 1}},
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

const (
	pitchShifterMaxGrains = 4
	pitchShifterBufferMs  = 200
)

type pitchGrain struct {
	active  bool
	readPos Sample
	age     int
	length  int
}

// pitchShifterFx is a granular time-domain pitch shifter: overlapping
// Hann-windowed grains are read back from a circular buffer at a speed
// set by the pitch ratio, keeping duration fixed while the pitch moves
// (spec.md §4.8 Pitch Shifter).
type pitchShifterFx struct {
	params     *ParamSet
	sampleRate float64
	buffer     []Sample
	writeIndex int
	grains     [pitchShifterMaxGrains]pitchGrain
	nextGrain  int
	spawnPhase Sample
}

func newPitchShifterFx(ctx ProcessContext) *pitchShifterFx {
	p := &pitchShifterFx{
		params: NewParamSet(map[string]Sample{
			"pitch": 0, "fine": 0, "grain_ms": 50, "mix": 1,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
	}
	p.allocate()
	return p
}

func (p *pitchShifterFx) allocate() {
	size := int(math.Ceil(pitchShifterBufferMs/1000*p.sampleRate)) + 2
	p.buffer = make([]Sample, size)
	p.writeIndex = 0
	for j := range p.grains {
		p.grains[j].active = false
	}
}

func (p *pitchShifterFx) Reset(sampleRate float64) {
	p.sampleRate = sampleRate
	p.allocate()
}

func (p *pitchShifterFx) Params() *ParamSet { return p.params }

func hannWindow(phase Sample) Sample {
	return 0.5 * (1 - Sample(math.Cos(2*math.Pi*float64(phase))))
}

func (p *pitchShifterFx) spawnGrain(grainLength int) {
	gr := &p.grains[p.nextGrain]
	offset := Sample(grainLength) * 0.5
	startPos := Sample(p.writeIndex) - offset
	size := Sample(len(p.buffer))
	for startPos < 0 {
		startPos += size
	}
	gr.active = true
	gr.readPos = startPos
	gr.age = 0
	gr.length = grainLength
	p.nextGrain = (p.nextGrain + 1) % pitchShifterMaxGrains
}

func (p *pitchShifterFx) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	pitchP := p.params.Get("pitch", frames)
	fineP := p.params.Get("fine", frames)
	grainMsP := p.params.Get("grain_ms", frames)
	mixP := p.params.Get("mix", frames)
	in, pitchCV := ins[0].Chan(0), ins[1].Chan(0)
	out := outs[0].Chan(0)

	bufferSize := Sample(len(p.buffer))

	for i := 0; i < frames; i++ {
		inputSample := inputAt(in, i)

		p.buffer[p.writeIndex] = inputSample
		p.writeIndex = (p.writeIndex + 1) % len(p.buffer)

		pitchSemi := clampf(sampleAt(pitchP, i, 0), -24, 24)
		fineCents := clampf(sampleAt(fineP, i, 0), -100, 100)
		cv := inputAt(pitchCV, i) * 12

		totalSemitones := pitchSemi + fineCents/100 + cv
		pitchRatio := Sample(math.Pow(2, float64(totalSemitones)/12))

		grainMs := clampf(sampleAt(grainMsP, i, 50), 10, 100)
		grainLength := int(math.Max(1, float64(grainMs*Sample(p.sampleRate)/1000)))
		mix := clampf(sampleAt(mixP, i, 1), 0, 1)

		spawnInterval := Sample(grainLength) * 0.5
		p.spawnPhase++
		if p.spawnPhase >= spawnInterval {
			p.spawnPhase -= spawnInterval
			p.spawnGrain(grainLength)
		}

		var wet Sample
		for idx := range p.grains {
			gr := &p.grains[idx]
			if !gr.active {
				continue
			}
			phase := Sample(gr.age) / Sample(gr.length)
			window := hannWindow(phase)
			sample := readSampleFractional(p.buffer, gr.readPos)
			wet += sample * window

			gr.readPos += pitchRatio
			for gr.readPos >= bufferSize {
				gr.readPos -= bufferSize
			}
			for gr.readPos < 0 {
				gr.readPos += bufferSize
			}
			gr.age++
			if gr.age >= gr.length {
				gr.active = false
			}
		}

		out[i] = inputSample*(1-mix) + wet*mix
	}
}
