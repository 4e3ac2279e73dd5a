package fluxgraph

func init() {
	registerModule("Noise", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newNoise() },
		InputPorts:  nil,
		OutputPorts: []PortSpec{{Channels: 1}},
	})
}

// noise generates white, pink, or brown noise selected by "color"
// (0 = white, 1 = pink, 2 = brown), grounded on the xorshift RNG core
// shared by the drum voices (spec.md §2, §9 "xor-shift is used for
// noise").
type noise struct {
	params  *ParamSet
	rng     *xorshift32
	pinkB   [7]Sample
	brownAc Sample
}

func newNoise() *noise {
	return &noise{
		params: NewParamSet(map[string]Sample{"level": 0.5, "color": 0}),
		rng:    newXorshift32(0xC0FFEE),
	}
}

func (n *noise) Reset(sampleRate float64) {}

func (n *noise) Params() *ParamSet { return n.params }

// pink runs the Paul Kellet refined pink-noise filter over one white
// sample.
func (n *noise) pink(white Sample) Sample {
	n.pinkB[0] = 0.99886*n.pinkB[0] + white*0.0555179
	n.pinkB[1] = 0.99332*n.pinkB[1] + white*0.0750759
	n.pinkB[2] = 0.96900*n.pinkB[2] + white*0.1538520
	n.pinkB[3] = 0.86650*n.pinkB[3] + white*0.3104856
	n.pinkB[4] = 0.55000*n.pinkB[4] + white*0.5329522
	n.pinkB[5] = -0.7616*n.pinkB[5] - white*0.0168980
	pink := n.pinkB[0] + n.pinkB[1] + n.pinkB[2] + n.pinkB[3] + n.pinkB[4] + n.pinkB[5] + n.pinkB[6] + white*0.5362
	n.pinkB[6] = white * 0.115926
	return pink * 0.11
}

func (n *noise) brown(white Sample) Sample {
	n.brownAc = (n.brownAc + white*0.02) / 1.02
	return n.brownAc * 3.5
}

func (n *noise) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	levelP := n.params.Get("level", frames)
	color := n.params.Scalar("color", 0)
	out := outs[0].Chan(0)

	for i := 0; i < frames; i++ {
		level := clampf(sampleAt(levelP, i, 0.5), 0, 1)
		w := n.rng.next()
		var s Sample
		switch {
		case color < 0.5:
			s = w
		case color < 1.5:
			s = n.pink(w)
		default:
			s = n.brown(w)
		}
		out[i] = clampf(s, -1, 1) * level
	}
}
