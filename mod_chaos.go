package fluxgraph

func init() {
	registerModule("Chaos", moduleFactory{
		New:         func(ctx ProcessContext) Module { return newChaos(ctx) },
		InputPorts:  []PortSpec{{Channels: 1}}, // speed CV
		OutputPorts: []PortSpec{{Channels: 1}, {Channels: 1}, {Channels: 1}, {Channels: 1}}, // x, y, z, gate
	})
}

const chaosRefSampleRate = 44100

// chaos integrates the Lorenz attractor with a fixed-step Euler method and
// exposes its three axes as independent modulation sources, plus a gate
// pulse fired on each rising crossing of the z axis — a free-running,
// musically useful source of correlated randomness (spec.md §4.6 Chaos).
type chaos struct {
	params       *ParamSet
	sampleRate   float64
	x, y, z      Sample
	lastZ        Sample
	triggerTimer int
}

func newChaos(ctx ProcessContext) *chaos {
	return &chaos{
		params: NewParamSet(map[string]Sample{
			"speed": 0.5, "rho": 28, "sigma": 10, "beta": 8.0 / 3.0, "scale": 0, "root": 0,
		}),
		sampleRate: ctx.sampleRateOrDefault(),
		x:          0.1,
	}
}

func (c *chaos) Reset(sampleRate float64) {
	c.sampleRate = sampleRate
	c.x, c.y, c.z = 0.1, 0, 0
	c.lastZ = 0
	c.triggerTimer = 0
}

func (c *chaos) Params() *ParamSet { return c.params }

// chaosQuantize mirrors quantizeToScale but works in a 3-octave (36
// semitone) span to match the wider excursion of the attractor's axes, and
// treats a scale parameter of 0 as "off" with 1..8 selecting scaleTables.
func chaosQuantize(value Sample, scaleParam, root int) Sample {
	if scaleParam <= 0 {
		return value
	}
	idx := scaleParam - 1
	noteIn := value * 36
	return quantizeToScale(noteIn, idx, root) / 12
}

func (c *chaos) ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer) {
	frames := outs[0].Frames()
	speedP := c.params.Get("speed", frames)
	rhoP := c.params.Get("rho", frames)
	sigmaP := c.params.Get("sigma", frames)
	betaP := c.params.Get("beta", frames)
	scaleP := c.params.Get("scale", frames)
	rootP := c.params.Get("root", frames)
	speedCV := ins[0].Chan(0)
	outX, outY, outZ, outGate := outs[0].Chan(0), outs[1].Chan(0), outs[2].Chan(0), outs[3].Chan(0)

	baseDt := Sample(0.005)
	srScaler := Sample(chaosRefSampleRate / maxF(c.sampleRate, 1))

	for i := 0; i < frames; i++ {
		speedMod := clampf(sampleAt(speedCV, i, 1), 0, 1e9)
		pSpeed := sampleAt(speedP, i, 0.5)
		pRho := sampleAt(rhoP, i, 28)
		pSigma := sampleAt(sigmaP, i, 10)
		pBeta := sampleAt(betaP, i, 2.666)
		pScale := int(sampleAt(scaleP, i, 0))
		pRoot := int(sampleAt(rootP, i, 0))

		dt := baseDt * pSpeed * speedMod * srScaler

		dx := pSigma * (c.y - c.x)
		dy := c.x*(pRho-c.z) - c.y
		dz := c.x*c.y - pBeta*c.z

		c.x += dx * dt
		c.y += dy * dt
		c.z += dz * dt

		rawX := c.x * 0.05
		rawY := c.y * 0.05
		rawZ := c.z*0.05 - 1

		if pScale > 0 {
			outX[i] = chaosQuantize(rawX, pScale, pRoot)
			outY[i] = chaosQuantize(rawY, pScale, pRoot)
			outZ[i] = chaosQuantize(rawZ, pScale, pRoot)
		} else {
			outX[i] = rawX
			outY[i] = rawY
			outZ[i] = rawZ
		}

		const zThreshold = 0.5
		if rawZ > zThreshold && c.lastZ <= zThreshold {
			c.triggerTimer = int(0.01 * c.sampleRate)
		}
		if c.triggerTimer > 0 {
			outGate[i] = 1
			c.triggerTimer--
		} else {
			outGate[i] = 0
		}
		c.lastZ = rawZ
	}
}
