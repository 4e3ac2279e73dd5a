package fluxgraph

// ParamBuffer holds a scalar parameter value and lazily materializes a
// block-length constant sequence from it. A write that changes the scalar
// marks the sequence dirty; the next read re-fills it on demand. Intra-block
// ramps are not modeled here — each module smooths on its own, per
// spec.md §3.
type ParamBuffer struct {
	value  Sample
	buf    []Sample
	dirty  bool
	filled int // number of frames the buf is currently valid for
}

// NewParamBuffer creates a parameter holder with an initial scalar value.
func NewParamBuffer(initial Sample) *ParamBuffer {
	return &ParamBuffer{value: initial, dirty: true}
}

// Set writes a new scalar value. A value equal to the current one is a
// documented no-op (matches the "set then set back is a no-op" round-trip
// law in spec.md §8).
func (p *ParamBuffer) Set(v Sample) {
	if v == p.value {
		return
	}
	p.value = v
	p.dirty = true
}

// Value returns the current scalar, irrespective of materialization state.
func (p *ParamBuffer) Value() Sample { return p.value }

// Buffer returns a length-frames constant sequence equal to Value(),
// re-filling only when the scalar changed or the requested length grew.
func (p *ParamBuffer) Buffer(frames int) []Sample {
	if p.dirty || p.filled < frames {
		if cap(p.buf) < frames {
			p.buf = make([]Sample, frames)
		} else {
			p.buf = p.buf[:frames]
		}
		for i := range p.buf {
			p.buf[i] = p.value
		}
		p.filled = frames
		p.dirty = false
	}
	return p.buf[:frames]
}

// ParamSet is a module's keyed collection of named parameters, built from
// the table-driven parameter definitions each module type declares (see
// spec.md §9, "port channel counts and parameter names are table-driven").
type ParamSet struct {
	defs   map[string]Sample // name -> default, defines the known set
	values map[string]*ParamBuffer
	strs   map[string]string
}

// NewParamSet builds a parameter set from a name->default table.
func NewParamSet(defaults map[string]Sample) *ParamSet {
	ps := &ParamSet{
		defs:   defaults,
		values: make(map[string]*ParamBuffer, len(defaults)),
	}
	for name, def := range defaults {
		ps.values[name] = NewParamBuffer(def)
	}
	return ps
}

// Has reports whether name is a declared parameter of this module type.
func (ps *ParamSet) Has(name string) bool {
	_, ok := ps.defs[name]
	return ok
}

// Set writes a numeric parameter; unknown names are a documented no-op
// (spec.md §4.2: "no-op if unknown").
func (ps *ParamSet) Set(name string, v Sample) {
	if pb, ok := ps.values[name]; ok {
		pb.Set(v)
	}
}

// SetString stores a small string parameter (scale name, sample path) used
// by the handful of modules that take one. The text is stored under any
// name; there is no check against the declared parameters.
func (ps *ParamSet) SetString(name, text string) {
	if ps.strs == nil {
		ps.strs = make(map[string]string)
	}
	ps.strs[name] = text
}

// String reads a string parameter, defaulting to "".
func (ps *ParamSet) String(name string) string {
	if ps.strs == nil {
		return ""
	}
	return ps.strs[name]
}

// Get returns the named parameter's block buffer, or a zero-length slice
// (which callers resolve through sampleAt's default) if unknown.
func (ps *ParamSet) Get(name string, frames int) []Sample {
	if pb, ok := ps.values[name]; ok {
		return pb.Buffer(frames)
	}
	return nil
}

// Scalar returns the named parameter's current scalar value, or def if the
// parameter is not declared.
func (ps *ParamSet) Scalar(name string, def Sample) Sample {
	if pb, ok := ps.values[name]; ok {
		return pb.Value()
	}
	return def
}
