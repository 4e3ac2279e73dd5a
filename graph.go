package fluxgraph

import "sort"

// edgeDesc is a resolved, validated edge: concrete instance pointers and
// port indices rather than the string identifiers the description used.
type edgeDesc struct {
	from     *instance
	fromPort int
	to       *instance
	toPort   int
	gain     Sample
}

type instance struct {
	id       string
	typeTag  string
	mod      Module
	inPorts  []PortSpec
	outPorts []PortSpec
	inBufs   []*Buffer
	outBufs  []*Buffer
}

// externalInputReceiver is implemented by the AudioIn module type so the
// engine can hand it the host-supplied buffer before each render.
type externalInputReceiver interface {
	SetExternalInput(samples []Sample)
}

// outputReader is implemented by the Output module type so the engine can
// pull the final stereo buffer after evaluating the graph.
type outputReader interface {
	Output() *Buffer
}

// Engine owns an installed graph and renders it block by block. It is the
// single-threaded evaluator described in spec.md §5: all mutation below
// happens between Render calls, never concurrently with one.
type Engine struct {
	ctx ProcessContext

	order         []*instance
	byID          map[string]*instance
	edgesByTarget map[*instance][]edgeDesc
	output        *instance
	frames        int
	external      []Sample

	taps map[tapKey]*Buffer // subscribed (module, input port) -> last evaluated copy

	pendingGateReset []func() // one-block-pulse bookkeeping for TriggerVoiceGate/Sync
}

// NewEngine creates an engine with no graph installed; Render returns
// silence until SetGraph succeeds.
func NewEngine(ctx ProcessContext) *Engine {
	return &Engine{
		ctx:  ctx,
		byID: make(map[string]*instance),
		taps: make(map[tapKey]*Buffer),
	}
}

// SetSampleRate updates the engine's sample rate and resets every installed
// module's sample-rate-derived state (spec.md §3 Lifecycle).
func (e *Engine) SetSampleRate(sr float64) {
	e.ctx.SampleRate = sr
	for _, inst := range e.order {
		inst.mod.Reset(sr)
	}
}

// SetGraph validates and installs a new graph description. Installation is
// atomic: on any error the previously installed graph (if any) keeps
// running untouched.
func (e *Engine) SetGraph(desc *GraphDescription) error {
	instances := make(map[string]*instance, len(desc.Modules))
	order := make([]*instance, 0, len(desc.Modules))

	for _, md := range desc.Modules {
		factory, ok := moduleRegistry[md.Type]
		if !ok {
			return &UnknownModuleTypeError{Tag: md.Type}
		}
		mod := factory.New(e.ctx)
		for name, v := range md.Params {
			if !mod.Params().Has(name) {
				return &InvalidParamError{Module: md.ID, Param: name}
			}
			mod.Params().Set(name, Sample(v))
		}
		for name, v := range md.StringParams {
			if !mod.Params().Has(name) {
				return &InvalidParamError{Module: md.ID, Param: name}
			}
			mod.Params().SetString(name, v)
		}
		inst := &instance{
			id:       md.ID,
			typeTag:  md.Type,
			mod:      mod,
			inPorts:  factory.InputPorts,
			outPorts: factory.OutputPorts,
		}
		inst.inBufs = make([]*Buffer, len(inst.inPorts))
		for i, p := range inst.inPorts {
			inst.inBufs[i] = NewBuffer(p.Channels, e.frames)
		}
		inst.outBufs = make([]*Buffer, len(inst.outPorts))
		for i, p := range inst.outPorts {
			inst.outBufs[i] = NewBuffer(p.Channels, e.frames)
		}
		instances[md.ID] = inst
		order = append(order, inst)
	}

	edges := make([]edgeDesc, 0, len(desc.Edges))
	indeg := make(map[string]int, len(instances))
	adj := make(map[string][]string, len(instances))
	for _, ed := range desc.Edges {
		fromID, fromPort, err := splitPortRef(ed.From)
		if err != nil {
			return &BadEdgeError{From: ed.From, To: ed.To, Reason: err.Error()}
		}
		toID, toPort, err := splitPortRef(ed.To)
		if err != nil {
			return &BadEdgeError{From: ed.From, To: ed.To, Reason: err.Error()}
		}
		fromInst, ok := instances[fromID]
		if !ok {
			return &BadEdgeError{From: ed.From, To: ed.To, Reason: "unknown source module " + fromID}
		}
		toInst, ok := instances[toID]
		if !ok {
			return &BadEdgeError{From: ed.From, To: ed.To, Reason: "unknown target module " + toID}
		}
		if fromPort < 0 || fromPort >= len(fromInst.outPorts) {
			return &BadEdgeError{From: ed.From, To: ed.To, Reason: "source port out of range"}
		}
		if toPort < 0 || toPort >= len(toInst.inPorts) {
			return &BadEdgeError{From: ed.From, To: ed.To, Reason: "target port out of range"}
		}
		gain := Sample(ed.Gain)
		if ed.Gain == 0 && !ed.gainSet {
			gain = 1
		}
		edges = append(edges, edgeDesc{from: fromInst, fromPort: fromPort, to: toInst, toPort: toPort, gain: gain})
		if fromID != toID {
			adj[fromID] = append(adj[fromID], toID)
			indeg[toID]++
		}
	}

	topo, err := kahnSort(order, adj, indeg)
	if err != nil {
		return err
	}

	var outInst *instance
	var multiple []string
	for _, inst := range order {
		if inst.typeTag == "Output" {
			if outInst == nil {
				outInst = inst
			}
			multiple = append(multiple, inst.id)
		}
	}
	if outInst == nil {
		return &NoOutputError{}
	}
	if len(multiple) > 1 {
		return &MultipleOutputsError{Ids: multiple}
	}

	edgesByTarget := make(map[*instance][]edgeDesc, len(instances))
	for _, ed := range edges {
		edgesByTarget[ed.to] = append(edgesByTarget[ed.to], ed)
	}

	e.order = topo
	e.byID = instances
	e.edgesByTarget = edgesByTarget
	e.output = outInst
	e.taps = make(map[tapKey]*Buffer)
	e.pendingGateReset = nil
	return nil
}

func kahnSort(all []*instance, adj map[string][]string, indeg map[string]int) ([]*instance, error) {
	queue := make([]*instance, 0, len(all))
	remaining := make(map[string]int, len(all))
	for _, inst := range all {
		remaining[inst.id] = indeg[inst.id]
		if remaining[inst.id] == 0 {
			queue = append(queue, inst)
		}
	}
	// Deterministic order: stable by original declaration order.
	sort.SliceStable(queue, func(i, j int) bool { return false })

	byID := make(map[string]*instance, len(all))
	for _, inst := range all {
		byID[inst.id] = inst
	}

	out := make([]*instance, 0, len(all))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		for _, nextID := range adj[n.id] {
			remaining[nextID]--
			if remaining[nextID] == 0 {
				queue = append(queue, byID[nextID])
			}
		}
	}
	if len(out) != len(all) {
		return nil, &GraphHasCycleError{}
	}
	return out, nil
}

// Render advances the graph by frames samples and returns an interleaved
// stereo buffer of length 2*frames (L, R, L, R, ...).
func (e *Engine) Render(frames int) []Sample {
	out := make([]Sample, 2*frames)
	if e.output == nil {
		return out
	}
	if frames != e.frames {
		e.resizeAll(frames)
	}

	// Clear and fill each module's inputs immediately before calling it, in
	// topological order, so an edge between two modules in the same block
	// carries that block's output, not the previous one's. A self-edge
	// (from == to) still reads the target's own outBufs from before this
	// call, since those aren't overwritten until the target's own
	// ProcessBlock runs below: the one-block feedback delay that makes such
	// a cycle valid at all.
	for _, inst := range e.order {
		for _, b := range inst.inBufs {
			b.Clear()
		}
		for _, ed := range e.edgesByTarget[inst] {
			mixInto(inst.inBufs[ed.toPort], ed.from.outBufs[ed.fromPort], ed.gain)
		}
		if recv, ok := inst.mod.(externalInputReceiver); ok {
			recv.SetExternalInput(e.external)
		}
		inst.mod.ProcessBlock(e.ctx, inst.inBufs, inst.outBufs)
	}
	e.updateTaps()

	if or, ok := e.output.mod.(outputReader); ok {
		buf := or.Output()
		l, r := buf.Chan(0), buf.Chan(1)
		for i := 0; i < frames; i++ {
			out[2*i] = clampSample(l[i])
			out[2*i+1] = clampSample(r[i])
		}
	}

	for _, fn := range e.pendingGateReset {
		fn()
	}
	e.pendingGateReset = nil

	return out
}

func (e *Engine) resizeAll(frames int) {
	e.frames = frames
	for _, inst := range e.order {
		for _, b := range inst.inBufs {
			b.Resize(frames)
		}
		for _, b := range inst.outBufs {
			b.Resize(frames)
		}
	}
}

// SetExternalInput supplies the host audio-in buffer for the next render;
// its length must equal the next Render's frame count.
func (e *Engine) SetExternalInput(samples []Sample) { e.external = samples }

// ClearExternalInput removes the external input; AudioIn emits silence
// until SetExternalInput is called again.
func (e *Engine) ClearExternalInput() { e.external = nil }

// Module exposes the live module instance for a given id, for control
// surface operations that need a type-specific capability.
func (e *Engine) Module(id string) Module {
	if inst, ok := e.byID[id]; ok {
		return inst.mod
	}
	return nil
}
