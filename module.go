package fluxgraph

// PortSpec describes one input or output port: how many channels it
// carries (1 = mono, 2 = stereo).
type PortSpec struct {
	Channels int
}

// Module is the contract every DSP node implements (spec.md §4.3).
// Reset re-derives sample-rate-dependent state without touching
// user-visible parameters; ProcessBlock consumes the accumulated input
// buffers and produces exactly len(out[i].Chan(0)) frames per output.
// A module owns its ParamSet for the lifetime of the instance.
type Module interface {
	Reset(sampleRate float64)
	ProcessBlock(ctx ProcessContext, ins []*Buffer, outs []*Buffer)
	Params() *ParamSet
}

// moduleFactory is the table-driven description of one module type: how to
// construct an instance and the shape of its ports. The module set is
// closed and known at compile time (spec.md §9); registerModule populates
// this table from each module family's own file via init(), giving the
// same net effect as a single tagged-variant switch without concentrating
// every module's construction logic in one file.
type moduleFactory struct {
	New         func(ctx ProcessContext) Module
	InputPorts  []PortSpec
	OutputPorts []PortSpec
}

var moduleRegistry = map[string]moduleFactory{}

// registerModule is called from package-level init() in each module family
// file to add one type tag to the closed registry.
func registerModule(tag string, f moduleFactory) {
	if _, exists := moduleRegistry[tag]; exists {
		panic("fluxgraph: duplicate module type " + tag)
	}
	moduleRegistry[tag] = f
}

// KnownModuleTypes returns the set of type tags the engine can install,
// in unspecified order. Exposed for host tooling (e.g. a patch editor
// populating a module palette).
func KnownModuleTypes() []string {
	tags := make([]string, 0, len(moduleRegistry))
	for tag := range moduleRegistry {
		tags = append(tags, tag)
	}
	return tags
}
