package fluxgraph

// SetParam writes a numeric parameter on a module; unknown module or
// unknown parameter name is a silent no-op (spec.md §4.2).
func (e *Engine) SetParam(moduleID, name string, value Sample) {
	if inst, ok := e.byID[moduleID]; ok {
		inst.mod.Params().Set(name, value)
	}
}

// SetParamString writes a string parameter (scale name, preset tag) on a
// module; unknown module or parameter is a silent no-op.
func (e *Engine) SetParamString(moduleID, name, text string) {
	if inst, ok := e.byID[moduleID]; ok {
		inst.mod.Params().SetString(name, text)
	}
}

// voiceControllable names the modules the per-voice operations below
// address. Each operation is a thin wrapper that writes the module's
// "cv"/"gate"/"sync"/"velocity" named parameters through SetParam, so it
// takes effect only on a module that declares those names. None of the
// package's module types declares them (oscillators, drum voices, the
// TB-303 and envelopes take CV, gate and trigger on input ports), so on
// those modules the operations are silent no-ops like any other unknown
// SetParam. Writes land between blocks and are never observable
// intra-block (spec.md §4.2).
type voiceControllable interface {
	Params() *ParamSet
}

// SetVoiceCV writes the module's "cv" parameter (1 V/octave convention).
func (e *Engine) SetVoiceCV(moduleID string, cv Sample) {
	e.SetParam(moduleID, "cv", cv)
}

// SetVoiceGate sets the module's "gate" parameter high or low.
func (e *Engine) SetVoiceGate(moduleID string, on bool) {
	if on {
		e.SetParam(moduleID, "gate", 1)
	} else {
		e.SetParam(moduleID, "gate", 0)
	}
}

// TriggerVoiceGate forces a one-block rising edge on "gate": it is set
// high now and scheduled to drop back to low once the current block has
// been rendered, so the owning module's edge detector sees exactly one
// rising edge no matter how long the host waits before the next Render.
func (e *Engine) TriggerVoiceGate(moduleID string) {
	e.SetParam(moduleID, "gate", 1)
	e.pendingGateReset = append(e.pendingGateReset, func() {
		e.SetParam(moduleID, "gate", 0)
	})
}

// TriggerVoiceSync forces a one-block rising edge on "sync" (hard sync /
// phase reset input), with the same one-block-pulse semantics as
// TriggerVoiceGate.
func (e *Engine) TriggerVoiceSync(moduleID string) {
	e.SetParam(moduleID, "sync", 1)
	e.pendingGateReset = append(e.pendingGateReset, func() {
		e.SetParam(moduleID, "sync", 0)
	})
}

// SetVoiceVelocity writes "velocity" and, where the module declares it,
// "velocity_slew" — the time constant used by modules that smooth
// velocity-derived amplitude rather than jumping.
func (e *Engine) SetVoiceVelocity(moduleID string, velocity, slewSeconds Sample) {
	e.SetParam(moduleID, "velocity", velocity)
	e.SetParam(moduleID, "velocity_slew", slewSeconds)
}
