package fluxgraph

// tapKey identifies a (module, input port) pair the host may monitor.
type tapKey struct {
	moduleID string
	port     int
}

// Tap subscribes to a module's input port so that ReadTap returns that
// port's most recently evaluated contents. Until the next render the
// tap reads as silence (spec.md §3 Tap / §4.1 Taps).
func (e *Engine) Tap(moduleID string, port int) {
	key := tapKey{moduleID, port}
	if _, exists := e.taps[key]; exists {
		return
	}
	inst, ok := e.byID[moduleID]
	if !ok || port < 0 || port >= len(inst.inPorts) {
		return
	}
	e.taps[key] = NewBuffer(inst.inPorts[port].Channels, e.frames)
}

// ReadTap returns a copy of the last evaluated contents of the given
// module's input port. The port must have been subscribed via Tap first;
// otherwise ReadTap returns nil.
func (e *Engine) ReadTap(moduleID string, port int) *Buffer {
	key := tapKey{moduleID, port}
	buf, ok := e.taps[key]
	if !ok {
		return nil
	}
	out := NewBuffer(buf.Channels(), buf.Frames())
	for c := 0; c < buf.Channels(); c++ {
		copy(out.Chan(c), buf.Chan(c))
	}
	return out
}

// updateTaps refreshes every subscribed tap from its module's current
// input-port contents; called once per Render after ProcessBlock.
func (e *Engine) updateTaps() {
	for key, buf := range e.taps {
		inst, ok := e.byID[key.moduleID]
		if !ok || key.port >= len(inst.inBufs) {
			continue
		}
		src := inst.inBufs[key.port]
		if buf.Frames() != src.Frames() || buf.Channels() != src.Channels() {
			buf.channels = make([][]Sample, src.Channels())
			buf.Resize(src.Frames())
		}
		for c := 0; c < src.Channels(); c++ {
			copy(buf.Chan(c), src.Chan(c))
		}
	}
}
