// Package fluxgraph is a block-processing audio synthesis engine: a directed
// graph of stateful DSP modules (oscillators, filters, effects, modulators,
// drum voices, sequencers) whose outputs are mixed and rendered as
// interleaved stereo audio in fixed-size blocks.
//
// A graph is installed from a declarative description (module list, edge
// list, one output module) and then driven by repeated calls to
// Engine.Render. Parameters and per-voice control events are written through
// the control surface (Engine.SetParam and friends) and take effect at the
// next block boundary.
package fluxgraph
