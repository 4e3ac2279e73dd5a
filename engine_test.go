package fluxgraph

import (
	"encoding/json"
	"math"
	"testing"
)

func sinePatch(freq float64) *GraphDescription {
	data, _ := json.Marshal(map[string]interface{}{
		"modules": []map[string]interface{}{
			{"id": "vco1", "type": "Oscillator", "params": map[string]float64{"base_freq": freq, "waveform": 0}},
			{"id": "out", "type": "Output", "params": map[string]float64{}},
		},
		"edges": []map[string]interface{}{
			{"from": "vco1.0", "to": "out.0", "gain": 1.0},
		},
	})
	desc, err := ParseGraphDescription(data)
	if err != nil {
		panic(err)
	}
	return desc
}

func TestEngine_RenderLengthAndClamping(t *testing.T) {
	e := NewEngine(ProcessContext{SampleRate: 48000, BlockSize: 256})
	if err := e.SetGraph(sinePatch(440)); err != nil {
		t.Fatalf("SetGraph: %v", err)
	}
	out := e.Render(100)
	if len(out) != 200 {
		t.Errorf("Render(100) returned %d samples, want 200 (interleaved stereo)", len(out))
	}
	for i, s := range out {
		if s != s {
			t.Fatalf("sample %d is NaN", i)
		}
		if s > 1 || s < -1 {
			t.Errorf("sample %d = %v, out of [-1,1] range", i, s)
		}
	}
}

// TestEngine_Determinism mirrors the teacher's TestGolden_Determinism: two
// independently built engines with the same patch produce bit-identical
// output.
func TestEngine_Determinism(t *testing.T) {
	e1 := NewEngine(ProcessContext{SampleRate: 48000, BlockSize: 256})
	if err := e1.SetGraph(sinePatch(440)); err != nil {
		t.Fatalf("SetGraph 1: %v", err)
	}
	e2 := NewEngine(ProcessContext{SampleRate: 48000, BlockSize: 256})
	if err := e2.SetGraph(sinePatch(440)); err != nil {
		t.Fatalf("SetGraph 2: %v", err)
	}

	out1 := e1.Render(1000)
	out2 := e2.Render(1000)
	for i := range out1 {
		if out1[i] != out2[i] {
			t.Fatalf("determinism failed at sample %d: %v != %v", i, out1[i], out2[i])
		}
	}
}

// TestEngine_RenderContinuity checks that splitting a render across two
// calls produces the same samples as one larger call, for a patch with no
// external nondeterminism.
func TestEngine_RenderContinuity(t *testing.T) {
	whole := NewEngine(ProcessContext{SampleRate: 48000, BlockSize: 256})
	if err := whole.SetGraph(sinePatch(440)); err != nil {
		t.Fatalf("SetGraph: %v", err)
	}
	wholeOut := whole.Render(600)

	split := NewEngine(ProcessContext{SampleRate: 48000, BlockSize: 256})
	if err := split.SetGraph(sinePatch(440)); err != nil {
		t.Fatalf("SetGraph: %v", err)
	}
	part1 := split.Render(256)
	part2 := split.Render(344)
	splitOut := append(part1, part2...)

	if len(wholeOut) != len(splitOut) {
		t.Fatalf("length mismatch: %d vs %d", len(wholeOut), len(splitOut))
	}
	for i := range wholeOut {
		if math.Abs(float64(wholeOut[i]-splitOut[i])) > 1e-6 {
			t.Errorf("sample %d diverged: one-shot=%v split=%v", i, wholeOut[i], splitOut[i])
		}
	}
}

func TestEngine_UnknownModuleType(t *testing.T) {
	e := NewEngine(ProcessContext{SampleRate: 48000, BlockSize: 64})
	data, _ := json.Marshal(map[string]interface{}{
		"modules": []map[string]interface{}{
			{"id": "x", "type": "NotARealModule", "params": map[string]float64{}},
		},
		"edges": []map[string]interface{}{},
	})
	desc, _ := ParseGraphDescription(data)
	err := e.SetGraph(desc)
	if err == nil {
		t.Fatal("expected an error for unknown module type")
	}
	if _, ok := err.(*UnknownModuleTypeError); !ok {
		t.Errorf("got %T, want *UnknownModuleTypeError", err)
	}
}

func TestEngine_BadEdge(t *testing.T) {
	e := NewEngine(ProcessContext{SampleRate: 48000, BlockSize: 64})
	data, _ := json.Marshal(map[string]interface{}{
		"modules": []map[string]interface{}{
			{"id": "out", "type": "Output", "params": map[string]float64{}},
		},
		"edges": []map[string]interface{}{
			{"from": "ghost.0", "to": "out.0", "gain": 1.0},
		},
	})
	desc, _ := ParseGraphDescription(data)
	err := e.SetGraph(desc)
	if _, ok := err.(*BadEdgeError); !ok {
		t.Errorf("got %T (%v), want *BadEdgeError", err, err)
	}
}

func TestEngine_GraphHasCycle(t *testing.T) {
	e := NewEngine(ProcessContext{SampleRate: 48000, BlockSize: 64})
	data, _ := json.Marshal(map[string]interface{}{
		"modules": []map[string]interface{}{
			{"id": "a", "type": "Gain", "params": map[string]float64{}},
			{"id": "b", "type": "Gain", "params": map[string]float64{}},
			{"id": "out", "type": "Output", "params": map[string]float64{}},
		},
		"edges": []map[string]interface{}{
			{"from": "a.0", "to": "b.0", "gain": 1.0},
			{"from": "b.0", "to": "a.0", "gain": 1.0},
			{"from": "a.0", "to": "out.0", "gain": 1.0},
		},
	})
	desc, _ := ParseGraphDescription(data)
	err := e.SetGraph(desc)
	if _, ok := err.(*GraphHasCycleError); !ok {
		t.Errorf("got %T (%v), want *GraphHasCycleError", err, err)
	}
}

func TestEngine_NoOutput(t *testing.T) {
	e := NewEngine(ProcessContext{SampleRate: 48000, BlockSize: 64})
	data, _ := json.Marshal(map[string]interface{}{
		"modules": []map[string]interface{}{
			{"id": "vco1", "type": "Oscillator", "params": map[string]float64{}},
		},
		"edges": []map[string]interface{}{},
	})
	desc, _ := ParseGraphDescription(data)
	err := e.SetGraph(desc)
	if _, ok := err.(*NoOutputError); !ok {
		t.Errorf("got %T (%v), want *NoOutputError", err, err)
	}
}

func TestEngine_MultipleOutputs(t *testing.T) {
	e := NewEngine(ProcessContext{SampleRate: 48000, BlockSize: 64})
	data, _ := json.Marshal(map[string]interface{}{
		"modules": []map[string]interface{}{
			{"id": "out1", "type": "Output", "params": map[string]float64{}},
			{"id": "out2", "type": "Output", "params": map[string]float64{}},
		},
		"edges": []map[string]interface{}{},
	})
	desc, _ := ParseGraphDescription(data)
	err := e.SetGraph(desc)
	if _, ok := err.(*MultipleOutputsError); !ok {
		t.Errorf("got %T (%v), want *MultipleOutputsError", err, err)
	}
}

func TestEngine_NoGraphInstalledRendersSilence(t *testing.T) {
	e := NewEngine(ProcessContext{SampleRate: 48000, BlockSize: 64})
	out := e.Render(10)
	for i, s := range out {
		if s != 0 {
			t.Errorf("sample %d = %v, want 0 before any graph is installed", i, s)
		}
	}
}

func TestParamSet_SetThenSetBackIsNoOp(t *testing.T) {
	ps := NewParamSet(map[string]Sample{"cutoff": 1000})
	buf1 := ps.Get("cutoff", 4)
	copy1 := append([]Sample(nil), buf1...)

	ps.Set("cutoff", 2000)
	ps.Set("cutoff", 1000)

	buf2 := ps.Get("cutoff", 4)
	for i := range copy1 {
		if copy1[i] != buf2[i] {
			t.Errorf("set-then-set-back changed value at %d: %v != %v", i, copy1[i], buf2[i])
		}
	}
}

func TestParamSet_UnknownNameIsNoOp(t *testing.T) {
	ps := NewParamSet(map[string]Sample{"cutoff": 1000})
	ps.Set("not_a_param", 99)
	if ps.Has("not_a_param") {
		t.Error("Has reported true for a name never declared")
	}
}
