// patch.go - Lua patch loading for the fluxplay host

package main

import (
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/signalforge/fluxgraph"
)

// defaultPatch is used when no -patch flag is given: a single VCO through
// a resonant VCF into the output, playable from the keyboard.
const defaultPatch = `
patch = {
  modules = {
    {id = "vco1", type = "Oscillator", params = {base_freq = 220.0, waveform = 2}},
    {id = "vcf1", type = "Vcf", params = {cutoff = 1200.0, resonance = 0.35}},
    {id = "out",  type = "Output", params = {}},
  },
  edges = {
    {from = "vco1.0", to = "vcf1.0", gain = 1.0},
    {from = "vcf1.0", to = "out.0",  gain = 0.8},
  },
}
`

// loadPatch runs a Lua script that builds a global "patch" table shaped
// like spec.md §6's JSON graph description, then converts that table to
// JSON and parses it with fluxgraph.ParseGraphDescription. This is the
// scripting surface the teacher's external patch-data loaders (ahx/sid
// file loading, now removed) played at the host boundary.
func loadPatch(source string) (*fluxgraph.GraphDescription, error) {
	L := lua.NewState()
	defer L.Close()

	if err := L.DoString(source); err != nil {
		return nil, fmt.Errorf("fluxplay: lua patch error: %w", err)
	}

	patch := L.GetGlobal("patch")
	tbl, ok := patch.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("fluxplay: lua patch must set a global table named 'patch'")
	}

	data, err := json.Marshal(luaToGo(tbl))
	if err != nil {
		return nil, fmt.Errorf("fluxplay: converting lua patch to json: %w", err)
	}
	return fluxgraph.ParseGraphDescription(data)
}

// luaToGo recursively converts a gopher-lua value into plain Go
// interface{} data (maps, slices, float64, string, bool) suitable for
// json.Marshal. Lua tables with only consecutive integer keys starting at
// 1 become a []interface{}; any other table becomes a map[string]interface{}.
func luaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if isLuaArray(val) {
			arr := make([]interface{}, 0, val.Len())
			val.ForEach(func(_, v lua.LValue) {
				arr = append(arr, luaToGo(v))
			})
			return arr
		}
		m := make(map[string]interface{})
		val.ForEach(func(k, v lua.LValue) {
			m[k.String()] = luaToGo(v)
		})
		return m
	default:
		return nil
	}
}

func isLuaArray(t *lua.LTable) bool {
	n := t.Len()
	if n == 0 {
		return false
	}
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })
	return count == n
}
