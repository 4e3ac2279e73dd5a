package fluxgraph

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ModuleDesc describes one module to install: its stable identifier, its
// type tag (must match a registered module type), and its initial
// parameters.
type ModuleDesc struct {
	ID           string             `json:"id"`
	Type         string             `json:"type"`
	Params       map[string]float64 `json:"params,omitempty"`
	StringParams map[string]string  `json:"string_params,omitempty"`
}

// EdgeDesc describes one connection: "<id>.<port>" references for source
// and target, and a gain multiplier (defaults to 1.0 if omitted).
type EdgeDesc struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Gain    float64 `json:"gain"`
	gainSet bool
}

// UnmarshalJSON records whether "gain" was present, so a zero gain written
// explicitly differs from an omitted one (which defaults to 1.0).
func (e *EdgeDesc) UnmarshalJSON(data []byte) error {
	type alias EdgeDesc
	aux := &struct {
		Gain *float64 `json:"gain"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if aux.Gain != nil {
		e.Gain = *aux.Gain
		e.gainSet = true
	}
	return nil
}

// GraphDescription is the top-level install document: a module list and an
// edge list, matching the JSON shape in spec.md §6.
type GraphDescription struct {
	Modules []ModuleDesc `json:"modules"`
	Edges   []EdgeDesc   `json:"edges"`
}

// ParseGraphDescription decodes a JSON graph description. Structural JSON
// errors are returned as-is; semantic validation (unknown types, bad
// edges, cycles, output count) happens in Engine.SetGraph.
func ParseGraphDescription(data []byte) (*GraphDescription, error) {
	var desc GraphDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// splitPortRef splits "id.port" into its identifier and integer port
// index.
func splitPortRef(ref string) (string, int, error) {
	i := strings.LastIndex(ref, ".")
	if i < 0 {
		return "", 0, errors.New("port reference missing \".port\" suffix: " + ref)
	}
	port, err := strconv.Atoi(ref[i+1:])
	if err != nil {
		return "", 0, errors.New("port reference has non-numeric port: " + ref)
	}
	return ref[:i], port, nil
}
