package aspen

import (
	"encoding/json"
	"fmt"
)

// Trace reports where the current value of a property came from.
type Trace struct {
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	// Source is the node position of the last load that set the value.
	Source string `json:"source,omitempty"`
	Loaded bool   `json:"loaded"`
	Stored bool   `json:"stored"`
}

// Trace looks up the property at path, as accepted by FindProperty.
func (s *Schema) Trace(path string) (Trace, error) {
	p, ok := s.FindProperty(path)
	if !ok {
		return Trace{}, fmt.Errorf("aspen: trace: no property at %q from schema %q", path, s.displayName())
	}
	owner := p.schema
	t := Trace{
		Path:   joinDotted(owner.Path(), p.name),
		Stored: p.HasIn(owner),
	}
	if !p.IsSection() {
		t.Value = p.GetIn(owner)
	}
	if src, ok := owner.sources[p.name]; ok {
		t.Source = src.String()
		t.Loaded = true
	}
	return t, nil
}

// ToJSON serialises the trace for logs.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON decodes a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
