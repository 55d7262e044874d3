package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/DoyleJ11/opsboard-relay/internal/graph"
)

var (
	ErrNotObject = errors.New("payload must be a JSON object")
	ErrNull      = errors.New("field is null")
)

// FieldError rejects one field of a patch; the rest of the patch still applies.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("field %q: %v", e.Field, e.Err) }
func (e *FieldError) Unwrap() error { return e.Err }

// RejectedFields lists the field names carried by err, sorted.
func RejectedFields(err error) []string {
	var out []string
	for _, e := range multierr.Errors(err) {
		var fe *FieldError
		if errors.As(e, &fe) {
			out = append(out, fe.Field)
		}
	}
	sort.Strings(out)
	return out
}

// BoardPatch carries the board fields present in an update. A nil pointer
// means the field was absent.
type BoardPatch struct {
	Nodes   *[]Object
	Edges   *[]Object
	Paths   *[]Object
	Graph3D *graph.Graph
}

func (p BoardPatch) Empty() bool {
	return p.Nodes == nil && p.Edges == nil && p.Paths == nil && p.Graph3D == nil
}

// Fields names the fields present, in wire order.
func (p BoardPatch) Fields() []string {
	var out []string
	if p.Nodes != nil {
		out = append(out, "nodes")
	}
	if p.Edges != nil {
		out = append(out, "edges")
	}
	if p.Paths != nil {
		out = append(out, "paths")
	}
	if p.Graph3D != nil {
		out = append(out, "graph3d")
	}
	return out
}

// ParseBoardPatch decodes each known key of raw on its own. A key holding
// null or the wrong shape is reported as a FieldError and left out of the
// patch; unknown keys are ignored.
func ParseBoardPatch(raw []byte) (BoardPatch, error) {
	fields, err := splitObject(raw)
	if err != nil {
		return BoardPatch{}, err
	}
	var p BoardPatch
	var errs error
	for _, name := range []string{"nodes", "edges", "paths"} {
		v, ok := fields[name]
		if !ok {
			continue
		}
		list, err := decodeObjects(v)
		if err != nil {
			errs = multierr.Append(errs, &FieldError{Field: name, Err: err})
			continue
		}
		switch name {
		case "nodes":
			p.Nodes = &list
		case "edges":
			p.Edges = &list
		case "paths":
			p.Paths = &list
		}
	}
	if v, ok := fields["graph3d"]; ok {
		g, err := decodeGraph(v)
		if err != nil {
			errs = multierr.Append(errs, &FieldError{Field: "graph3d", Err: err})
		} else {
			p.Graph3D = &g
		}
	}
	return p, errs
}

// ParseGraph3D decodes a bare {nodes, edges} payload as a graph3d patch.
func ParseGraph3D(raw []byte) (BoardPatch, error) {
	g, err := decodeGraph(raw)
	if err != nil {
		return BoardPatch{}, &FieldError{Field: "graph3d", Err: err}
	}
	return BoardPatch{Graph3D: &g}, nil
}

func splitObject(raw []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, ErrNotObject
	}
	return fields, nil
}

func isNull(v json.RawMessage) bool { return len(v) == 0 || string(v) == "null" }

func decodeObjects(v json.RawMessage) ([]Object, error) {
	if isNull(v) {
		return nil, ErrNull
	}
	var list []Object
	if err := json.Unmarshal(v, &list); err != nil {
		return nil, fmt.Errorf("want an array of objects: %w", err)
	}
	for i, o := range list {
		if o == nil {
			return nil, fmt.Errorf("element %d is null", i)
		}
	}
	if list == nil {
		list = []Object{}
	}
	return list, nil
}

// decodeGraph wants both nodes and edges present. Node ids must be unique
// and types known; bad edges are pruned rather than rejected.
func decodeGraph(v json.RawMessage) (graph.Graph, error) {
	if isNull(v) {
		return graph.Graph{}, ErrNull
	}
	fields, err := splitObject(v)
	if err != nil {
		return graph.Graph{}, fmt.Errorf("want {nodes, edges}: %w", err)
	}
	for _, key := range []string{"nodes", "edges"} {
		raw, ok := fields[key]
		if !ok {
			return graph.Graph{}, fmt.Errorf("missing %q", key)
		}
		if isNull(raw) {
			return graph.Graph{}, fmt.Errorf("%q: %w", key, ErrNull)
		}
	}
	var g graph.Graph
	if err := json.Unmarshal(v, &g); err != nil {
		return graph.Graph{}, fmt.Errorf("want {nodes, edges}: %w", err)
	}
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		switch {
		case n.ID == "":
			return graph.Graph{}, errors.New("node without id")
		case seen[n.ID]:
			return graph.Graph{}, fmt.Errorf("duplicate node id %q", n.ID)
		case !n.Type.Valid():
			return graph.Graph{}, fmt.Errorf("node %q: unknown type %q", n.ID, n.Type)
		}
		seen[n.ID] = true
	}
	g.Sanitize()
	return g, nil
}
