package topology

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentswarm/core"
)

// Spec is the serialized form of a graph declaration:
//
//	{
//	  "nodes": ["planner", ["search", "math"], "writer"],
//	  "edges": [["planner", "writer"]],
//	  "build_type": "WORKFLOW",
//	  "roots": ["planner"]
//	}
//
// Entries of "nodes" may be nested arrays as a pre-expansion convenience
// form of the group shorthand: the top-level list is sequential, a nested
// array is a parallel group, an array nested inside a parallel group is
// again sequential, alternating with depth. A flat list of strings declares
// nodes without implying edges.
type Spec struct {
	Nodes     []any      `json:"nodes" yaml:"nodes"`
	Edges     [][]string `json:"edges" yaml:"edges"`
	BuildType BuildType  `json:"build_type" yaml:"build_type"`
	Roots     []string   `json:"roots" yaml:"roots"`
}

// ParseJSON decodes a JSON graph spec into a ready-to-Build Builder.
func ParseJSON(data []byte) (*Builder, error) {
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to decode graph spec: %w", err)
	}
	return spec.Builder()
}

// ParseYAML decodes a YAML graph spec into a ready-to-Build Builder.
func ParseYAML(data []byte) (*Builder, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to decode graph spec: %w", err)
	}
	return spec.Builder()
}

// Builder converts the spec into a Builder with shorthand expanded and
// explicit edges applied.
func (s *Spec) Builder() (*Builder, error) {
	switch s.BuildType {
	case Workflow, Handoff:
	case "":
		return nil, &core.BuildError{Reason: "graph spec is missing build_type"}
	default:
		return nil, &core.BuildError{Reason: fmt.Sprintf("unknown build_type %q", s.BuildType)}
	}

	b := NewBuilder(s.BuildType)

	if nested(s.Nodes) {
		elements, err := parseElements(s.Nodes, true)
		if err != nil {
			return nil, err
		}
		b.Pipeline(elements...)
	} else {
		for _, n := range s.Nodes {
			id, ok := n.(string)
			if !ok {
				return nil, &core.BuildError{Reason: fmt.Sprintf("invalid node entry %v", n)}
			}
			b.AddNode(id)
		}
	}

	for _, e := range s.Edges {
		if len(e) != 2 {
			return nil, &core.BuildError{Reason: fmt.Sprintf("edge %v must have exactly two endpoints", e)}
		}
		b.AddEdge(e[0], e[1])
	}

	if len(s.Roots) > 0 {
		b.Roots(s.Roots...)
	}

	return b, nil
}

func nested(entries []any) bool {
	for _, e := range entries {
		if _, ok := e.(string); !ok {
			return true
		}
	}
	return false
}

// parseElements maps the nested array form onto shorthand elements. seq
// toggles with every nesting level.
func parseElements(entries []any, seq bool) ([]Element, error) {
	elements := make([]Element, 0, len(entries))
	for _, e := range entries {
		switch v := e.(type) {
		case string:
			elements = append(elements, N(v))
		case []any:
			inner, err := parseElements(v, !seq)
			if err != nil {
				return nil, err
			}
			if seq {
				// A nested array inside a sequence is a parallel group.
				elements = append(elements, Par(inner...))
			} else {
				elements = append(elements, Seq(inner...))
			}
		default:
			return nil, &core.BuildError{Reason: fmt.Sprintf("invalid node entry %v (%T)", e, e)}
		}
	}
	return elements, nil
}
