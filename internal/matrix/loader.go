package matrix

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// fileCase is the YAML shape of one test case. Params is kept as a node so
// the document order of parameter keys survives decoding.
type fileCase struct {
	ID          int       `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Purpose     string    `yaml:"purpose"`
	Expected    string    `yaml:"expected"`
	Params      yaml.Node `yaml:"params"`
}

type fileMatrix struct {
	Cases []fileCase `yaml:"cases"`
}

// Parse decodes the "cases" section of a YAML document into a registry.
// It returns (nil, nil) when the document defines no cases, so callers can
// fall back to Default.
//
// A YAML sequence value is a sweep; any other value is a scalar:
//
//	cases:
//	  - id: 1
//	    name: DOS_vs_phi
//	    params:
//	      em: 0.0
//	      phi: [0.0, 3.14]
func Parse(data []byte) (*Registry, error) {
	var doc fileMatrix
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse matrix: %w", err)
	}
	if len(doc.Cases) == 0 {
		return nil, nil
	}

	cases := make([]TestCase, 0, len(doc.Cases))
	for _, fc := range doc.Cases {
		params, err := decodeParams(&fc.Params)
		if err != nil {
			return nil, fmt.Errorf("test case %d: %w", fc.ID, err)
		}
		cases = append(cases, TestCase{
			ID:          fc.ID,
			Name:        fc.Name,
			Description: fc.Description,
			Purpose:     fc.Purpose,
			Expected:    fc.Expected,
			Params:      params,
		})
	}
	return NewRegistry(cases...)
}

func decodeParams(node *yaml.Node) ([]Param, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("params must be a mapping (line %d)", node.Line)
	}

	params := make([]Param, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch val.Kind {
		case yaml.SequenceNode:
			values := make([]Value, 0, len(val.Content))
			for _, item := range val.Content {
				v, err := decodeValue(item)
				if err != nil {
					return nil, fmt.Errorf("sweep %q: %w", key.Value, err)
				}
				values = append(values, v)
			}
			params = append(params, Swept(key.Value, values...))
		case yaml.ScalarNode:
			v, err := decodeValue(val)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", key.Value, err)
			}
			params = append(params, Scalar(key.Value, v))
		default:
			return nil, fmt.Errorf("parameter %q must be a scalar or a list (line %d)", key.Value, val.Line)
		}
	}
	return params, nil
}

func decodeValue(node *yaml.Node) (Value, error) {
	if node.Kind != yaml.ScalarNode {
		return Value{}, fmt.Errorf("nested value at line %d", node.Line)
	}
	switch node.ShortTag() {
	case "!!int":
		i, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid integer %q at line %d", node.Value, node.Line)
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("invalid number %q at line %d", node.Value, node.Line)
		}
		return Float(f), nil
	default:
		return String(node.Value), nil
	}
}
