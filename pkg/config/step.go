package config

import (
	"fmt"

	"github.com/Sternrassler/odata-export/pkg/transform"
	"gopkg.in/yaml.v3"
)

// Step is one transform step. In YAML it is a mapping with exactly one of
// the keys rename, cast or join:
//
//	- rename: {from: customer_id, to: cust_id}
//	- cast: {column: cust_id, type: string}
//	- join: {dataset: orders, left_key: cust_id, right_key: customer_id}
type Step struct {
	Op transform.Op
}

type stepYAML struct {
	Rename *struct {
		From string `yaml:"from"`
		To   string `yaml:"to"`
	} `yaml:"rename"`
	Cast *struct {
		Column string `yaml:"column"`
		Type   string `yaml:"type"`
	} `yaml:"cast"`
	Join *struct {
		Dataset  string `yaml:"dataset"`
		LeftKey  string `yaml:"left_key"`
		RightKey string `yaml:"right_key"`
	} `yaml:"join"`
}

// UnmarshalYAML builds the operation, rejecting unknown or ambiguous tags.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: transform step must be a mapping", value.Line)
	}
	for i := 0; i < len(value.Content); i += 2 {
		switch key := value.Content[i].Value; key {
		case "rename", "cast", "join":
		default:
			return fmt.Errorf("line %d: %w: %q", value.Content[i].Line, transform.ErrUnknownOp, key)
		}
	}
	if len(value.Content) != 2 {
		return fmt.Errorf("line %d: transform step must have exactly one operation", value.Line)
	}

	var raw stepYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch {
	case raw.Rename != nil:
		s.Op = transform.Rename{From: raw.Rename.From, To: raw.Rename.To}
	case raw.Cast != nil:
		kind, err := transform.ParseKind(raw.Cast.Type)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		s.Op = transform.Cast{Column: raw.Cast.Column, Kind: kind}
	case raw.Join != nil:
		s.Op = transform.Join{
			Dataset:  raw.Join.Dataset,
			LeftKey:  raw.Join.LeftKey,
			RightKey: raw.Join.RightKey,
		}
	default:
		return fmt.Errorf("line %d: transform step is empty", value.Line)
	}
	return nil
}
