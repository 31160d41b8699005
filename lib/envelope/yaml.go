// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// YAMLNode converts the envelope to a yaml.Node mapping. Building the
// node tree by hand is what preserves field order — encoding a Go map
// through yaml.Marshal would sort keys.
func (e *Envelope) YAMLNode() *yaml.Node {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, field := range e.fields {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: field.Key}
		mapping.Content = append(mapping.Content, keyNode, yamlValueNode(field.Value))
	}
	return mapping
}

func yamlValueNode(value any) *yaml.Node {
	switch v := value.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}
	case []any:
		sequence := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v {
			sequence.Content = append(sequence.Content, yamlValueNode(item))
		}
		return sequence
	case *Envelope:
		return v.YAMLNode()
	}

	if text, ok := FormatNumber(value); ok {
		// Leave the tag implicit so the encoder resolves int vs float
		// from the textual form.
		return &yaml.Node{Kind: yaml.ScalarNode, Value: text}
	}

	// Unreachable for values produced by Decode or Build; render
	// anything else as its string form rather than panicking.
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fmt.Sprintf("%v", value)}
}
