package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/beamline/internal/tensor"
)

// TensorValue is a YAML scalar or (nested) sequence of numbers decoded
// into a tensor. The zero value means "not set".
type TensorValue struct {
	t *tensor.Tensor
}

// T builds a TensorValue of shape (len(vs),).
func T(vs ...float64) TensorValue { return TensorValue{t: tensor.Vector(vs...)} }

// S builds a scalar TensorValue.
func S(v float64) TensorValue { return TensorValue{t: tensor.Scalar(v)} }

// FromTensor wraps an existing tensor.
func FromTensor(t *tensor.Tensor) TensorValue { return TensorValue{t: t} }

func (v TensorValue) IsZero() bool { return v.t == nil }

// Tensor returns the decoded tensor, nil if unset.
func (v TensorValue) Tensor() *tensor.Tensor { return v.t }

func (v *TensorValue) UnmarshalYAML(node *yaml.Node) error {
	data, shape, err := decodeNode(node)
	if err != nil {
		return err
	}
	t, err := tensor.New(data, shape)
	if err != nil {
		return err
	}
	v.t = t
	return nil
}

func decodeNode(node *yaml.Node) ([]float64, tensor.Shape, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return []float64{f}, tensor.Shape{}, nil
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			return nil, nil, fmt.Errorf("line %d: empty sequence", node.Line)
		}
		var data []float64
		var inner tensor.Shape
		for i, child := range node.Content {
			d, s, err := decodeNode(child)
			if err != nil {
				return nil, nil, err
			}
			if i == 0 {
				inner = s
			} else if !s.Equal(inner) {
				return nil, nil, fmt.Errorf("line %d: ragged sequence, %v vs %v", child.Line, s, inner)
			}
			data = append(data, d...)
		}
		return data, append(tensor.Shape{len(node.Content)}, inner...), nil
	default:
		return nil, nil, fmt.Errorf("line %d: expected number or sequence", node.Line)
	}
}

func (v TensorValue) MarshalYAML() (interface{}, error) {
	if v.t == nil {
		return nil, nil
	}
	return encode(v.t.Raw(), v.t.Shape()), nil
}

func encode(data []float64, shape tensor.Shape) interface{} {
	if len(shape) == 0 {
		return data[0]
	}
	stride := len(data) / shape[0]
	out := make([]interface{}, shape[0])
	for i := range out {
		out[i] = encode(data[i*stride:(i+1)*stride], shape[1:])
	}
	return out
}
