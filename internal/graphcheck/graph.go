// Package graphcheck validates operator graphs against registered schemas
// without executing them.
//
// A graph lists the externally fed blobs and an ordered sequence of
// operators. Analyze walks the operators in order, checks each one against
// its schema and propagates inferred output shapes and placements to the
// operators that consume them.
package graphcheck

import (
	"io"

	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/tensor"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Graph is an ordered operator list with its externally provided blobs.
type Graph struct {
	Name  string               `yaml:"name" validate:"required"`
	Blobs []Blob               `yaml:"blobs" validate:"dive"`
	Ops   []*opdef.OperatorDef `yaml:"ops" validate:"required,min=1,dive,required"`
}

// Blob declares a graph input: its type, its shape and where it lives.
type Blob struct {
	Name   string              `yaml:"name" validate:"required"`
	Shape  tensor.TensorShape  `yaml:",inline"`
	Device tensor.DeviceOption `yaml:"device,omitempty"`
}

var validate = validator.New()

// LoadGraph decodes a YAML graph from r and validates its structure.
func LoadGraph(r io.Reader) (*Graph, error) {
	var g Graph
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return nil, errors.Wrap(err, "decoding graph")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks required fields and rejects duplicate blob declarations.
func (g *Graph) Validate() error {
	if err := validate.Struct(g); err != nil {
		return errors.Wrap(err, "invalid graph")
	}
	seen := make(map[string]bool, len(g.Blobs))
	for _, b := range g.Blobs {
		if seen[b.Name] {
			return errors.Errorf("invalid graph: blob %q declared twice", b.Name)
		}
		seen[b.Name] = true
		if b.Shape.UnknownShape {
			continue
		}
		for i, d := range b.Shape.Dims {
			if d < tensor.UnknownDim {
				return errors.Errorf("invalid graph: blob %q has dimension %d at index %d", b.Name, d, i)
			}
		}
	}
	return nil
}
