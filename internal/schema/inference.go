package schema

import (
	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/tensor"
	"github.com/pkg/errors"
)

// InferTensor computes the output types and shapes of def from its input
// descriptors. Without a configured function every output is unknown.
func (s *Schema) InferTensor(def *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	out, err := s.tensorInference(def, in)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: tensor inference", s.name)
	}
	return out, nil
}

// InferCost estimates the cost of def. It fails with ErrNoCostInference
// when the schema has no cost function.
func (s *Schema) InferCost(def *opdef.OperatorDef, in []tensor.TensorShape) (Cost, error) {
	if s.costInference == nil {
		return Cost{}, errors.Wrapf(ErrNoCostInference, "%s", s.name)
	}
	c, err := s.costInference(def, in)
	if err != nil {
		return Cost{}, errors.Wrapf(err, "%s: cost inference", s.name)
	}
	return c, nil
}

// InferDevice returns the required device of every input and output of def.
func (s *Schema) InferDevice(def *opdef.OperatorDef) (in, out []tensor.DeviceOption) {
	return s.deviceInference(def)
}

// CheckInputPlacement compares the actual placement of def's inputs with
// the placement InferDevice requires. Schemas marked InputsCanCrossDevices
// accept inputs on any device.
func (s *Schema) CheckInputPlacement(def *opdef.OperatorDef, actual []tensor.DeviceOption) error {
	if len(actual) != def.NumInputs() {
		return errors.Wrapf(ErrDevicePlacement, "%s: got %d input placements for %d inputs",
			s.name, len(actual), def.NumInputs())
	}
	if s.inputsCanCrossDevices {
		return nil
	}
	required, _ := s.InferDevice(def)
	if len(required) != def.NumInputs() {
		return errors.Wrapf(ErrDevicePlacement, "%s: device inference placed %d of %d inputs",
			s.name, len(required), def.NumInputs())
	}
	for i := range actual {
		if actual[i] != required[i] {
			return errors.Wrapf(ErrDevicePlacement, "%s: input %d (%s) is on %s, operator requires %s",
				s.name, i, def.Inputs[i], actual[i], required[i])
		}
	}
	return nil
}

func unknownShapes(def *opdef.OperatorDef, _ []tensor.TensorShape) ([]tensor.TensorShape, error) {
	out := make([]tensor.TensorShape, def.NumOutputs())
	for i := range out {
		out[i] = tensor.UnknownTensorShape()
	}
	return out, nil
}

func sameDevice(def *opdef.OperatorDef) (in, out []tensor.DeviceOption) {
	dev := def.DeviceOption()
	in = make([]tensor.DeviceOption, def.NumInputs())
	for i := range in {
		in[i] = dev
	}
	out = make([]tensor.DeviceOption, def.NumOutputs())
	for i := range out {
		out[i] = dev
	}
	return in, out
}

// IdenticalTypeAndShape makes output i a copy of input i. Outputs without
// a matching input are unknown; inputs without a matching output are ignored.
func (s *Schema) IdenticalTypeAndShape() *Schema {
	return s.TensorInferenceFunction(func(def *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
		out := make([]tensor.TensorShape, def.NumOutputs())
		for i := range out {
			if i < len(in) {
				out[i] = in[i].Clone()
			} else {
				out[i] = tensor.UnknownTensorShape()
			}
		}
		return out, nil
	})
}

// IdenticalTypeAndShapeOfInput produces a single output copied from input idx.
func (s *Schema) IdenticalTypeAndShapeOfInput(idx int) *Schema {
	return s.TensorInferenceFunction(func(_ *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
		if idx < 0 || idx >= len(in) {
			return nil, errors.Wrapf(ErrInvalidInput, "input %d requested, %d inputs given", idx, len(in))
		}
		return []tensor.TensorShape{in[idx].Clone()}, nil
	})
}

// IdenticalTypeAndShapeOfInputDim produces a single rank-1 output whose
// only dimension is dimension dim of input idx, with input idx's type.
func (s *Schema) IdenticalTypeAndShapeOfInputDim(idx, dim int) *Schema {
	return s.TensorInferenceFunction(func(_ *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
		if idx < 0 || idx >= len(in) {
			return nil, errors.Wrapf(ErrInvalidInput, "input %d requested, %d inputs given", idx, len(in))
		}
		src := in[idx]
		if src.UnknownShape {
			return []tensor.TensorShape{{Dims: tensor.Shape{tensor.UnknownDim}, DataType: src.DataType}}, nil
		}
		if dim < 0 || dim >= src.Rank() {
			return nil, errors.Wrapf(ErrInvalidInput, "dimension %d requested, input %d has rank %d", dim, idx, src.Rank())
		}
		return []tensor.TensorShape{tensor.NewTensorShape([]int{src.Dims[dim]}, src.DataType)}, nil
	})
}

// ScalarType makes every declared output a scalar of type dt.
func (s *Schema) ScalarType(dt tensor.DataType) *Schema {
	return s.TensorInferenceFunction(func(def *opdef.OperatorDef, _ []tensor.TensorShape) ([]tensor.TensorShape, error) {
		out := make([]tensor.TensorShape, def.NumOutputs())
		for i := range out {
			out[i] = tensor.TensorShape{Dims: tensor.Shape{}, DataType: dt}
		}
		return out, nil
	})
}
