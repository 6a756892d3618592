package operators

import (
	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/schema"
	"github.com/born-ml/opschema/internal/tensor"
	"github.com/pkg/errors"
)

// registerShapeOps adds shape manipulation schemas to the registry.
func registerShapeOps(r *schema.Registry) {
	register(r, "Reshape").
		NumInputsRange(1, 2).
		NumOutputs(1).
		AllowInplacePairs(schema.InplacePair{In: 0, Out: 0}).
		TensorInferenceFunction(reshapeInference).
		CostInferenceFunction(copyCost).
		SetDoc("Reshapes the input without changing its data. A 0 in the new shape copies the input dimension, a single -1 is inferred.").
		Arg("shape", "New shape. Without it the shape is read from the second input at run time.").
		Input(0, "data", "Tensor to reshape.").
		Input(1, "new_shape", "Optional 1-D int64 tensor holding the new shape.").
		Output(0, "reshaped", "Reshaped tensor.")

	register(r, "Transpose").
		NumInputs(1).
		NumOutputs(1).
		TensorInferenceFunction(transposeInference).
		CostInferenceFunction(copyCost).
		SetDoc("Permutes the dimensions of the input.").
		Arg("perm", "Permutation of the axes, default reverses them.").
		Input(0, "data", "Input tensor.").
		Output(0, "transposed", "Transposed tensor.")

	register(r, "Concat").
		NumInputsRange(1, schema.Unbounded).
		NumOutputsRange(1, 2).
		TensorInferenceFunction(concatInference).
		CostInferenceFunction(concatCost).
		SetDoc("Concatenates the inputs along one axis. All other dimensions must match.").
		Arg("axis", "Axis to concatenate on, default 0.").
		Output(0, "concat_result", "Concatenated tensor.").
		Output(1, "split_info", "Optional int32 tensor with the size of each input along axis.")

	register(r, "Split").
		NumInputsRange(1, 2).
		NumOutputsRange(1, schema.Unbounded).
		TensorInferenceFunction(splitInference).
		CostInferenceFunction(copyCost).
		SetDoc("Splits the input into several outputs along one axis.").
		Arg("axis", "Axis to split on, default 0.").
		Arg("split", "Length of each output along axis. Equal parts when omitted.").
		Input(0, "input", "Tensor to split.").
		Input(1, "split", "Optional 1-D tensor of split lengths.")

	register(r, "Flatten").
		NumInputs(1).
		NumOutputs(1).
		AllowOneToOneInplace().
		TensorInferenceFunction(flattenInference).
		CostInferenceFunction(copyCost).
		SetDoc("Flattens the input into a matrix: dimensions before axis form the rows, the rest the columns.").
		Arg("axis", "First dimension of the columns, default 1.").
		Input(0, "input", "Tensor of rank >= axis.").
		Output(0, "output", "Rank-2 tensor.")

	register(r, "Shape").
		NumInputs(1).
		NumOutputs(1).
		TensorInferenceFunction(shapeInference).
		SetDoc("Produces a 1-D int64 tensor holding the shape of the input.").
		Input(0, "data", "Any tensor.").
		Output(0, "shape", "Shape of data.")

	register(r, "Size").
		NumInputs(1).
		NumOutputs(1).
		ScalarType(tensor.Int64).
		SetDoc("Produces a scalar int64 holding the number of elements of the input.").
		Input(0, "data", "Any tensor.").
		Output(0, "size", "Element count of data.")

	register(r, "ReduceBackSum").
		NumInputs(1).
		NumOutputs(1).
		IdenticalTypeAndShapeOfInputDim(0, 0).
		CostInferenceFunction(elementwiseCost(1)).
		SetDoc("Sums a rank-2 input over its last dimension.").
		Input(0, "X", "Matrix of shape [N, D].").
		Output(0, "Y", "Vector of shape [N].")
}

func reshapeInference(def *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	if err := requireInputs(in, 1); err != nil {
		return nil, err
	}
	x := in[0]
	target := def.ArgInts("shape")
	if target == nil {
		return unknownOutputs(def, x.DataType), nil
	}

	dims := make(tensor.Shape, len(target))
	inferIdx := -1
	product, productKnown := 1, true
	for i, d := range target {
		switch {
		case d == 0:
			if x.UnknownShape {
				dims[i] = tensor.UnknownDim
				break
			}
			if i >= x.Rank() {
				return nil, errors.Wrapf(schema.ErrInvalidInput, "shape[%d] = 0 but input has rank %d", i, x.Rank())
			}
			dims[i] = x.Dims[i]
		case d == -1:
			if inferIdx >= 0 {
				return nil, errors.Wrap(schema.ErrInvalidInput, "shape has more than one -1")
			}
			inferIdx = i
			continue
		case d < -1:
			return nil, errors.Wrapf(schema.ErrInvalidInput, "invalid shape value %d", d)
		default:
			dims[i] = int(d)
		}
		if dims[i] == tensor.UnknownDim {
			productKnown = false
			continue
		}
		product *= dims[i]
	}

	total := x.NumElements()
	switch {
	case inferIdx >= 0 && (total < 0 || !productKnown):
		dims[inferIdx] = tensor.UnknownDim
	case inferIdx >= 0:
		if product == 0 || total%product != 0 {
			return nil, errors.Wrapf(schema.ErrInvalidInput, "cannot reshape %d elements into %v", total, target)
		}
		dims[inferIdx] = total / product
	case total >= 0 && productKnown && total != product:
		return nil, errors.Wrapf(schema.ErrInvalidInput, "cannot reshape %d elements into %v", total, target)
	}
	return []tensor.TensorShape{{Dims: dims, DataType: x.DataType}}, nil
}

func transposeInference(def *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	if err := requireInputs(in, 1); err != nil {
		return nil, err
	}
	x := in[0]
	if x.UnknownShape {
		return unknownOutputs(def, x.DataType), nil
	}
	rank := x.Rank()
	perm := def.ArgInts("perm")
	if perm == nil {
		perm = make([]int64, rank)
		for i := range perm {
			perm[i] = int64(rank - 1 - i)
		}
	}
	if len(perm) != rank {
		return nil, errors.Wrapf(schema.ErrInvalidInput, "perm has %d axes, input has rank %d", len(perm), rank)
	}
	seen := make([]bool, rank)
	dims := make(tensor.Shape, rank)
	for i, p := range perm {
		if p < 0 || int(p) >= rank || seen[p] {
			return nil, errors.Wrapf(schema.ErrInvalidInput, "perm %v is not a permutation of %d axes", perm, rank)
		}
		seen[p] = true
		dims[i] = x.Dims[p]
	}
	return []tensor.TensorShape{{Dims: dims, DataType: x.DataType}}, nil
}

func concatInference(def *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	if err := requireInputs(in, 1); err != nil {
		return nil, err
	}
	first := in[0]
	out := make([]tensor.TensorShape, 0, 2)
	result := tensor.TensorShape{UnknownShape: true, DataType: first.DataType}

	known := true
	for _, ts := range in {
		known = known && !ts.UnknownShape
	}
	if known {
		axis, err := normalizeAxis(int(def.ArgInt("axis", 0)), first.Rank())
		if err != nil {
			return nil, err
		}
		dims := first.Dims.Clone()
		for i, ts := range in[1:] {
			if ts.Rank() != first.Rank() {
				return nil, errors.Wrapf(schema.ErrInvalidInput, "input %d has rank %d, want %d", i+1, ts.Rank(), first.Rank())
			}
			for d := range dims {
				if d == axis {
					if dims[d] >= 0 && ts.Dims[d] >= 0 {
						dims[d] += ts.Dims[d]
					} else {
						dims[d] = tensor.UnknownDim
					}
					continue
				}
				if ts.Dims[d] != dims[d] && ts.Dims[d] >= 0 && dims[d] >= 0 {
					return nil, errors.Wrapf(schema.ErrInvalidInput, "input %d dimension %d is %d, want %d", i+1, d, ts.Dims[d], dims[d])
				}
			}
		}
		result = tensor.TensorShape{Dims: dims, DataType: first.DataType}
	}
	out = append(out, result)
	if def.NumOutputs() > 1 {
		out = append(out, tensor.NewTensorShape([]int{len(in)}, tensor.Int32))
	}
	return out, nil
}

func concatCost(_ *opdef.OperatorDef, in []tensor.TensorShape) (schema.Cost, error) {
	var bytes uint64
	for _, ts := range in {
		b, err := knownBytes(ts)
		if err != nil {
			return schema.Cost{}, err
		}
		bytes += b
	}
	return schema.Cost{BytesMoved: 2 * bytes}, nil
}

func splitInference(def *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	if err := requireInputs(in, 1); err != nil {
		return nil, err
	}
	x := in[0]
	if x.UnknownShape {
		return unknownOutputs(def, x.DataType), nil
	}
	axis, err := normalizeAxis(int(def.ArgInt("axis", 0)), x.Rank())
	if err != nil {
		return nil, err
	}

	nOut := def.NumOutputs()
	split := def.ArgInts("split")
	if split == nil {
		if len(in) > 1 {
			// Lengths come from a tensor only known at run time.
			return unknownOutputs(def, x.DataType), nil
		}
		if x.Dims[axis] < 0 {
			return unknownOutputs(def, x.DataType), nil
		}
		if nOut == 0 || x.Dims[axis]%nOut != 0 {
			return nil, errors.Wrapf(schema.ErrInvalidInput, "dimension %d of size %d does not split into %d equal parts", axis, x.Dims[axis], nOut)
		}
		split = make([]int64, nOut)
		for i := range split {
			split[i] = int64(x.Dims[axis] / nOut)
		}
	}
	if len(split) != nOut {
		return nil, errors.Wrapf(schema.ErrInvalidInput, "split has %d entries for %d outputs", len(split), nOut)
	}

	var total int64
	out := make([]tensor.TensorShape, nOut)
	for i, n := range split {
		dims := x.Dims.Clone()
		dims[axis] = int(n)
		out[i] = tensor.TensorShape{Dims: dims, DataType: x.DataType}
		total += n
	}
	if x.Dims[axis] >= 0 && total != int64(x.Dims[axis]) {
		return nil, errors.Wrapf(schema.ErrInvalidInput, "split lengths sum to %d, dimension %d has size %d", total, axis, x.Dims[axis])
	}
	return out, nil
}

func flattenInference(def *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	if err := requireInputs(in, 1); err != nil {
		return nil, err
	}
	x := in[0]
	if x.UnknownShape {
		return []tensor.TensorShape{{Dims: tensor.Shape{tensor.UnknownDim, tensor.UnknownDim}, DataType: x.DataType}}, nil
	}
	rank := x.Rank()
	axis := int(def.ArgInt("axis", 1))
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis > rank {
		return nil, errors.Wrapf(schema.ErrInvalidInput, "axis %d out of range for rank %d", axis, rank)
	}
	rows := x.Dims[:axis].NumElements()
	cols := x.Dims[axis:].NumElements()
	return []tensor.TensorShape{tensor.NewTensorShape([]int{rows, cols}, x.DataType)}, nil
}

func shapeInference(_ *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	if err := requireInputs(in, 1); err != nil {
		return nil, err
	}
	rank := tensor.UnknownDim
	if !in[0].UnknownShape {
		rank = in[0].Rank()
	}
	return []tensor.TensorShape{tensor.NewTensorShape([]int{rank}, tensor.Int64)}, nil
}
