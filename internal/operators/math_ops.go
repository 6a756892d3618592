package operators

import (
	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/schema"
	"github.com/born-ml/opschema/internal/tensor"
	"github.com/pkg/errors"
)

// registerMathOps adds math operator schemas to the registry.
func registerMathOps(r *schema.Registry) {
	register(r, "Sum").
		NumInputsRange(1, schema.Unbounded).
		NumOutputs(1).
		AllowInplacePairs(schema.InplacePair{In: 0, Out: 0}).
		InputsCanCrossDevices().
		IdenticalTypeAndShapeOfInput(0).
		CostInferenceFunction(sumCost).
		SetDoc(`
Element-wise sum of each of the input tensors. The first input tensor can be
used in-place as the output tensor, in which case the sum will be done in
place and results will be accumulated in input0. All inputs and outputs must
have the same shape and data type.`).
		Input(0, "data_0", "First of the input tensors. Can be inplace.").
		Output(0, "sum", "Output tensor. Same dimension as inputs.")

	register(r, "Add").FillUsing(binaryElementwise).SetDoc("Element-wise addition with broadcasting.")
	register(r, "Sub").FillUsing(binaryElementwise).SetDoc("Element-wise subtraction with broadcasting.")
	register(r, "Mul").FillUsing(binaryElementwise).SetDoc("Element-wise multiplication with broadcasting.")
	register(r, "Div").FillUsing(binaryElementwise).SetDoc("Element-wise division with broadcasting.")

	register(r, "Sqrt").FillUsing(unaryElementwise(1)).SetDoc("Element-wise square root.")
	register(r, "Exp").FillUsing(unaryElementwise(1)).SetDoc("Element-wise natural exponential.")
	register(r, "Log").FillUsing(unaryElementwise(1)).SetDoc("Element-wise natural logarithm.")

	register(r, "MatMul").
		NumInputs(2).
		NumOutputs(1).
		TensorInferenceFunction(matMulInference).
		CostInferenceFunction(matMulCost).
		SetDoc("Matrix product of two tensors. Leading dimensions are batch dimensions and broadcast.").
		Input(0, "A", "Tensor of shape [..., M, K].").
		Input(1, "B", "Tensor of shape [..., K, N].").
		Output(0, "Y", "Tensor of shape [..., M, N].")

	register(r, "Gemm").
		NumInputsRange(2, 3).
		NumOutputs(1).
		TensorInferenceFunction(gemmInference).
		CostInferenceFunction(gemmCost).
		SetDoc("General matrix multiplication: Y = alpha * A' * B' + beta * C.").
		Arg("alpha", "Scalar multiplier for A * B, default 1.0.").
		Arg("beta", "Scalar multiplier for C, default 1.0.").
		Arg("transA", "Transpose A before multiplying when non-zero.").
		Arg("transB", "Transpose B before multiplying when non-zero.").
		Input(0, "A", "Matrix of shape [M, K], or [K, M] with transA.").
		Input(1, "B", "Matrix of shape [K, N], or [N, K] with transB.").
		Input(2, "C", "Optional bias broadcastable to [M, N].").
		Output(0, "Y", "Matrix of shape [M, N].")
}

// binaryElementwise configures a two-operand broadcasting operator whose
// output may overwrite either operand.
func binaryElementwise(s *schema.Schema) {
	s.NumInputs(2).
		NumOutputs(1).
		AllowInplacePairs(schema.InplacePair{In: 0, Out: 0}, schema.InplacePair{In: 1, Out: 0}).
		TensorInferenceFunction(broadcastInference).
		CostInferenceFunction(elementwiseCost(1)).
		Input(0, "A", "First operand.").
		Input(1, "B", "Second operand, broadcast against A.").
		Output(0, "C", "Result with the broadcast shape of A and B.")
}

// unaryElementwise configures a one-to-one operator costing flops per element.
func unaryElementwise(flops uint64) func(*schema.Schema) {
	return func(s *schema.Schema) {
		s.NumInputs(1).
			NumOutputs(1).
			AllowOneToOneInplace().
			IdenticalTypeAndShape().
			CostInferenceFunction(elementwiseCost(flops)).
			Input(0, "X", "Input tensor.").
			Output(0, "Y", "Output tensor with the shape and type of X.")
	}
}

func broadcastInference(_ *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	if err := requireInputs(in, 2); err != nil {
		return nil, err
	}
	a, b := in[0], in[1]
	if a.DataType != b.DataType && a.DataType != tensor.Undefined && b.DataType != tensor.Undefined {
		return nil, errors.Wrapf(schema.ErrInvalidInput, "operand types differ: %s vs %s", a.DataType, b.DataType)
	}
	if a.UnknownShape || b.UnknownShape {
		return []tensor.TensorShape{{UnknownShape: true, DataType: a.DataType}}, nil
	}
	dims, _, err := tensor.BroadcastShapes(a.Dims, b.Dims)
	if err != nil {
		return nil, errors.Wrap(schema.ErrInvalidInput, err.Error())
	}
	return []tensor.TensorShape{{Dims: dims, DataType: a.DataType}}, nil
}

func sumCost(def *opdef.OperatorDef, in []tensor.TensorShape) (schema.Cost, error) {
	if err := requireInputs(in, 1); err != nil {
		return schema.Cost{}, err
	}
	n, err := knownElements(in[0])
	if err != nil {
		return schema.Cost{}, err
	}
	size := uint64(in[0].DataType.Size())
	inputs := uint64(def.NumInputs())
	return schema.Cost{
		Flops:      (inputs - 1) * n,
		BytesMoved: (inputs + 1) * n * size,
	}, nil
}

// matMulDims returns the broadcast batch shape and M, K, N of a batched matmul.
func matMulDims(a, b tensor.TensorShape) (batch tensor.Shape, m, k, n int, err error) {
	ra, rb := a.Rank(), b.Rank()
	if ra < 2 || rb < 2 {
		return nil, 0, 0, 0, errors.Wrapf(schema.ErrInvalidInput, "matmul needs rank >= 2, got %d and %d", ra, rb)
	}
	m, k = a.Dims[ra-2], a.Dims[ra-1]
	kb := b.Dims[rb-2]
	n = b.Dims[rb-1]
	if k != kb && k != tensor.UnknownDim && kb != tensor.UnknownDim {
		return nil, 0, 0, 0, errors.Wrapf(schema.ErrInvalidInput, "inner dimensions differ: %s x %s", a.Dims, b.Dims)
	}
	if k == tensor.UnknownDim {
		k = kb
	}
	batch, _, err = tensor.BroadcastShapes(a.Dims[:ra-2], b.Dims[:rb-2])
	if err != nil {
		return nil, 0, 0, 0, errors.Wrap(schema.ErrInvalidInput, err.Error())
	}
	return batch, m, k, n, nil
}

func matMulInference(_ *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	if err := requireInputs(in, 2); err != nil {
		return nil, err
	}
	a, b := in[0], in[1]
	if a.UnknownShape || b.UnknownShape {
		return []tensor.TensorShape{{UnknownShape: true, DataType: a.DataType}}, nil
	}
	batch, m, _, n, err := matMulDims(a, b)
	if err != nil {
		return nil, err
	}
	dims := append(batch, m, n)
	return []tensor.TensorShape{{Dims: dims, DataType: a.DataType}}, nil
}

func matMulCost(_ *opdef.OperatorDef, in []tensor.TensorShape) (schema.Cost, error) {
	if err := requireInputs(in, 2); err != nil {
		return schema.Cost{}, err
	}
	batch, m, k, n, err := matMulDims(in[0], in[1])
	if err != nil {
		return schema.Cost{}, err
	}
	out := tensor.TensorShape{Dims: append(batch, m, n), DataType: in[0].DataType}
	outBytes, err := knownBytes(out)
	if err != nil {
		return schema.Cost{}, err
	}
	aBytes, err := knownBytes(in[0])
	if err != nil {
		return schema.Cost{}, err
	}
	bBytes, err := knownBytes(in[1])
	if err != nil {
		return schema.Cost{}, err
	}
	batchN := uint64(batch.NumElements())
	return schema.Cost{
		Flops:      2 * batchN * uint64(m) * uint64(n) * uint64(k),
		BytesMoved: aBytes + bBytes + outBytes,
	}, nil
}

// gemmDims returns M, K, N after applying transA and transB.
func gemmDims(def *opdef.OperatorDef, a, b tensor.TensorShape) (m, k, n int, err error) {
	if a.Rank() != 2 || b.Rank() != 2 {
		return 0, 0, 0, errors.Wrapf(schema.ErrInvalidInput, "gemm needs rank 2 operands, got %d and %d", a.Rank(), b.Rank())
	}
	m, k = a.Dims[0], a.Dims[1]
	if def.ArgInt("transA", 0) != 0 {
		m, k = k, m
	}
	kb, n := b.Dims[0], b.Dims[1]
	if def.ArgInt("transB", 0) != 0 {
		kb, n = n, kb
	}
	if k != kb && k != tensor.UnknownDim && kb != tensor.UnknownDim {
		return 0, 0, 0, errors.Wrapf(schema.ErrInvalidInput, "inner dimensions differ: %d vs %d", k, kb)
	}
	return m, k, n, nil
}

func gemmInference(def *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	if err := requireInputs(in, 2); err != nil {
		return nil, err
	}
	if in[0].UnknownShape || in[1].UnknownShape {
		return []tensor.TensorShape{{UnknownShape: true, DataType: in[0].DataType}}, nil
	}
	m, _, n, err := gemmDims(def, in[0], in[1])
	if err != nil {
		return nil, err
	}
	return []tensor.TensorShape{tensor.NewTensorShape([]int{m, n}, in[0].DataType)}, nil
}

func gemmCost(def *opdef.OperatorDef, in []tensor.TensorShape) (schema.Cost, error) {
	if err := requireInputs(in, 2); err != nil {
		return schema.Cost{}, err
	}
	m, k, n, err := gemmDims(def, in[0], in[1])
	if err != nil {
		return schema.Cost{}, err
	}
	if m < 0 || k < 0 || n < 0 {
		return schema.Cost{}, errors.Wrap(schema.ErrInvalidInput, "gemm dimensions are not fully known")
	}
	mn := uint64(m) * uint64(n)
	flops := 2 * mn * uint64(k)

	// C is never read when beta is 0.
	operands := in[:2]
	if len(in) > 2 && def.ArgFloat("beta", 1) != 0 {
		operands = in[:3]
		flops += 2 * mn
	}
	var bytes uint64
	for _, ts := range operands {
		b, err := knownBytes(ts)
		if err != nil {
			return schema.Cost{}, err
		}
		bytes += b
	}
	bytes += mn * uint64(in[0].DataType.Size())
	return schema.Cost{Flops: flops, BytesMoved: bytes}, nil
}
