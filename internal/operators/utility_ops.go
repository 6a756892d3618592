package operators

import (
	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/schema"
	"github.com/born-ml/opschema/internal/tensor"
	"github.com/pkg/errors"
)

// ONNX data types (TensorProto.DataType), accepted by the Cast "to" argument.
const (
	TensorProtoUndefined = 0
	TensorProtoFloat     = 1  // float32
	TensorProtoUint8     = 2  // uint8
	TensorProtoInt8      = 3  // int8
	TensorProtoUint16    = 4  // uint16
	TensorProtoInt16     = 5  // int16
	TensorProtoInt32     = 6  // int32
	TensorProtoInt64     = 7  // int64
	TensorProtoString    = 8  // string
	TensorProtoBool      = 9  // bool
	TensorProtoFloat16   = 10 // float16
	TensorProtoDouble    = 11 // float64
)

// registerUtilityOps adds utility operator schemas to the registry.
func registerUtilityOps(r *schema.Registry) {
	register(r, "Identity").
		FillUsing(unaryElementwise(0)).
		CostInferenceFunction(copyCost).
		SetDoc("Copies the input to the output. Running in-place makes it a no-op.")

	register(r, "Dropout").
		NumInputs(1).
		NumOutputsRange(1, 2).
		AllowInplacePairs(schema.InplacePair{In: 0, Out: 0}).
		TensorInferenceFunction(dropoutInference).
		CostInferenceFunction(dropoutCost).
		SetDoc("Randomly zeroes elements during training; identity at inference time.").
		Arg("ratio", "Probability of zeroing an element, default 0.5.").
		Arg("is_test", "Inference mode when non-zero.").
		Input(0, "data", "Input tensor.").
		Output(0, "output", "Output tensor, same shape as data.").
		Output(1, "mask", "Optional bool mask of kept elements.")

	register(r, "Cast").
		NumInputs(1).
		NumOutputs(1).
		TensorInferenceFunction(castInference).
		CostInferenceFunction(castCost).
		SetDoc("Converts the input to another element type.").
		Arg("to", "Target type: an ONNX TensorProto data type code, or a type name in the string field.").
		Input(0, "input", "Tensor to convert.").
		Output(0, "output", "Converted tensor, same shape as input.")

	register(r, "ScatterAssign").
		NumInputs(3).
		NumOutputs(1).
		EnforceInplacePairs(schema.InplacePair{In: 0, Out: 0}).
		IdenticalTypeAndShapeOfInput(0).
		SetDoc("Overwrites the slices of DATA selected by INDICES with SLICES. Always runs in place.").
		Input(0, "DATA", "Tensor to update.").
		Input(1, "INDICES", "1-D list of indices on the first dimension of DATA.").
		Input(2, "SLICES", "Update slices, one per index.").
		Output(0, "DATA", "DATA after the update, must alias input 0.")

	register(r, "Free").
		NumInputsRange(1, schema.Unbounded).
		NumOutputsRange(1, schema.Unbounded).
		SameNumberOfOutput().
		EnforceOneToOneInplace().
		IdenticalTypeAndShape().
		Private().
		SetDoc("Releases the memory held by its inputs. Each output aliases the matching input.")

	register(r, "CreateMutex").
		NumInputs(0).
		NumOutputs(1).
		ScalarType(tensor.Undefined).
		Private().
		SetDoc("Creates an unlocked mutex and returns it in a blob.").
		Output(0, "mutex_ptr", "Blob holding the mutex.")
}

func dropoutInference(def *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	if err := requireInputs(in, 1); err != nil {
		return nil, err
	}
	out := []tensor.TensorShape{in[0].Clone()}
	if def.NumOutputs() > 1 {
		mask := in[0].Clone()
		mask.DataType = tensor.Bool
		out = append(out, mask)
	}
	return out, nil
}

func castInference(def *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	if err := requireInputs(in, 1); err != nil {
		return nil, err
	}
	to, err := castTarget(def)
	if err != nil {
		return nil, err
	}
	out := in[0].Clone()
	out.DataType = to
	return []tensor.TensorShape{out}, nil
}

// castTarget reads the "to" argument as a type name or an ONNX type code.
func castTarget(def *opdef.OperatorDef) (tensor.DataType, error) {
	if !def.HasArg("to") {
		return tensor.Undefined, errors.Wrap(schema.ErrInvalidInput, "cast requires the \"to\" argument")
	}
	if name := def.ArgString("to", ""); name != "" {
		dt, err := tensor.ParseDataType(name)
		if err != nil {
			return tensor.Undefined, errors.Wrap(schema.ErrInvalidInput, err.Error())
		}
		return dt, nil
	}
	code := def.ArgInt("to", TensorProtoUndefined)
	dt, ok := onnxTypeToTensorType(int(code))
	if !ok {
		return tensor.Undefined, errors.Wrapf(schema.ErrInvalidInput, "unsupported cast target %d", code)
	}
	return dt, nil
}

// castCost reads the input once and writes it once in the target type.
func castCost(def *opdef.OperatorDef, in []tensor.TensorShape) (schema.Cost, error) {
	to, err := castTarget(def)
	if err != nil {
		return schema.Cost{}, err
	}
	n, inBytes, err := broadcastCost(in[:min(len(in), 1)])
	if err != nil {
		return schema.Cost{}, err
	}
	return schema.Cost{Flops: n, BytesMoved: inBytes + n*uint64(to.Size())}, nil
}

// dropoutCost writes the output in the input type and the optional mask as Bool.
func dropoutCost(def *opdef.OperatorDef, in []tensor.TensorShape) (schema.Cost, error) {
	n, inBytes, err := broadcastCost(in[:min(len(in), 1)])
	if err != nil {
		return schema.Cost{}, err
	}
	bytes := inBytes + n*uint64(in[0].DataType.Size())
	if def.NumOutputs() > 1 {
		bytes += n * uint64(tensor.Bool.Size())
	}
	return schema.Cost{Flops: n, BytesMoved: bytes}, nil
}

func onnxTypeToTensorType(code int) (tensor.DataType, bool) {
	switch code {
	case TensorProtoFloat:
		return tensor.Float32, true
	case TensorProtoUint8:
		return tensor.Uint8, true
	case TensorProtoInt8:
		return tensor.Int8, true
	case TensorProtoUint16:
		return tensor.Uint16, true
	case TensorProtoInt16:
		return tensor.Int16, true
	case TensorProtoInt32:
		return tensor.Int32, true
	case TensorProtoInt64:
		return tensor.Int64, true
	case TensorProtoString:
		return tensor.String, true
	case TensorProtoBool:
		return tensor.Bool, true
	case TensorProtoFloat16:
		return tensor.Float16, true
	case TensorProtoDouble:
		return tensor.Float64, true
	default:
		return tensor.Undefined, false
	}
}
