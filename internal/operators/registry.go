package operators

import (
	"runtime"

	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/schema"
	"github.com/born-ml/opschema/internal/tensor"
	"github.com/pkg/errors"
)

func init() {
	RegisterAll(schema.Default())
}

// RegisterAll registers every built-in operator schema in r.
// It panics if any of them is already registered.
func RegisterAll(r *schema.Registry) {
	registerMathOps(r)
	registerActivations(r)
	registerShapeOps(r)
	registerUtilityOps(r)
	registerDeviceOps(r)
}

// register records the caller of register as the registration site.
func register(r *schema.Registry, name string) *schema.Schema {
	file, line := "unknown", 0
	if _, f, l, ok := runtime.Caller(1); ok {
		file, line = f, l
	}
	return r.Register(name, file, line)
}

// knownElements returns the element count of ts, failing on unknown shapes.
func knownElements(ts tensor.TensorShape) (uint64, error) {
	n := ts.NumElements()
	if n < 0 {
		return 0, errors.Wrapf(schema.ErrInvalidInput, "shape %s is not fully known", ts)
	}
	return uint64(n), nil
}

func knownBytes(ts tensor.TensorShape) (uint64, error) {
	b := ts.ByteSize()
	if b < 0 {
		return 0, errors.Wrapf(schema.ErrInvalidInput, "shape %s is not fully known", ts)
	}
	return uint64(b), nil
}

func requireInputs(in []tensor.TensorShape, n int) error {
	if len(in) < n {
		return errors.Wrapf(schema.ErrInvalidInput, "need %d input shapes, got %d", n, len(in))
	}
	return nil
}

// elementwiseCost charges flopsPerElement per element of the broadcast
// output and moves every input and output once. Outputs take the element
// type of the first input.
func elementwiseCost(flopsPerElement uint64) schema.CostInferenceFunc {
	return func(def *opdef.OperatorDef, in []tensor.TensorShape) (schema.Cost, error) {
		n, inBytes, err := broadcastCost(in)
		if err != nil {
			return schema.Cost{}, err
		}
		outBytes := n * uint64(in[0].DataType.Size()) * uint64(max(def.NumOutputs(), 1))
		return schema.Cost{Flops: n * flopsPerElement, BytesMoved: inBytes + outBytes}, nil
	}
}

// broadcastCost returns the element count of the broadcast of all inputs
// and the bytes read from them.
func broadcastCost(in []tensor.TensorShape) (elements, inBytes uint64, err error) {
	if err := requireInputs(in, 1); err != nil {
		return 0, 0, err
	}
	out := in[0].Dims
	for i, ts := range in {
		b, err := knownBytes(ts)
		if err != nil {
			return 0, 0, err
		}
		inBytes += b
		if i == 0 {
			continue
		}
		if out, _, err = tensor.BroadcastShapes(out, ts.Dims); err != nil {
			return 0, 0, errors.Wrap(schema.ErrInvalidInput, err.Error())
		}
	}
	return uint64(out.NumElements()), inBytes, nil
}

// copyCost moves every input once and writes every output once.
func copyCost(_ *opdef.OperatorDef, in []tensor.TensorShape) (schema.Cost, error) {
	if err := requireInputs(in, 1); err != nil {
		return schema.Cost{}, err
	}
	b, err := knownBytes(in[0])
	if err != nil {
		return schema.Cost{}, err
	}
	return schema.Cost{BytesMoved: 2 * b}, nil
}

// normalizeAxis maps a possibly negative axis into [0, rank).
func normalizeAxis(axis, rank int) (int, error) {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		return 0, errors.Wrapf(schema.ErrInvalidInput, "axis %d out of range for rank %d", axis, rank)
	}
	return axis, nil
}

func unknownOutputs(def *opdef.OperatorDef, dt tensor.DataType) []tensor.TensorShape {
	out := make([]tensor.TensorShape, def.NumOutputs())
	for i := range out {
		out[i] = tensor.TensorShape{UnknownShape: true, DataType: dt}
	}
	return out
}
