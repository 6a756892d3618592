package operators

import (
	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/schema"
	"github.com/born-ml/opschema/internal/tensor"
)

// registerActivations adds activation function schemas to the registry.
func registerActivations(r *schema.Registry) {
	register(r, "Relu").
		FillUsing(unaryElementwise(1)).
		SetDoc("Rectified linear unit: Y = max(0, X), applied element-wise.")

	register(r, "Sigmoid").
		FillUsing(unaryElementwise(4)).
		SetDoc("Logistic sigmoid: Y = 1 / (1 + exp(-X)), applied element-wise.")

	register(r, "Tanh").
		FillUsing(unaryElementwise(4)).
		SetDoc("Hyperbolic tangent, applied element-wise.")

	register(r, "Softmax").
		FillUsing(unaryElementwise(5)).
		TensorInferenceFunction(softmaxInference).
		SetDoc("Normalized exponential along one axis.").
		Arg("axis", "Axis along which the softmax is computed, default -1.")
}

// softmaxInference keeps the input shape after checking the axis argument.
func softmaxInference(def *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error) {
	if err := requireInputs(in, 1); err != nil {
		return nil, err
	}
	x := in[0]
	if !x.UnknownShape {
		if _, err := normalizeAxis(int(def.ArgInt("axis", -1)), x.Rank()); err != nil {
			return nil, err
		}
	}
	return []tensor.TensorShape{x.Clone()}, nil
}
