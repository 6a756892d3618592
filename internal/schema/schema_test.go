package schema

import (
	"testing"

	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/tensor"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blobs(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = prefix + string(rune('a'+i))
	}
	return names
}

func invocation(nIn, nOut int) *opdef.OperatorDef {
	return opdef.New("Test", blobs("in_", nIn), blobs("out_", nOut))
}

func TestDefaultSchemaAcceptsAnyArity(t *testing.T) {
	s := New("Test", "schema_test.go", 1)

	for _, counts := range [][2]int{{0, 0}, {1, 0}, {0, 3}, {5, 7}} {
		assert.True(t, s.Verify(invocation(counts[0], counts[1])), "counts %v", counts)
	}
}

func TestNumInputsExact(t *testing.T) {
	s := New("Test", "", 0).NumInputs(1)

	assert.True(t, s.Verify(invocation(1, 0)))
	assert.True(t, s.Verify(invocation(1, 4)), "output count is unconstrained")
	assert.False(t, s.Verify(invocation(0, 1)))
	assert.False(t, s.Verify(invocation(2, 1)))
}

func TestNumInputsVariants(t *testing.T) {
	tests := []struct {
		name    string
		build   func(*Schema) *Schema
		allowed []int
		denied  []int
		arity   string
	}{
		{"range", func(s *Schema) *Schema { return s.NumInputsRange(2, 4) }, []int{2, 3, 4}, []int{1, 5}, "2 to 4"},
		{"unbounded", func(s *Schema) *Schema { return s.NumInputsRange(1, Unbounded) }, []int{1, 100}, []int{0}, "1 or more"},
		{"set", func(s *Schema) *Schema { return s.NumInputsSet(3, 1, 3) }, []int{1, 3}, []int{0, 2, 4}, "one of {1, 3}"},
		{"func", func(s *Schema) *Schema { return s.NumInputsFunc(func(n int) bool { return n%2 == 0 }) }, []int{0, 2, 8}, []int{1, 3}, "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.build(New("Test", "", 0))
			for _, n := range tt.allowed {
				assert.True(t, s.Verify(invocation(n, 1)), "inputs=%d", n)
			}
			for _, n := range tt.denied {
				assert.False(t, s.Verify(invocation(n, 1)), "inputs=%d", n)
			}
			assert.Equal(t, tt.arity, s.InputArity())
		})
	}
}

func TestNumOutputsVariants(t *testing.T) {
	s := New("Test", "", 0).NumOutputsSet(1, 2)
	assert.True(t, s.Verify(invocation(0, 2)))
	assert.False(t, s.Verify(invocation(0, 3)))

	s.NumOutputsRange(3, 3)
	assert.True(t, s.Verify(invocation(0, 3)))
	assert.Equal(t, "3 to 3", s.OutputArity())

	s.NumOutputsFunc(func(n int) bool { return n > 5 })
	assert.True(t, s.Verify(invocation(0, 6)))
	assert.False(t, s.Verify(invocation(0, 3)))
}

func TestLastCountRuleWins(t *testing.T) {
	s := New("Test", "", 0).NumInputs(3).NumInputsRange(0, 1)

	assert.False(t, s.Verify(invocation(3, 0)), "earlier rule must be replaced, not combined")
	assert.True(t, s.Verify(invocation(1, 0)))
}

func TestNumInputsOutputs(t *testing.T) {
	s := New("Test", "", 0).NumInputsOutputs(func(in, out int) bool { return in == 2*out })

	assert.True(t, s.Verify(invocation(4, 2)))
	assert.False(t, s.Verify(invocation(4, 1)))

	err := s.Validate(invocation(4, 1))
	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, CheckInputOutputCount, verr.Check)
}

func TestValidateReportsFirstFailingCheck(t *testing.T) {
	s := New("Test", "", 0).
		NumInputsOutputs(func(in, out int) bool { return in < 10 }).
		NumInputs(2).
		NumOutputs(1)

	var verr *VerificationError
	require.True(t, errors.As(s.Validate(invocation(12, 1)), &verr))
	assert.Equal(t, CheckInputOutputCount, verr.Check)

	require.True(t, errors.As(s.Validate(invocation(3, 1)), &verr))
	assert.Equal(t, CheckInputCount, verr.Check)
	assert.Contains(t, verr.Error(), "3 inputs not allowed")

	require.True(t, errors.As(s.Validate(invocation(2, 2)), &verr))
	assert.Equal(t, CheckOutputCount, verr.Check)

	assert.NoError(t, s.Validate(invocation(2, 1)))
}

func TestOutputCalculator(t *testing.T) {
	s := New("Test", "", 0)
	assert.Equal(t, CannotComputeNumOutputs, s.CalculateOutput(0))
	assert.Equal(t, CannotComputeNumOutputs, s.CalculateOutput(5))

	s.SameNumberOfOutput()
	for _, n := range []int{0, 1, 5, 42} {
		assert.Equal(t, n, s.CalculateOutput(n))
	}

	s.OutputCalculator(func(n int) int { return 2 * n })
	assert.Equal(t, 10, s.CalculateOutput(5))
}

func TestVerifyConsultsOutputCalculator(t *testing.T) {
	s := New("Test", "", 0).SameNumberOfOutput()

	assert.True(t, s.Verify(invocation(3, 3)))

	var verr *VerificationError
	require.True(t, errors.As(s.Validate(invocation(3, 2)), &verr))
	assert.Equal(t, CheckOutputCalculator, verr.Check)
	assert.Equal(t, 3, verr.Expected)

	s.OutputCalculator(func(int) int { return CannotComputeNumOutputs })
	assert.True(t, s.Verify(invocation(3, 2)), "sentinel disables the calculator check")
}

func TestInplaceDeniedByDefault(t *testing.T) {
	s := New("Test", "", 0)
	def := opdef.New("Test", []string{"x"}, []string{"x"})

	var verr *VerificationError
	require.True(t, errors.As(s.Validate(def), &verr))
	assert.Equal(t, CheckInplaceAllowed, verr.Check)
	assert.Equal(t, 0, verr.In)
	assert.Equal(t, 0, verr.Out)
	assert.Equal(t, "none", s.InplaceRule())
}

func TestAllowOneToOneInplace(t *testing.T) {
	s := New("Test", "", 0).AllowOneToOneInplace()

	assert.True(t, s.Verify(opdef.New("Test", []string{"a", "b"}, []string{"a"})), "output 0 aliases input 0")
	assert.True(t, s.Verify(opdef.New("Test", []string{"a", "b"}, []string{"c"})), "aliasing is optional")
	assert.False(t, s.Verify(opdef.New("Test", []string{"a", "b"}, []string{"b"})), "output 0 aliases input 1")
}

func TestAllowInplacePairs(t *testing.T) {
	s := New("Test", "", 0).AllowInplacePairs(InplacePair{In: 1, Out: 0})

	assert.True(t, s.Verify(opdef.New("Test", []string{"a", "b"}, []string{"b"})))
	assert.False(t, s.Verify(opdef.New("Test", []string{"a", "b"}, []string{"a"})))
	assert.Equal(t, "allowed {(1, 0)}", s.InplaceRule())

	s.AllowInplace(func(in, out int) bool { return true })
	assert.True(t, s.Verify(opdef.New("Test", []string{"a", "b"}, []string{"a"})))
}

func TestEnforceOneToOneInplace(t *testing.T) {
	s := New("Test", "", 0).EnforceOneToOneInplace()

	assert.True(t, s.Verify(opdef.New("Test", []string{"a", "b"}, []string{"a", "b"})))

	def := opdef.New("Test", []string{"a", "b"}, []string{"c", "b"})
	var verr *VerificationError
	require.True(t, errors.As(s.Validate(def), &verr))
	assert.Equal(t, CheckInplaceEnforced, verr.Check)
	assert.Equal(t, 0, verr.In)
	assert.Equal(t, 0, verr.Out)
	assert.Equal(t, "enforced one-to-one", s.InplaceRule())
}

func TestEnforcedPairIsImplicitlyAllowed(t *testing.T) {
	s := New("Test", "", 0).EnforceInplacePairs(InplacePair{In: 0, Out: 0})

	assert.True(t, s.Verify(opdef.New("Test", []string{"a", "i", "v"}, []string{"a"})))
	assert.False(t, s.Verify(opdef.New("Test", []string{"a", "i", "v"}, []string{"z"})))
	assert.False(t, s.Verify(opdef.New("Test", []string{"a", "i", "v"}, []string{"i"})))

	s.AllowInplacePairs(InplacePair{In: 1, Out: 0})
	assert.Equal(t, "allowed {(1, 0)}, enforced {(0, 0)}", s.InplaceRule())

	s.EnforceInplace(func(int, int) bool { return false })
	assert.True(t, s.Verify(opdef.New("Test", []string{"a", "i", "v"}, []string{"i"})))
}

func TestDefaultTensorInferenceIsUnknown(t *testing.T) {
	s := New("Test", "", 0)
	def := invocation(1, 3)

	out, err := s.InferTensor(def, []tensor.TensorShape{tensor.NewTensorShape([]int{2}, tensor.Float32)})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, ts := range out {
		assert.True(t, ts.UnknownShape)
	}
}

func TestIdenticalTypeAndShape(t *testing.T) {
	a := tensor.NewTensorShape([]int{2, 3}, tensor.Float32)
	b := tensor.NewTensorShape([]int{4}, tensor.Int64)
	s := New("Test", "", 0).IdenticalTypeAndShape()

	out, err := s.InferTensor(invocation(2, 2), []tensor.TensorShape{a, b})
	require.NoError(t, err)
	if diff := cmp.Diff([]tensor.TensorShape{a, b}, out); diff != "" {
		t.Errorf("InferTensor mismatch (-want +got):\n%s", diff)
	}

	// More outputs than inputs: pad with unknown.
	out, err = s.InferTensor(invocation(1, 3), []tensor.TensorShape{a})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.True(t, out[0].Equal(a))
	assert.True(t, out[1].UnknownShape)
	assert.True(t, out[2].UnknownShape)

	// Fewer outputs than inputs: truncate.
	out, err = s.InferTensor(invocation(2, 1), []tensor.TensorShape{a, b})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Equal(a))
}

func TestIdenticalTypeAndShapeDoesNotAliasInputs(t *testing.T) {
	a := tensor.NewTensorShape([]int{2, 3}, tensor.Float32)
	s := New("Test", "", 0).IdenticalTypeAndShape()

	out, err := s.InferTensor(invocation(1, 1), []tensor.TensorShape{a})
	require.NoError(t, err)
	out[0].Dims[0] = 99
	assert.Equal(t, 2, a.Dims[0])
}

func TestIdenticalTypeAndShapeOfInput(t *testing.T) {
	a := tensor.NewTensorShape([]int{2, 3}, tensor.Float32)
	b := tensor.NewTensorShape([]int{5}, tensor.Int32)
	s := New("Test", "", 0).IdenticalTypeAndShapeOfInput(1)

	out, err := s.InferTensor(invocation(2, 1), []tensor.TensorShape{a, b})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Equal(b))

	_, err = s.InferTensor(invocation(1, 1), []tensor.TensorShape{a})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestIdenticalTypeAndShapeOfInputDim(t *testing.T) {
	a := tensor.NewTensorShape([]int{7, 3}, tensor.Float64)
	s := New("Test", "", 0).IdenticalTypeAndShapeOfInputDim(0, 0)

	out, err := s.InferTensor(invocation(1, 1), []tensor.TensorShape{a})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, tensor.Shape{7}, out[0].Dims)
	assert.Equal(t, tensor.Float64, out[0].DataType)

	s.IdenticalTypeAndShapeOfInputDim(0, 2)
	_, err = s.InferTensor(invocation(1, 1), []tensor.TensorShape{a})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestScalarType(t *testing.T) {
	s := New("Test", "", 0).ScalarType(tensor.Int64)

	out, err := s.InferTensor(invocation(1, 2), []tensor.TensorShape{tensor.UnknownTensorShape()})
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, ts := range out {
		assert.Equal(t, tensor.Int64, ts.DataType)
		assert.Equal(t, 0, ts.Rank())
		assert.False(t, ts.UnknownShape)
	}
}

func TestTensorInferenceErrorIsWrapped(t *testing.T) {
	s := New("Broken", "", 0).TensorInferenceFunction(
		func(*opdef.OperatorDef, []tensor.TensorShape) ([]tensor.TensorShape, error) {
			return nil, ErrInvalidInput
		})

	_, err := s.InferTensor(invocation(0, 1), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "Broken")
}

func TestCostInferenceUnconfigured(t *testing.T) {
	s := New("Test", "", 0)

	assert.False(t, s.HasCostInference())
	_, err := s.InferCost(invocation(1, 1), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCostInference))
	assert.True(t, IsConfigError(err))
}

func TestCostInferenceConfigured(t *testing.T) {
	want := Cost{Flops: 123, BytesMoved: 456}
	s := New("Test", "", 0).CostInferenceFunction(
		func(*opdef.OperatorDef, []tensor.TensorShape) (Cost, error) { return want, nil })

	got, err := s.InferCost(invocation(1, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, s.HasCostInference())
}

func TestDefaultDeviceInference(t *testing.T) {
	s := New("Test", "", 0)

	in, out := s.InferDevice(invocation(2, 1))
	assert.Equal(t, []tensor.DeviceOption{{}, {}}, in)
	assert.Equal(t, []tensor.DeviceOption{{}}, out)

	gpu := tensor.DeviceOption{Device: tensor.CUDA, DeviceID: 1}
	in, out = s.InferDevice(invocation(1, 2).WithDevice(gpu))
	assert.Equal(t, []tensor.DeviceOption{gpu}, in)
	assert.Equal(t, []tensor.DeviceOption{gpu, gpu}, out)
}

func TestCustomDeviceInference(t *testing.T) {
	gpu := tensor.DeviceOption{Device: tensor.CUDA}
	s := New("Test", "", 0).DeviceInferenceFunction(
		func(def *opdef.OperatorDef) (in, out []tensor.DeviceOption) {
			return []tensor.DeviceOption{gpu}, []tensor.DeviceOption{{}}
		})

	in, out := s.InferDevice(invocation(1, 1))
	assert.Equal(t, []tensor.DeviceOption{gpu}, in)
	assert.Equal(t, []tensor.DeviceOption{{}}, out)
}

func TestCheckInputPlacement(t *testing.T) {
	gpu := tensor.DeviceOption{Device: tensor.CUDA}
	def := invocation(2, 1)

	s := New("Test", "", 0)
	assert.NoError(t, s.CheckInputPlacement(def, []tensor.DeviceOption{{}, {}}))

	err := s.CheckInputPlacement(def, []tensor.DeviceOption{{}, gpu})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDevicePlacement))

	err = s.CheckInputPlacement(def, []tensor.DeviceOption{{}})
	assert.True(t, errors.Is(err, ErrDevicePlacement))

	s.InputsCanCrossDevices()
	assert.True(t, s.AllowsCrossDeviceInputs())
	assert.NoError(t, s.CheckInputPlacement(def, []tensor.DeviceOption{{}, gpu}))
}

func TestCheckInputPlacementShortDeviceInference(t *testing.T) {
	def := invocation(2, 1)
	s := New("Test", "", 0).DeviceInferenceFunction(func(*opdef.OperatorDef) (in, out []tensor.DeviceOption) {
		return []tensor.DeviceOption{{}}, []tensor.DeviceOption{{}}
	})

	err := s.CheckInputPlacement(def, []tensor.DeviceOption{{}, {Device: tensor.CUDA}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDevicePlacement), "unplaced input must not pass")
	assert.Contains(t, err.Error(), "placed 1 of 2 inputs")
}

func TestDocumentation(t *testing.T) {
	s := New("Sum", "sum.go", 12).
		SetDoc("\nElement-wise sum.\n").
		Arg("broadcast", "Whether to broadcast").
		Arg("axis", "Broadcast axis").
		Input(0, "data_0", "First input").
		Output(0, "sum", "Result").
		Private()

	assert.Equal(t, "Element-wise sum.", s.Doc())
	assert.Equal(t, []DocEntry{
		{Index: 0, Name: "broadcast", Description: "Whether to broadcast"},
		{Index: 1, Name: "axis", Description: "Broadcast axis"},
	}, s.ArgDocs())
	assert.Equal(t, []DocEntry{{Index: 0, Name: "data_0", Description: "First input"}}, s.InputDocs())
	assert.Equal(t, []DocEntry{{Index: 0, Name: "sum", Description: "Result"}}, s.OutputDocs())
	assert.True(t, s.IsPrivate())

	text := s.String()
	assert.Contains(t, text, "Schema Sum (sum.go:12)")
	assert.Contains(t, text, "Element-wise sum.")
	assert.Contains(t, text, "0, data_0 : First input")
	assert.Contains(t, text, "1, axis : Broadcast axis")
}

func TestFillUsing(t *testing.T) {
	unary := func(s *Schema) {
		s.NumInputs(1).NumOutputs(1).AllowOneToOneInplace()
	}

	a := New("A", "", 0).FillUsing(unary).SetDoc("A")
	b := New("B", "", 0).FillUsing(unary)

	for _, s := range []*Schema{a, b} {
		assert.True(t, s.Verify(opdef.New(s.Name(), []string{"x"}, []string{"x"})))
		assert.False(t, s.Verify(invocation(2, 1)))
	}
	assert.Equal(t, "A", a.Doc())
	assert.Empty(t, b.Doc())
}

func TestBuilderReturnsSameSchema(t *testing.T) {
	s := New("Test", "", 0)

	assert.Same(t, s, s.NumInputs(1))
	assert.Same(t, s, s.NumOutputsRange(1, 2))
	assert.Same(t, s, s.SameNumberOfOutput())
	assert.Same(t, s, s.AllowOneToOneInplace())
	assert.Same(t, s, s.IdenticalTypeAndShape())
	assert.Same(t, s, s.SetDoc("doc"))
	assert.Same(t, s, s.InputsCanCrossDevices())
}
