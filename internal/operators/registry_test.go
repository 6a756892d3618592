package operators

import (
	"path/filepath"
	"testing"

	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/schema"
	"github.com/born-ml/opschema/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	RegisterAll(r)
	return r
}

func lookup(t *testing.T, r *schema.Registry, name string) *schema.Schema {
	t.Helper()
	s, ok := r.Lookup(name)
	require.True(t, ok, "schema %s not registered", name)
	return s
}

func f32(dims ...int) tensor.TensorShape {
	return tensor.NewTensorShape(dims, tensor.Float32)
}

func TestRegisterAll(t *testing.T) {
	r := newRegistry(t)

	essentialOps := []string{
		"Sum", "Add", "Sub", "Mul", "Div", "MatMul", "Gemm",
		"Relu", "Sigmoid", "Tanh", "Softmax",
		"Reshape", "Transpose", "Concat", "Split", "Flatten",
		"Identity", "Dropout", "Cast", "Shape", "Size",
		"CopyCPUToGPU", "CopyGPUToCPU",
	}
	for _, op := range essentialOps {
		s, ok := r.Lookup(op)
		if assert.True(t, ok, "Expected operator %s to be registered", op) {
			assert.Equal(t, "operators", filepath.Base(filepath.Dir(s.File())), "registration site of %s", op)
			assert.NotEqual(t, "registry.go", filepath.Base(s.File()), "%s must record its caller, not the helper", op)
			assert.Positive(t, s.Line())
			assert.NotEmpty(t, s.Doc(), "operator %s has no doc", op)
		}
	}
}

func TestDefaultRegistryIsPopulated(t *testing.T) {
	s, ok := schema.Lookup("Sum")
	require.True(t, ok)
	assert.True(t, s.AllowsCrossDeviceInputs())
}

func TestRegisterAllTwicePanics(t *testing.T) {
	r := newRegistry(t)

	defer func() {
		rec := recover()
		require.NotNil(t, rec)
		_, ok := rec.(*schema.DuplicateSchemaError)
		assert.True(t, ok)
	}()
	RegisterAll(r)
}

func TestPrivateOperators(t *testing.T) {
	r := newRegistry(t)

	assert.True(t, lookup(t, r, "Free").IsPrivate())
	assert.True(t, lookup(t, r, "CreateMutex").IsPrivate())
	assert.False(t, lookup(t, r, "Sum").IsPrivate())
}

func TestSumSchema(t *testing.T) {
	s := lookup(t, newRegistry(t), "Sum")

	def := opdef.New("Sum", []string{"x0", "x1", "x2"}, []string{"x0"})
	assert.True(t, s.Verify(def))

	shape := f32(2, 3)
	out, err := s.InferTensor(def, []tensor.TensorShape{shape, shape, shape})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Equal(shape))

	cost, err := s.InferCost(def, []tensor.TensorShape{shape, shape, shape})
	require.NoError(t, err)
	assert.Equal(t, schema.Cost{Flops: 12, BytesMoved: 96}, cost)

	assert.False(t, s.Verify(opdef.New("Sum", nil, []string{"y"})), "zero inputs")
	assert.False(t, s.Verify(opdef.New("Sum", []string{"x0"}, []string{"y", "z"})), "two outputs")
	assert.False(t, s.Verify(opdef.New("Sum", []string{"x0", "x1"}, []string{"x1"})), "output aliases input 1")

	assert.Equal(t, []schema.DocEntry{{Index: 0, Name: "data_0", Description: "First of the input tensors. Can be inplace."}}, s.InputDocs())
	assert.Equal(t, "1 or more", s.InputArity())
	assert.Equal(t, "1", s.OutputArity())
}
