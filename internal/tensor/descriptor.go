package tensor

import "fmt"

// TensorShape describes the type and shape of a tensor without its data.
//
// A descriptor with UnknownShape set carries no usable Dims; inference
// produces it when the output shape cannot be determined statically.
type TensorShape struct {
	Dims         Shape    `json:"dims,omitempty" yaml:"dims,omitempty"`
	DataType     DataType `json:"dataType" yaml:"dtype"`
	UnknownShape bool     `json:"unknownShape,omitempty" yaml:"unknown_shape,omitempty"`
}

// NewTensorShape creates a known-shape descriptor with the given dims and type.
func NewTensorShape(dims []int, dt DataType) TensorShape {
	return TensorShape{Dims: Shape(dims).Clone(), DataType: dt}
}

// UnknownTensorShape returns a descriptor marked as unknown.
func UnknownTensorShape() TensorShape {
	return TensorShape{UnknownShape: true}
}

// Rank returns the number of dimensions.
func (ts TensorShape) Rank() int {
	return len(ts.Dims)
}

// NumElements returns the element count, or UnknownDim when not known.
func (ts TensorShape) NumElements() int {
	if ts.UnknownShape {
		return UnknownDim
	}
	return ts.Dims.NumElements()
}

// ByteSize returns NumElements times the element size, or UnknownDim.
func (ts TensorShape) ByteSize() int {
	n := ts.NumElements()
	if n < 0 {
		return UnknownDim
	}
	return n * ts.DataType.Size()
}

// Clone returns a deep copy of the descriptor.
func (ts TensorShape) Clone() TensorShape {
	ts.Dims = ts.Dims.Clone()
	return ts
}

// Equal reports whether both descriptors have the same type, shape and flag.
func (ts TensorShape) Equal(other TensorShape) bool {
	return ts.UnknownShape == other.UnknownShape &&
		ts.DataType == other.DataType &&
		ts.Dims.Equal(other.Dims)
}

func (ts TensorShape) String() string {
	if ts.UnknownShape {
		return "unknown"
	}
	return fmt.Sprintf("%s%s", ts.DataType, ts.Dims)
}
