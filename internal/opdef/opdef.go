// Package opdef defines the operator invocation consumed by operator schemas.
package opdef

import "github.com/born-ml/opschema/internal/tensor"

// OperatorDef describes one use of an operator in a graph.
// Inputs and outputs are blob names; an input and an output with the same
// name share backing storage (in-place execution).
type OperatorDef struct {
	Name    string               `json:"name,omitempty" yaml:"name,omitempty"`
	Type    string               `json:"type" yaml:"type" validate:"required"`
	Inputs  []string             `json:"inputs,omitempty" yaml:"inputs,omitempty" validate:"dive,required"`
	Outputs []string             `json:"outputs,omitempty" yaml:"outputs,omitempty" validate:"dive,required"`
	Args    []Argument           `json:"args,omitempty" yaml:"args,omitempty" validate:"dive"`
	Device  *tensor.DeviceOption `json:"device,omitempty" yaml:"device,omitempty"`
}

// Argument is a named operator attribute. Only the field matching the
// attribute's kind is meaningful.
type Argument struct {
	Name    string    `json:"name" yaml:"name" validate:"required"`
	F       float32   `json:"f,omitempty" yaml:"f,omitempty"`
	I       int64     `json:"i,omitempty" yaml:"i,omitempty"`
	S       string    `json:"s,omitempty" yaml:"s,omitempty"`
	Floats  []float32 `json:"floats,omitempty" yaml:"floats,omitempty"`
	Ints    []int64   `json:"ints,omitempty" yaml:"ints,omitempty"`
	Strings []string  `json:"strings,omitempty" yaml:"strings,omitempty"`
}

// New creates an OperatorDef of the given type.
func New(opType string, inputs, outputs []string, args ...Argument) *OperatorDef {
	return &OperatorDef{
		Type:    opType,
		Inputs:  inputs,
		Outputs: outputs,
		Args:    args,
	}
}

// IntArg builds an integer argument.
func IntArg(name string, v int64) Argument { return Argument{Name: name, I: v} }

// IntsArg builds an integer list argument.
func IntsArg(name string, v ...int64) Argument { return Argument{Name: name, Ints: v} }

// FloatArg builds a float argument.
func FloatArg(name string, v float32) Argument { return Argument{Name: name, F: v} }

// StringArg builds a string argument.
func StringArg(name, v string) Argument { return Argument{Name: name, S: v} }

// NumInputs returns the number of inputs.
func (d *OperatorDef) NumInputs() int { return len(d.Inputs) }

// NumOutputs returns the number of outputs.
func (d *OperatorDef) NumOutputs() int { return len(d.Outputs) }

// IsInplace reports whether input in and output out refer to the same blob.
func (d *OperatorDef) IsInplace(in, out int) bool {
	return d.Inputs[in] == d.Outputs[out]
}

// HasDevice reports whether the invocation declares a device placement.
func (d *OperatorDef) HasDevice() bool {
	return d.Device != nil
}

// DeviceOption returns the declared device placement, or the default one.
func (d *OperatorDef) DeviceOption() tensor.DeviceOption {
	if d.Device == nil {
		return tensor.DeviceOption{}
	}
	return *d.Device
}

// WithDevice sets the device placement and returns the receiver.
func (d *OperatorDef) WithDevice(opt tensor.DeviceOption) *OperatorDef {
	d.Device = &opt
	return d
}

// Arg returns the argument with the given name.
func (d *OperatorDef) Arg(name string) (*Argument, bool) {
	for i := range d.Args {
		if d.Args[i].Name == name {
			return &d.Args[i], true
		}
	}
	return nil, false
}

// HasArg reports whether the argument is present.
func (d *OperatorDef) HasArg(name string) bool {
	_, ok := d.Arg(name)
	return ok
}

// ArgInt returns an integer argument or default value.
func (d *OperatorDef) ArgInt(name string, defaultVal int64) int64 {
	if a, ok := d.Arg(name); ok {
		return a.I
	}
	return defaultVal
}

// ArgInts returns an integer array argument.
func (d *OperatorDef) ArgInts(name string) []int64 {
	if a, ok := d.Arg(name); ok {
		return a.Ints
	}
	return nil
}

// ArgFloat returns a float argument or default value.
func (d *OperatorDef) ArgFloat(name string, defaultVal float32) float32 {
	if a, ok := d.Arg(name); ok {
		return a.F
	}
	return defaultVal
}

// ArgString returns a string argument or default value.
func (d *OperatorDef) ArgString(name, defaultVal string) string {
	if a, ok := d.Arg(name); ok {
		return a.S
	}
	return defaultVal
}
