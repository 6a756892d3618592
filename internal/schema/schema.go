package schema

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/tensor"
)

// Unbounded is the open upper limit for input and output count ranges.
const Unbounded = math.MaxInt

// CannotComputeNumOutputs is returned by CalculateOutput when the output
// count cannot be derived from the input count.
const CannotComputeNumOutputs = -1

// InplacePair names an (input index, output index) pair.
type InplacePair struct {
	In  int `json:"in" yaml:"in"`
	Out int `json:"out" yaml:"out"`
}

// Cost is the estimated cost of running an operator once.
type Cost struct {
	Flops      uint64 `json:"flops" yaml:"flops"`            // Floating point operations.
	BytesMoved uint64 `json:"bytesMoved" yaml:"bytes_moved"` // Total memory read and written.
}

// TensorInferenceFunc computes output descriptors from the input descriptors.
type TensorInferenceFunc func(def *opdef.OperatorDef, in []tensor.TensorShape) ([]tensor.TensorShape, error)

// CostInferenceFunc estimates the cost of an invocation.
type CostInferenceFunc func(def *opdef.OperatorDef, in []tensor.TensorShape) (Cost, error)

// DeviceInferenceFunc returns the required placement of every input and output.
type DeviceInferenceFunc func(def *opdef.OperatorDef) (in, out []tensor.DeviceOption)

// DocEntry documents one argument, input or output.
type DocEntry struct {
	Index       int    `json:"index" yaml:"index"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// countRule is a predicate over a count plus its rendering for docs.
type countRule struct {
	allowed func(int) bool
	text    string
}

func anyCount() countRule {
	return countRule{allowed: func(int) bool { return true }, text: "any"}
}

func exactCount(n int) countRule {
	return countRule{allowed: func(c int) bool { return c == n }, text: fmt.Sprint(n)}
}

func rangeCount(lo, hi int) countRule {
	text := fmt.Sprintf("%d to %d", lo, hi)
	if hi == Unbounded {
		text = fmt.Sprintf("%d or more", lo)
	}
	return countRule{allowed: func(c int) bool { return c >= lo && c <= hi }, text: text}
}

func setCount(allowed []int) countRule {
	set := slices.Clone(allowed)
	slices.Sort(set)
	set = slices.Compact(set)
	parts := make([]string, len(set))
	for i, n := range set {
		parts[i] = fmt.Sprint(n)
	}
	return countRule{
		allowed: func(c int) bool {
			_, found := slices.BinarySearch(set, c)
			return found
		},
		text: "one of {" + strings.Join(parts, ", ") + "}",
	}
}

func funcCount(fn func(int) bool) countRule {
	return countRule{allowed: fn, text: "custom"}
}

// Schema records the contract of one operator type.
//
// Builder methods return the receiver so calls can be chained. A schema
// must be fully configured before it is queried; it is not safe to
// configure a schema concurrently with other calls on it.
type Schema struct {
	name string
	file string
	line int

	doc     string
	args    []DocEntry
	inputs  []DocEntry
	outputs []DocEntry

	private               bool
	inputsCanCrossDevices bool

	numInputs        countRule
	numOutputs       countRule
	numInputsOutputs func(in, out int) bool
	calculateOutput  func(int) int

	inplaceAllowed  func(in, out int) bool
	inplaceEnforced func(in, out int) bool
	allowedText     string
	enforcedText    string

	tensorInference TensorInferenceFunc
	costInference   CostInferenceFunc
	deviceInference DeviceInferenceFunc
}

// New creates a schema with default rules: any input and output count,
// no in-place execution, unknown output shapes, no cost function, and
// every tensor on the operator's device.
func New(name, file string, line int) *Schema {
	return &Schema{
		name:             name,
		file:             file,
		line:             line,
		numInputs:        anyCount(),
		numOutputs:       anyCount(),
		numInputsOutputs: func(int, int) bool { return true },
		inplaceAllowed:   func(int, int) bool { return false },
		inplaceEnforced:  func(int, int) bool { return false },
		tensorInference:  unknownShapes,
		deviceInference:  sameDevice,
	}
}

// Name returns the operator type.
func (s *Schema) Name() string { return s.name }

// File returns the file that registered the schema.
func (s *Schema) File() string { return s.file }

// Line returns the line in File that registered the schema.
func (s *Schema) Line() int { return s.line }

// NumInputs allows exactly n inputs.
func (s *Schema) NumInputs(n int) *Schema {
	s.numInputs = exactCount(n)
	return s
}

// NumInputsRange allows between lo and hi inputs, inclusive.
func (s *Schema) NumInputsRange(lo, hi int) *Schema {
	s.numInputs = rangeCount(lo, hi)
	return s
}

// NumInputsSet allows any of the listed input counts.
func (s *Schema) NumInputsSet(allowed ...int) *Schema {
	s.numInputs = setCount(allowed)
	return s
}

// NumInputsFunc checks the input count with fn.
func (s *Schema) NumInputsFunc(fn func(int) bool) *Schema {
	s.numInputs = funcCount(fn)
	return s
}

// NumOutputs allows exactly n outputs.
func (s *Schema) NumOutputs(n int) *Schema {
	s.numOutputs = exactCount(n)
	return s
}

// NumOutputsRange allows between lo and hi outputs, inclusive.
func (s *Schema) NumOutputsRange(lo, hi int) *Schema {
	s.numOutputs = rangeCount(lo, hi)
	return s
}

// NumOutputsSet allows any of the listed output counts.
func (s *Schema) NumOutputsSet(allowed ...int) *Schema {
	s.numOutputs = setCount(allowed)
	return s
}

// NumOutputsFunc checks the output count with fn.
func (s *Schema) NumOutputsFunc(fn func(int) bool) *Schema {
	s.numOutputs = funcCount(fn)
	return s
}

// NumInputsOutputs checks the (input count, output count) combination with fn.
func (s *Schema) NumInputsOutputs(fn func(in, out int) bool) *Schema {
	s.numInputsOutputs = fn
	return s
}

// OutputCalculator derives the output count from the input count.
// fn may return CannotComputeNumOutputs for inputs it cannot handle.
func (s *Schema) OutputCalculator(fn func(int) int) *Schema {
	s.calculateOutput = fn
	return s
}

// SameNumberOfOutput makes the output count equal the input count.
func (s *Schema) SameNumberOfOutput() *Schema {
	return s.OutputCalculator(func(n int) int { return n })
}

// CalculateOutput returns the output count for numInputs inputs, or
// CannotComputeNumOutputs when no calculator is configured.
func (s *Schema) CalculateOutput(numInputs int) int {
	if s.calculateOutput == nil {
		return CannotComputeNumOutputs
	}
	return s.calculateOutput(numInputs)
}

// AllowInplace permits input in and output out to share storage when fn(in, out) holds.
func (s *Schema) AllowInplace(fn func(in, out int) bool) *Schema {
	s.inplaceAllowed = fn
	s.allowedText = "custom"
	return s
}

// AllowInplacePairs permits in-place execution for the listed pairs only.
func (s *Schema) AllowInplacePairs(pairs ...InplacePair) *Schema {
	s.inplaceAllowed = pairSet(pairs)
	s.allowedText = formatPairs(pairs)
	return s
}

// AllowOneToOneInplace permits input i to share storage with output i.
func (s *Schema) AllowOneToOneInplace() *Schema {
	s.inplaceAllowed = oneToOne
	s.allowedText = "one-to-one"
	return s
}

// EnforceInplace requires input in and output out to share storage when fn(in, out) holds.
func (s *Schema) EnforceInplace(fn func(in, out int) bool) *Schema {
	s.inplaceEnforced = fn
	s.enforcedText = "custom"
	return s
}

// EnforceInplacePairs requires in-place execution for the listed pairs.
func (s *Schema) EnforceInplacePairs(pairs ...InplacePair) *Schema {
	s.inplaceEnforced = pairSet(pairs)
	s.enforcedText = formatPairs(pairs)
	return s
}

// EnforceOneToOneInplace requires input i to share storage with output i.
func (s *Schema) EnforceOneToOneInplace() *Schema {
	s.inplaceEnforced = oneToOne
	s.enforcedText = "one-to-one"
	return s
}

func oneToOne(in, out int) bool { return in == out }

func pairSet(pairs []InplacePair) func(in, out int) bool {
	set := make(map[InplacePair]struct{}, len(pairs))
	for _, p := range pairs {
		set[p] = struct{}{}
	}
	return func(in, out int) bool {
		_, ok := set[InplacePair{In: in, Out: out}]
		return ok
	}
}

func formatPairs(pairs []InplacePair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("(%d, %d)", p.In, p.Out)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// TensorInferenceFunction sets the output type and shape inference function.
func (s *Schema) TensorInferenceFunction(fn TensorInferenceFunc) *Schema {
	s.tensorInference = fn
	return s
}

// CostInferenceFunction sets the cost inference function.
func (s *Schema) CostInferenceFunction(fn CostInferenceFunc) *Schema {
	s.costInference = fn
	return s
}

// DeviceInferenceFunction sets the device placement function.
func (s *Schema) DeviceInferenceFunction(fn DeviceInferenceFunc) *Schema {
	s.deviceInference = fn
	return s
}

// SetDoc sets the operator description.
func (s *Schema) SetDoc(doc string) *Schema {
	s.doc = strings.TrimSpace(doc)
	return s
}

// Arg documents an operator argument. Arguments keep declaration order.
func (s *Schema) Arg(name, description string) *Schema {
	s.args = append(s.args, DocEntry{Index: len(s.args), Name: name, Description: description})
	return s
}

// Input documents input n.
func (s *Schema) Input(n int, name, description string) *Schema {
	s.inputs = append(s.inputs, DocEntry{Index: n, Name: name, Description: description})
	return s
}

// Output documents output n.
func (s *Schema) Output(n int, name, description string) *Schema {
	s.outputs = append(s.outputs, DocEntry{Index: n, Name: name, Description: description})
	return s
}

// FillUsing calls populator with the schema. Operators with a common
// structure share their configuration this way.
func (s *Schema) FillUsing(populator func(*Schema)) *Schema {
	populator(s)
	return s
}

// Private hides the operator from generated documentation.
func (s *Schema) Private() *Schema {
	s.private = true
	return s
}

// InputsCanCrossDevices marks an operator that reads inputs from devices
// other than its own.
func (s *Schema) InputsCanCrossDevices() *Schema {
	s.inputsCanCrossDevices = true
	return s
}

// Doc returns the operator description.
func (s *Schema) Doc() string { return s.doc }

// ArgDocs returns the documented arguments in declaration order.
func (s *Schema) ArgDocs() []DocEntry { return slices.Clone(s.args) }

// InputDocs returns the documented inputs in declaration order.
func (s *Schema) InputDocs() []DocEntry { return slices.Clone(s.inputs) }

// OutputDocs returns the documented outputs in declaration order.
func (s *Schema) OutputDocs() []DocEntry { return slices.Clone(s.outputs) }

// IsPrivate reports whether the operator is hidden from documentation.
func (s *Schema) IsPrivate() bool { return s.private }

// AllowsCrossDeviceInputs reports whether InputsCanCrossDevices was set.
func (s *Schema) AllowsCrossDeviceInputs() bool { return s.inputsCanCrossDevices }

// HasCostInference reports whether a cost function was registered.
func (s *Schema) HasCostInference() bool { return s.costInference != nil }

// InputArity describes the allowed input counts.
func (s *Schema) InputArity() string { return s.numInputs.text }

// OutputArity describes the allowed output counts.
func (s *Schema) OutputArity() string { return s.numOutputs.text }

// InplaceRule describes the in-place rules, or "none".
func (s *Schema) InplaceRule() string {
	switch {
	case s.allowedText == "" && s.enforcedText == "":
		return "none"
	case s.enforcedText == "":
		return "allowed " + s.allowedText
	case s.allowedText == "":
		return "enforced " + s.enforcedText
	default:
		return "allowed " + s.allowedText + ", enforced " + s.enforcedText
	}
}

// String renders the schema the way it appears in diagnostics.
func (s *Schema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schema %s (%s:%d)\n", s.name, s.file, s.line)
	fmt.Fprintf(&b, "Inputs: %s, Outputs: %s, In-place: %s\n", s.InputArity(), s.OutputArity(), s.InplaceRule())
	if s.doc != "" {
		fmt.Fprintf(&b, "%s\n", s.doc)
	}
	writeEntries(&b, "Arguments", s.args)
	writeEntries(&b, "Inputs", s.inputs)
	writeEntries(&b, "Outputs", s.outputs)
	return b.String()
}

func writeEntries(b *strings.Builder, title string, entries []DocEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, e := range entries {
		fmt.Fprintf(b, "  %d, %s : %s\n", e.Index, e.Name, e.Description)
	}
}
