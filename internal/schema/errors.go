package schema

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoCostInference is returned by InferCost when no cost function was registered.
	ErrNoCostInference = errors.New("no cost inference function registered")

	// ErrSchemaNotFound is returned by helpers that require a registered schema.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrInvalidInput is returned when inference receives input shapes that
	// do not satisfy the inference rule (missing index, bad rank).
	ErrInvalidInput = errors.New("invalid inference input")

	// ErrDevicePlacement is returned when an input resides on a device the
	// operator cannot read from.
	ErrDevicePlacement = errors.New("invalid device placement")
)

// IsConfigError reports whether err stems from an incomplete schema
// configuration rather than from the invocation being checked.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrNoCostInference)
}

// DuplicateSchemaError is the panic value raised when an operator type is
// registered twice.
type DuplicateSchemaError struct {
	Name      string
	File      string
	Line      int
	FirstFile string
	FirstLine int
}

func (e *DuplicateSchemaError) Error() string {
	return fmt.Sprintf("trying to register schema with name %s from file %s line %d, "+
		"but it is already registered from file %s line %d",
		e.Name, e.File, e.Line, e.FirstFile, e.FirstLine)
}

// Check identifies one verification step.
type Check int

// Verification steps, in evaluation order.
const (
	CheckInputOutputCount Check = iota
	CheckInputCount
	CheckOutputCount
	CheckOutputCalculator
	CheckInplaceAllowed
	CheckInplaceEnforced
)

func (c Check) String() string {
	switch c {
	case CheckInputOutputCount:
		return "input/output count"
	case CheckInputCount:
		return "input count"
	case CheckOutputCount:
		return "output count"
	case CheckOutputCalculator:
		return "calculated output count"
	case CheckInplaceAllowed:
		return "in-place allowed"
	case CheckInplaceEnforced:
		return "in-place enforced"
	default:
		return "unknown"
	}
}

// VerificationError describes why an invocation failed Validate.
// In and Out are blob indices for the in-place checks and -1 otherwise.
type VerificationError struct {
	OpType     string
	Check      Check
	NumInputs  int
	NumOutputs int
	In, Out    int
	Expected   int
}

func (e *VerificationError) Error() string {
	switch e.Check {
	case CheckInputOutputCount:
		return fmt.Sprintf("%s: combination of %d inputs and %d outputs not allowed",
			e.OpType, e.NumInputs, e.NumOutputs)
	case CheckInputCount:
		return fmt.Sprintf("%s: %d inputs not allowed", e.OpType, e.NumInputs)
	case CheckOutputCount:
		return fmt.Sprintf("%s: %d outputs not allowed", e.OpType, e.NumOutputs)
	case CheckOutputCalculator:
		return fmt.Sprintf("%s: expected %d outputs for %d inputs, got %d",
			e.OpType, e.Expected, e.NumInputs, e.NumOutputs)
	case CheckInplaceAllowed:
		return fmt.Sprintf("%s: input %d and output %d are in-place but in-place is not allowed",
			e.OpType, e.In, e.Out)
	case CheckInplaceEnforced:
		return fmt.Sprintf("%s: input %d and output %d must be in-place",
			e.OpType, e.In, e.Out)
	default:
		return fmt.Sprintf("%s: verification failed", e.OpType)
	}
}
