package schema

import (
	"github.com/born-ml/opschema/internal/logging"
	"github.com/born-ml/opschema/internal/opdef"
)

var log = logging.Named("schema")

// Verify reports whether def satisfies the arity and in-place rules.
func (s *Schema) Verify(def *opdef.OperatorDef) bool {
	err := s.Validate(def)
	if err != nil {
		log.Debugw("operator failed schema verification", "op", def.Type, "name", def.Name, "error", err)
		return false
	}
	return true
}

// Validate checks def against the schema and returns a *VerificationError
// describing the first failing check, or nil.
//
// Checks run in order: the joint input/output count rule, the input count
// rule, the output count rule, the output calculator (when configured and
// able to compute a count), then the in-place rules. A pair that shares
// storage must be allowed or enforced; an enforced pair must share storage.
func (s *Schema) Validate(def *opdef.OperatorDef) error {
	nIn, nOut := def.NumInputs(), def.NumOutputs()
	fail := func(check Check) *VerificationError {
		return &VerificationError{
			OpType:     def.Type,
			Check:      check,
			NumInputs:  nIn,
			NumOutputs: nOut,
			In:         -1,
			Out:        -1,
		}
	}

	if !s.numInputsOutputs(nIn, nOut) {
		return fail(CheckInputOutputCount)
	}
	if !s.numInputs.allowed(nIn) {
		return fail(CheckInputCount)
	}
	if !s.numOutputs.allowed(nOut) {
		return fail(CheckOutputCount)
	}
	if expected := s.CalculateOutput(nIn); expected != CannotComputeNumOutputs && expected != nOut {
		err := fail(CheckOutputCalculator)
		err.Expected = expected
		return err
	}

	for in := 0; in < nIn; in++ {
		for out := 0; out < nOut; out++ {
			aliased := def.IsInplace(in, out)
			enforced := s.inplaceEnforced(in, out)
			if aliased && !enforced && !s.inplaceAllowed(in, out) {
				err := fail(CheckInplaceAllowed)
				err.In, err.Out = in, out
				return err
			}
			if enforced && !aliased {
				err := fail(CheckInplaceEnforced)
				err.In, err.Out = in, out
				return err
			}
		}
	}
	return nil
}
