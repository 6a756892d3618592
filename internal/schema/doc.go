// Package schema records the contract of each operator type and evaluates
// it against concrete invocations.
//
// A Schema is configured once, usually from a package init function, through
// chained builder calls:
//
//	func init() {
//	    schema.Register("Sum").
//	        NumInputsRange(1, schema.Unbounded).
//	        NumOutputs(1).
//	        AllowInplacePairs(schema.InplacePair{In: 0, Out: 0}).
//	        IdenticalTypeAndShapeOfInput(0)
//	}
//
// Each setter replaces the corresponding rule; rules never compose.
// After initialization the execution layer looks schemas up by operator
// type and calls the query methods:
//
//   - Verify / Validate: arity and in-place aliasing checks
//   - InferTensor: output type and shape inference
//   - InferCost: FLOPs and bytes moved
//   - InferDevice: required placement of inputs and outputs
//   - CalculateOutput: output count derived from the input count
//
// Registering the same operator type twice panics. Schemas are
// registered during init, so the panic aborts the process before any
// graph is built.
package schema
