// Package operators registers the schemas of the built-in operators.
//
// Importing the package registers every schema in schema.Default. Tools
// and tests that need an isolated registry call RegisterAll instead.
//
// Operator groups:
//   - Math: Sum, Add, Sub, Mul, Div, MatMul, Gemm, Sqrt, Exp, Log
//   - Activations: Relu, Sigmoid, Tanh, Softmax
//   - Shape: Reshape, Transpose, Concat, Split, Flatten, Shape, Size, ReduceBackSum
//   - Utility: Identity, Dropout, Cast, ScatterAssign, Free, CreateMutex
//   - Device: CopyCPUToGPU, CopyGPUToCPU
package operators
