package operators

import (
	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/schema"
	"github.com/born-ml/opschema/internal/tensor"
)

// registerDeviceOps adds the cross-device copy schemas to the registry.
// Both run on the accelerator named by the operator's device option.
func registerDeviceOps(r *schema.Registry) {
	register(r, "CopyCPUToGPU").
		FillUsing(deviceCopy).
		DeviceInferenceFunction(func(def *opdef.OperatorDef) (in, out []tensor.DeviceOption) {
			return placeAll(def.NumInputs(), host), placeAll(def.NumOutputs(), def.DeviceOption())
		}).
		SetDoc("Copies a tensor from host memory to the operator's accelerator.").
		Input(0, "input", "Tensor in host memory.").
		Output(0, "output", "Tensor on the accelerator.")

	register(r, "CopyGPUToCPU").
		FillUsing(deviceCopy).
		DeviceInferenceFunction(func(def *opdef.OperatorDef) (in, out []tensor.DeviceOption) {
			return placeAll(def.NumInputs(), def.DeviceOption()), placeAll(def.NumOutputs(), host)
		}).
		SetDoc("Copies a tensor from the operator's accelerator to host memory.").
		Input(0, "input", "Tensor on the accelerator.").
		Output(0, "output", "Tensor in host memory.")
}

func deviceCopy(s *schema.Schema) {
	s.NumInputs(1).
		NumOutputs(1).
		InputsCanCrossDevices().
		IdenticalTypeAndShape().
		CostInferenceFunction(copyCost)
}

// host is the default CPU placement.
var host = tensor.DeviceOption{Device: tensor.CPU}

func placeAll(n int, dev tensor.DeviceOption) []tensor.DeviceOption {
	out := make([]tensor.DeviceOption, n)
	for i := range out {
		out[i] = dev
	}
	return out
}
