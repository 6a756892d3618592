package graphcheck

import (
	"github.com/born-ml/opschema/internal/logging"
	"github.com/born-ml/opschema/internal/opdef"
	"github.com/born-ml/opschema/internal/parallel"
	"github.com/born-ml/opschema/internal/schema"
	"github.com/born-ml/opschema/internal/tensor"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var log = logging.Named("graphcheck")

// ErrMissingBlob is returned for an input that no declared blob or earlier
// operator provides.
var ErrMissingBlob = errors.New("blob is not defined")

// BlobInfo is the inferred state of one blob after an operator ran.
type BlobInfo struct {
	Name   string              `json:"name" yaml:"name"`
	Shape  tensor.TensorShape  `json:"shape" yaml:"shape"`
	Device tensor.DeviceOption `json:"device" yaml:"device"`
}

// OpReport holds the result of checking a single operator.
type OpReport struct {
	Index   int          `json:"index" yaml:"index"`
	Name    string       `json:"name,omitempty" yaml:"name,omitempty"`
	Type    string       `json:"type" yaml:"type"`
	Outputs []BlobInfo   `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Cost    *schema.Cost `json:"cost,omitempty" yaml:"cost,omitempty"`
	Errors  []error      `json:"-" yaml:"-"`

	// Problems holds the messages of Errors for serialized reports.
	Problems []string `json:"problems,omitempty" yaml:"problems,omitempty"`
}

// OK reports whether the operator passed every check.
func (o *OpReport) OK() bool { return len(o.Errors) == 0 }

// Label names the operator for diagnostics.
func (o *OpReport) Label() string {
	if o.Name != "" {
		return o.Name + " (" + o.Type + ")"
	}
	return o.Type
}

func (o *OpReport) fail(err error) {
	o.Errors = append(o.Errors, err)
	o.Problems = append(o.Problems, err.Error())
}

// Report is the outcome of Analyze.
type Report struct {
	Graph string      `json:"graph" yaml:"graph"`
	Ops   []OpReport  `json:"ops" yaml:"ops"`
	Total schema.Cost `json:"total" yaml:"total"`

	// Uncosted counts operators whose cost could not be estimated, either
	// because the schema has no cost function or an input shape is unknown.
	Uncosted int `json:"uncosted" yaml:"uncosted"`
}

// Failed returns the number of operators with at least one error.
func (r *Report) Failed() int {
	n := 0
	for i := range r.Ops {
		if !r.Ops[i].OK() {
			n++
		}
	}
	return n
}

// Err combines every operator error, each prefixed with its operator.
func (r *Report) Err() error {
	var err error
	for i := range r.Ops {
		op := &r.Ops[i]
		for _, e := range op.Errors {
			err = multierr.Append(err, errors.Wrapf(e, "op %d %s", op.Index, op.Label()))
		}
	}
	return err
}

type blobState struct {
	shape  tensor.TensorShape
	device tensor.DeviceOption
}

// Analyze checks every operator of g against its schema in reg.
//
// Operators are visited in order. Each one is verified, its inputs are
// resolved from the declared blobs or earlier outputs, input placement is
// checked, and output shapes, devices and cost are inferred. An operator
// that fails still defines its outputs, with unknown shapes, so later
// operators report their own problems instead of cascading missing blobs.
func Analyze(reg *schema.Registry, g *Graph) (*Report, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	blobs := make(map[string]blobState, len(g.Blobs)+len(g.Ops))
	for _, b := range g.Blobs {
		blobs[b.Name] = blobState{shape: b.Shape.Clone(), device: b.Device}
	}

	rep := &Report{Graph: g.Name, Ops: make([]OpReport, 0, len(g.Ops))}
	for i, def := range g.Ops {
		op := checkOp(reg, def, blobs)
		op.Index = i
		for _, b := range op.Outputs {
			blobs[b.Name] = blobState{shape: b.Shape, device: b.Device}
		}
		if op.Cost != nil {
			rep.Total.Flops += op.Cost.Flops
			rep.Total.BytesMoved += op.Cost.BytesMoved
		} else {
			rep.Uncosted++
		}
		if !op.OK() {
			log.Debugw("operator failed graph check", "graph", g.Name, "index", i, "op", def.Type, "errors", len(op.Errors))
		}
		rep.Ops = append(rep.Ops, op)
	}
	return rep, nil
}

func checkOp(reg *schema.Registry, def *opdef.OperatorDef, blobs map[string]blobState) OpReport {
	op := OpReport{Name: def.Name, Type: def.Type}

	s, ok := reg.Lookup(def.Type)
	if !ok {
		op.fail(errors.Wrapf(schema.ErrSchemaNotFound, "%s", def.Type))
		op.Outputs = unknownOutputs(def, nil)
		return op
	}
	if err := s.Validate(def); err != nil {
		op.fail(err)
		op.Outputs = unknownOutputs(def, nil)
		return op
	}

	_, outDevices := s.InferDevice(def)

	in := make([]tensor.TensorShape, def.NumInputs())
	placed := make([]tensor.DeviceOption, def.NumInputs())
	resolved := true
	for i, name := range def.Inputs {
		b, ok := blobs[name]
		if !ok {
			op.fail(errors.Wrapf(ErrMissingBlob, "input %d %q", i, name))
			resolved = false
			continue
		}
		in[i], placed[i] = b.shape, b.device
	}
	if !resolved {
		op.Outputs = unknownOutputs(def, outDevices)
		return op
	}

	if err := s.CheckInputPlacement(def, placed); err != nil {
		op.fail(err)
	}

	shapes, err := s.InferTensor(def, in)
	if err != nil {
		op.fail(err)
		op.Outputs = unknownOutputs(def, outDevices)
		return op
	}
	op.Outputs = make([]BlobInfo, def.NumOutputs())
	for i, name := range def.Outputs {
		ts := tensor.UnknownTensorShape()
		if i < len(shapes) {
			ts = shapes[i]
		}
		op.Outputs[i] = BlobInfo{Name: name, Shape: ts, Device: deviceAt(def, outDevices, i)}
	}

	if s.HasCostInference() && allKnown(in) {
		c, err := s.InferCost(def, in)
		if err != nil {
			op.fail(err)
		} else {
			op.Cost = &c
		}
	}
	return op
}

func unknownOutputs(def *opdef.OperatorDef, devices []tensor.DeviceOption) []BlobInfo {
	out := make([]BlobInfo, def.NumOutputs())
	for i, name := range def.Outputs {
		out[i] = BlobInfo{Name: name, Shape: tensor.UnknownTensorShape(), Device: deviceAt(def, devices, i)}
	}
	return out
}

func deviceAt(def *opdef.OperatorDef, devices []tensor.DeviceOption, i int) tensor.DeviceOption {
	if i < len(devices) {
		return devices[i]
	}
	return def.DeviceOption()
}

func allKnown(in []tensor.TensorShape) bool {
	for _, ts := range in {
		if ts.UnknownShape || ts.NumElements() < 0 {
			return false
		}
	}
	return true
}

// AnalyzeAll checks independent graphs concurrently against the same
// registry. Reports keep the order of graphs; an invalid graph leaves a nil
// report and contributes to the returned error.
func AnalyzeAll(reg *schema.Registry, graphs []*Graph, cfg parallel.Config) ([]*Report, error) {
	reports := make([]*Report, len(graphs))
	err := parallel.For(len(graphs), cfg, func(i int) error {
		rep, err := Analyze(reg, graphs[i])
		if err != nil {
			return errors.Wrapf(err, "graph %d", i)
		}
		reports[i] = rep
		return nil
	})
	return reports, err
}
