// Package docgen renders the operator catalog held by a schema registry.
package docgen

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/born-ml/opschema/internal/schema"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var validate = validator.New()

// Output formats.
const (
	Markdown = "markdown"
	YAML     = "yaml"
	JSON     = "json"
)

// Options controls rendering.
type Options struct {
	Format         string `validate:"oneof=markdown yaml json"`
	IncludePrivate bool
}

// OperatorDoc is the rendered view of one schema.
type OperatorDoc struct {
	Name                  string            `json:"name" yaml:"name"`
	Doc                   string            `json:"doc,omitempty" yaml:"doc,omitempty"`
	Inputs                string            `json:"inputs" yaml:"inputs"`
	Outputs               string            `json:"outputs" yaml:"outputs"`
	Inplace               string            `json:"inplace" yaml:"inplace"`
	InputsCanCrossDevices bool              `json:"inputsCanCrossDevices,omitempty" yaml:"inputs_can_cross_devices,omitempty"`
	CostInference         bool              `json:"costInference" yaml:"cost_inference"`
	Private               bool              `json:"private,omitempty" yaml:"private,omitempty"`
	File                  string            `json:"file" yaml:"file"`
	Line                  int               `json:"line" yaml:"line"`
	Args                  []schema.DocEntry `json:"args,omitempty" yaml:"args,omitempty"`
	InputDocs             []schema.DocEntry `json:"inputDocs,omitempty" yaml:"input_docs,omitempty"`
	OutputDocs            []schema.DocEntry `json:"outputDocs,omitempty" yaml:"output_docs,omitempty"`
}

// Collect returns documentation for every schema in r sorted by name.
// Private schemas are skipped unless includePrivate is set.
func Collect(r *schema.Registry, includePrivate bool) []OperatorDoc {
	names := r.Names()
	docs := make([]OperatorDoc, 0, len(names))
	for _, name := range names {
		s, ok := r.Lookup(name)
		if !ok || (s.IsPrivate() && !includePrivate) {
			continue
		}
		docs = append(docs, Describe(s))
	}
	return docs
}

// Describe builds the documentation view of a single schema.
func Describe(s *schema.Schema) OperatorDoc {
	return OperatorDoc{
		Name:                  s.Name(),
		Doc:                   s.Doc(),
		Inputs:                s.InputArity(),
		Outputs:               s.OutputArity(),
		Inplace:               s.InplaceRule(),
		InputsCanCrossDevices: s.AllowsCrossDeviceInputs(),
		CostInference:         s.HasCostInference(),
		Private:               s.IsPrivate(),
		File:                  filepath.Base(s.File()),
		Line:                  s.Line(),
		Args:                  s.ArgDocs(),
		InputDocs:             s.InputDocs(),
		OutputDocs:            s.OutputDocs(),
	}
}

// Render writes the catalog of r to w in the requested format.
func Render(w io.Writer, r *schema.Registry, opts Options) error {
	if err := validate.Struct(opts); err != nil {
		return errors.Wrap(err, "invalid docgen options")
	}
	docs := Collect(r, opts.IncludePrivate)

	switch opts.Format {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(docs); err != nil {
			return errors.Wrap(err, "encoding yaml")
		}
		return errors.Wrap(enc.Close(), "encoding yaml")
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(docs), "encoding json")
	default:
		return writeMarkdown(w, docs)
	}
}

func writeMarkdown(w io.Writer, docs []OperatorDoc) error {
	var b strings.Builder
	b.WriteString("# Operator catalog\n")
	for i := range docs {
		b.WriteString("\n")
		WriteMarkdown(&b, &docs[i])
	}
	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "writing markdown")
}

// WriteMarkdown appends the Markdown section for one operator to b.
func WriteMarkdown(b *strings.Builder, d *OperatorDoc) {
	fmt.Fprintf(b, "## %s\n\n", d.Name)
	if d.Doc != "" {
		fmt.Fprintf(b, "%s\n\n", d.Doc)
	}

	b.WriteString("| Property | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Inputs | %s |\n", d.Inputs)
	fmt.Fprintf(b, "| Outputs | %s |\n", d.Outputs)
	fmt.Fprintf(b, "| In-place | %s |\n", d.Inplace)
	if d.InputsCanCrossDevices {
		b.WriteString("| Cross-device inputs | yes |\n")
	}
	fmt.Fprintf(b, "| Cost inference | %s |\n", yesNo(d.CostInference))
	if d.Private {
		b.WriteString("| Private | yes |\n")
	}
	fmt.Fprintf(b, "| Defined at | `%s:%d` |\n", d.File, d.Line)

	writeEntries(b, "Arguments", d.Args, false)
	writeEntries(b, "Inputs", d.InputDocs, true)
	writeEntries(b, "Outputs", d.OutputDocs, true)
}

func writeEntries(b *strings.Builder, title string, entries []schema.DocEntry, indexed bool) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n", title)
	for _, e := range entries {
		if indexed {
			fmt.Fprintf(b, "- %d. `%s`: %s\n", e.Index, e.Name, e.Description)
		} else {
			fmt.Fprintf(b, "- `%s`: %s\n", e.Name, e.Description)
		}
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
