// Package main provides the opschema CLI for browsing the operator catalog
// and checking operator graphs.
package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/born-ml/opschema/internal/docgen"
	"github.com/born-ml/opschema/internal/graphcheck"
	"github.com/born-ml/opschema/internal/logging"
	_ "github.com/born-ml/opschema/internal/operators"
	"github.com/born-ml/opschema/internal/parallel"
	"github.com/born-ml/opschema/internal/schema"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const version = "v0.1.0-dev"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var validate = validator.New()

// Options holds the flags shared by every command.
type Options struct {
	LogLevel string `validate:"oneof=debug info warn error"`
}

type checkOptions struct {
	Format string `validate:"oneof=text yaml json"`
}

func main() {
	err := newRootCmd(schema.Default()).Execute()
	logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(reg *schema.Registry) *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:          "opschema",
		Short:        "Inspect operator schemas and check operator graphs",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validate.Struct(opts); err != nil {
				return errors.Wrap(err, "invalid flags")
			}
			return logging.SetLevel(opts.LogLevel)
		},
	}
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newVersionCmd(),
		newListCmd(reg),
		newDescribeCmd(reg),
		newDocsCmd(reg),
		newCheckCmd(reg),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "opschema %s\n", version)
		},
	}
}

func newListCmd(reg *schema.Registry) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered operators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tINPUTS\tOUTPUTS\tIN-PLACE\tCOST")
			for _, d := range docgen.Collect(reg, all) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", d.Name, d.Inputs, d.Outputs, d.Inplace, d.CostInference)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include private operators")
	return cmd
}

func newDescribeCmd(reg *schema.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <operator>",
		Short: "Show the schema of one operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := reg.Lookup(args[0])
			if !ok {
				return errors.Wrapf(schema.ErrSchemaNotFound, "%s", args[0])
			}
			fmt.Fprint(cmd.OutOrStdout(), s.String())
			return nil
		},
	}
}

func newDocsCmd(reg *schema.Registry) *cobra.Command {
	opts := docgen.Options{}
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Render the operator catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return docgen.Render(cmd.OutOrStdout(), reg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Format, "format", docgen.Markdown, "output format (markdown, yaml, json)")
	cmd.Flags().BoolVar(&opts.IncludePrivate, "all", false, "include private operators")
	return cmd
}

func newCheckCmd(reg *schema.Registry) *cobra.Command {
	opts := checkOptions{}
	cmd := &cobra.Command{
		Use:   "check <graph.yaml>...",
		Short: "Check operator graphs against the registered schemas",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate.Struct(opts); err != nil {
				return errors.Wrap(err, "invalid flags")
			}
			graphs := make([]*graphcheck.Graph, len(args))
			for i, path := range args {
				g, err := loadGraph(path)
				if err != nil {
					return err
				}
				graphs[i] = g
			}

			reports, err := graphcheck.AnalyzeAll(reg, graphs, parallel.DefaultConfig())
			if err != nil {
				return err
			}
			failed := 0
			for _, rep := range reports {
				if err := writeReport(cmd.OutOrStdout(), rep, opts.Format); err != nil {
					return err
				}
				if rep.Failed() > 0 {
					failed++
				}
			}
			if failed > 0 {
				return errors.Errorf("%d of %d graphs failed", failed, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Format, "format", "text", "report format (text, yaml, json)")
	return cmd
}

func loadGraph(path string) (*graphcheck.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening graph")
	}
	defer f.Close()

	g, err := graphcheck.LoadGraph(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return g, nil
}

func writeReport(w io.Writer, rep *graphcheck.Report, format string) error {
	switch format {
	case "yaml":
		return errors.Wrap(yaml.NewEncoder(w).Encode(rep), "encoding report")
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(rep), "encoding report")
	}

	fmt.Fprintf(w, "graph %s: %d ops, %d failed\n", rep.Graph, len(rep.Ops), rep.Failed())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i := range rep.Ops {
		op := &rep.Ops[i]
		status := "ok"
		if !op.OK() {
			status = "FAIL"
		}
		for _, b := range op.Outputs {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\t%s\n", op.Index, op.Label(), status, b.Name, b.Shape, b.Device)
		}
		if len(op.Outputs) == 0 {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t\t\t\n", op.Index, op.Label(), status)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for i := range rep.Ops {
		for _, p := range rep.Ops[i].Problems {
			fmt.Fprintf(w, "  error: op %d: %s\n", rep.Ops[i].Index, p)
		}
	}
	fmt.Fprintf(w, "total: %d flops, %d bytes moved (%d ops uncosted)\n",
		rep.Total.Flops, rep.Total.BytesMoved, rep.Uncosted)
	return nil
}
