package hcl

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/specialistvlad/opgraph/internal/config"
	"github.com/specialistvlad/opgraph/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// Writer is the HCL-specific implementation of the config.Writer interface.
// It renders kinds and the graph; rules are not written.
type Writer struct{}

// NewWriter creates a new HCL writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write renders m as a graph file the Loader accepts: kinds sorted by name,
// then graph inputs and ops in model order.
func (wr *Writer) Write(ctx context.Context, w io.Writer, m *config.Model) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	names := make([]string, 0, len(m.Kinds))
	for name := range m.Kinds {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		k := m.Kinds[name]
		kb := body.AppendNewBlock("kind", []string{name}).Body()
		if k.Description != "" {
			kb.SetAttributeValue("description", cty.StringVal(k.Description))
		}
		if k.Inputs != config.Variadic {
			kb.SetAttributeValue("inputs", cty.NumberIntVal(int64(k.Inputs)))
		}
		if k.Outputs != config.Variadic {
			kb.SetAttributeValue("outputs", cty.NumberIntVal(int64(k.Outputs)))
		}
		body.AppendNewline()
	}

	if m.Graph != nil {
		for _, in := range m.Graph.Inputs {
			ib := body.AppendNewBlock("input", []string{in.Name}).Body()
			if len(in.ControlDeps) > 0 {
				ib.SetAttributeValue("control_deps", stringList(in.ControlDeps))
			}
		}
		if len(m.Graph.Inputs) > 0 {
			body.AppendNewline()
		}
		for _, op := range m.Graph.Ops {
			ob := body.AppendNewBlock("op", []string{op.Name}).Body()
			ob.SetAttributeValue("kind", cty.StringVal(op.Kind))
			ob.SetAttributeValue("inputs", stringList(op.Inputs))
			ob.SetAttributeValue("outputs", stringList(op.Outputs))
			if len(op.ControlDeps) > 0 {
				ob.SetAttributeValue("control_deps", stringList(op.ControlDeps))
			}
			if len(op.Attributes) > 0 {
				ob.SetAttributeValue("attributes", cty.ObjectVal(op.Attributes))
			}
			body.AppendNewline()
		}
	}

	out := hclwrite.Format(f.Bytes())
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("failed to write HCL: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("HCL graph written.", "bytes", len(out))
	return nil
}

func stringList(ss []string) cty.Value {
	if len(ss) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(ss))
	for i, s := range ss {
		vals[i] = cty.StringVal(s)
	}
	return cty.ListVal(vals)
}
