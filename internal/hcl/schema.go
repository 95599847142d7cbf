package hcl

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot is used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Kinds  []*kindBlock  `hcl:"kind,block"`
	Inputs []*inputBlock `hcl:"input,block"`
	Ops    []*opBlock    `hcl:"op,block"`
	Rules  []*ruleBlock  `hcl:"rule,block"`
}

type kindBlock struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
	Inputs      *int   `hcl:"inputs,optional"`
	Outputs     *int   `hcl:"outputs,optional"`
}

type inputBlock struct {
	Name        string   `hcl:"name,label"`
	ControlDeps []string `hcl:"control_deps,optional"`
}

type opBlock struct {
	Name        string         `hcl:"name,label"`
	Kind        string         `hcl:"kind"`
	Inputs      []string       `hcl:"inputs,optional"`
	Outputs     []string       `hcl:"outputs,optional"`
	ControlDeps []string       `hcl:"control_deps,optional"`
	Attributes  hcl.Expression `hcl:"attributes,optional"`
}

type ruleBlock struct {
	Name    string        `hcl:"name,label"`
	Match   *matchBlock   `hcl:"match,block"`
	Replace *replaceBlock `hcl:"replace,block"`
}

type matchBlock struct {
	Kind        string             `hcl:"kind,optional"`
	KindPattern string             `hcl:"kind_pattern,optional"`
	Name        string             `hcl:"name,optional"`
	NamePattern string             `hcl:"name_pattern,optional"`
	When        string             `hcl:"when,optional"`
	InputCount  *int               `hcl:"input_count,optional"`
	OutputCount *int               `hcl:"output_count,optional"`
	Inputs      []*inputMatchBlock `hcl:"input,block"`
}

// inputMatchBlock carries its own index and include flag; the rest of its
// body is a nested matchBlock decoded on translation.
type inputMatchBlock struct {
	Index   int      `hcl:"index"`
	Include bool     `hcl:"include,optional"`
	Body    hcl.Body `hcl:",remain"`
}

type replaceBlock struct {
	Kind           string         `hcl:"kind,optional"`
	Bypass         bool           `hcl:"bypass,optional"`
	KeepAttributes bool           `hcl:"keep_attributes,optional"`
	Attributes     hcl.Expression `hcl:"attributes,optional"`
}
