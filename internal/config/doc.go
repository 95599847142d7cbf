// Package config defines the format-agnostic model of operator graph and
// rewrite rule files, along with the Loader and Writer interfaces that
// concrete formats implement.
//
// The Model is the single input of the builder and rules packages. The HCL
// implementation lives in the hcl package.
package config
