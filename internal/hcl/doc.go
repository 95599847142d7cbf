// Package hcl provides the concrete HCL implementation of the config.Loader
// and config.Writer interfaces. It is responsible for all file parsing and
// HCL-to-model translation, plus rendering a model back into canonical HCL.
//
// Graph files declare kinds, graph inputs and ops:
//
//	kind "add" {
//	  inputs  = 2
//	  outputs = 1
//	}
//	input "x" {}
//	op "Y" {
//	  kind       = "add"
//	  inputs     = ["x", "w"]
//	  outputs    = ["y"]
//	  attributes = { alpha = 0.5 }
//	}
//
// Rule files declare rewrite rules. Any file may hold any block type.
//
//	rule "fuse_add_relu" {
//	  match {
//	    kind = "relu"
//	    input {
//	      index   = 0
//	      kind    = "add"
//	      include = true
//	    }
//	  }
//	  replace {
//	    kind = "add_relu"
//	  }
//	}
package hcl
