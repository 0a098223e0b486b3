// Package hcl provides the HCL implementation of config.Loader. It parses
// `graph`, `node`, `connect` and `observe` blocks and translates them into
// the format-agnostic config.Model. Node arguments are evaluated into
// cty values with a small set of standard functions available.
//
// Example:
//
//	graph {
//	  strategy = "islands"
//	  ticks    = 100
//	}
//
//	node "constant" "k" {
//	  arguments {
//	    value = max(2, 3)
//	  }
//	}
//
//	node "add" "sum" {
//	  arrays = { terms = 2 }
//	}
//
//	connect {
//	  from = "k.out"
//	  to   = "sum.terms[1]"
//	}
//
//	observe "sum.out" {}
package hcl
