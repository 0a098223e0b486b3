// Package config defines the format-agnostic description of a graph: its
// nodes, connections, observers and run settings, along with the Loader
// interface implemented by the concrete file formats.
//
// The `config.Model` is the single input of the `builder` package. Concrete
// loaders, such as for HCL and YAML, are provided in separate packages.
package config
