// Package registry provides the central "glue" between graph descriptions and
// compiled node types.
//
// The Registry maps the type names used in graph files (e.g. "add") to the
// node.Descriptor implementing them. Modules register their descriptors once
// at startup; the graph facade looks them up whenever a node is created.
// Registration mistakes are programming errors and panic, so they surface the
// first time the binary starts.
package registry
