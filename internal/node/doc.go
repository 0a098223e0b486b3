// Package node defines what the engine knows about a node type: its ports,
// their categories and the traversal flags derived from them, the Descriptor
// registered once per type, and the Kernel interface through which the
// scheduler executes every node uniformly.
//
// It also carries the per-node ExecutionFlags the scheduler recomputes each
// tick and the per-tick Status a node moves through.
package node
