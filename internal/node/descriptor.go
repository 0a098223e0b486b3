package node

import (
	"errors"
	"fmt"
)

// Kernel is the per-node execution entry point. The scheduler calls Execute
// once per tick for every enabled node, through this interface only.
type Kernel interface {
	Execute(ec *ExecContext) error
}

// KernelFunc adapts a plain function to the Kernel interface.
type KernelFunc func(ec *ExecContext) error

// Execute implements Kernel.
func (f KernelFunc) Execute(ec *ExecContext) error {
	return f(ec)
}

// Initializer is implemented by kernels that need setup once the node exists.
type Initializer interface {
	Init(ec *InitContext) error
}

// Destroyer is implemented by kernels that own resources released on node destruction.
type Destroyer interface {
	Destroy() error
}

// Descriptor is the fixed-shape metadata of a node type. It is registered
// once and shared by every node instance of that type.
type Descriptor struct {
	Type    string
	Inputs  []Port
	Outputs []Port
	// SideEffects nodes always run, observers or not.
	SideEffects bool
	// New builds the kernel for one node instance.
	New func(args Args) (Kernel, error)
}

// Validate checks the descriptor for obvious authoring mistakes.
func (d *Descriptor) Validate() error {
	if d == nil {
		return errors.New("descriptor is nil")
	}
	if d.Type == "" {
		return errors.New("descriptor type cannot be empty")
	}
	if d.New == nil {
		return fmt.Errorf("descriptor %q has no kernel constructor", d.Type)
	}
	seen := make(map[string]struct{}, len(d.Inputs))
	for _, p := range d.Inputs {
		if p.Name == "" {
			return fmt.Errorf("descriptor %q has an unnamed input port", d.Type)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("descriptor %q declares input %q twice", d.Type, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	seen = make(map[string]struct{}, len(d.Outputs))
	for _, p := range d.Outputs {
		if p.Name == "" {
			return fmt.Errorf("descriptor %q has an unnamed output port", d.Type)
		}
		if p.Array {
			return fmt.Errorf("descriptor %q output %q: array outputs are not supported", d.Type, p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("descriptor %q declares output %q twice", d.Type, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// InputPort looks up an input port by name.
func (d *Descriptor) InputPort(name string) (PortID, bool) {
	for i, p := range d.Inputs {
		if p.Name == name {
			return PortID(i), true
		}
	}
	return 0, false
}

// OutputPort looks up an output port by name.
func (d *Descriptor) OutputPort(name string) (PortID, bool) {
	for i, p := range d.Outputs {
		if p.Name == name {
			return PortID(i), true
		}
	}
	return 0, false
}

// Input returns the input port with the given id.
func (d *Descriptor) Input(id PortID) (Port, bool) {
	if int(id) >= len(d.Inputs) {
		return Port{}, false
	}
	return d.Inputs[id], true
}

// Output returns the output port with the given id.
func (d *Descriptor) Output(id PortID) (Port, bool) {
	if int(id) >= len(d.Outputs) {
		return Port{}, false
	}
	return d.Outputs[id], true
}
