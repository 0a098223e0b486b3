package graph

import (
	"errors"

	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/topologystore"
)

var errNilCell = errors.New("cell cannot be nil")

// BindExternalInput feeds an input element from externally owned storage.
// While bound, the element reads the cell instead of any connection. A nil
// cell removes the binding. Bindings never touch topology.
func (m *Manager) BindExternalInput(dst topologystore.Endpoint, cell *node.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	const op = "BindExternalInput"
	if err := m.checkEditable(op); err != nil {
		return err
	}
	e, _, err := m.inputPort(op, dst)
	if err != nil {
		return err
	}
	return m.bindInput(e, dst, cell)
}

// PatchExternalInput swaps the cell of an existing input binding, for when
// the external store relocated its memory.
func (m *Manager) PatchExternalInput(dst topologystore.Endpoint, cell *node.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	const op = "PatchExternalInput"
	if err := m.checkEditable(op); err != nil {
		return err
	}
	e, p, err := m.inputPort(op, dst)
	if err != nil {
		return err
	}
	if cell == nil {
		return portError(op, dst.Node, p.Name, errNilCell)
	}
	if _, ok := e.boundIn[inputKey{port: dst.Port, index: dst.Index}]; !ok {
		return portError(op, dst.Node, p.Name, ErrNotBound)
	}
	return m.bindInput(e, dst, cell)
}

func (m *Manager) bindInput(e *nodeEntry, dst topologystore.Endpoint, cell *node.Cell) error {
	if err := m.state.BindInput(m.base, dst.Node, dst.Port, dst.Index, cell); err != nil {
		return err
	}
	key := inputKey{port: dst.Port, index: dst.Index}
	if cell == nil {
		delete(e.boundIn, key)
	} else {
		e.boundIn[key] = struct{}{}
	}
	return nil
}

// BindExternalOutput mirrors every write of an output into externally owned
// storage. The cell immediately receives the current value, and the node
// counts as observed. A nil cell removes the binding.
func (m *Manager) BindExternalOutput(src topologystore.Endpoint, cell *node.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	const op = "BindExternalOutput"
	if err := m.checkEditable(op); err != nil {
		return err
	}
	if _, err := m.outputPort(op, src); err != nil {
		return err
	}
	return m.state.BindOutput(m.base, src.Node, src.Port, cell)
}

// PatchExternalOutput swaps the cell of an existing output binding.
func (m *Manager) PatchExternalOutput(src topologystore.Endpoint, cell *node.Cell) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	const op = "PatchExternalOutput"
	if err := m.checkEditable(op); err != nil {
		return err
	}
	p, err := m.outputPort(op, src)
	if err != nil {
		return err
	}
	if cell == nil {
		return portError(op, src.Node, p.Name, errNilCell)
	}
	if _, ok := m.state.OutputCell(m.base, src.Node, src.Port); !ok {
		return portError(op, src.Node, p.Name, ErrNotBound)
	}
	return m.state.BindOutput(m.base, src.Node, src.Port, cell)
}
