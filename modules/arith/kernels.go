package arith

import "github.com/vk/tickflow/internal/node"

// clock outputs the tick number times step, plus offset.
func newClock(args node.Args) (node.Kernel, error) {
	step, err := args.Float("step", 1)
	if err != nil {
		return nil, err
	}
	offset, err := args.Float("offset", 0)
	if err != nil {
		return nil, err
	}
	return node.KernelFunc(func(ec *node.ExecContext) error {
		ec.SetOutput(0, offset+step*float64(ec.Tick()))
		return nil
	}), nil
}

func newConstant(args node.Args) (node.Kernel, error) {
	v, err := args.Any("value")
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = 0.0
	}
	return node.KernelFunc(func(ec *node.ExecContext) error {
		ec.SetOutput(0, v)
		return nil
	}), nil
}

func add(ec *node.ExecContext) error {
	sum := 0.0
	for i := range ec.Width(0) {
		sum += ec.FloatAt(0, i)
	}
	ec.SetOutput(0, sum)
	return nil
}

func newScale(args node.Args) (node.Kernel, error) {
	factor, err := args.Float("factor", 1)
	if err != nil {
		return nil, err
	}
	return node.KernelFunc(func(ec *node.ExecContext) error {
		ec.SetOutput(0, factor*ec.Float(0))
		return nil
	}), nil
}

func passthrough(ec *node.ExecContext) error {
	ec.SetOutput(0, ec.Input(0))
	return nil
}

// accumulator integrates its input over ticks.
type accumulator struct {
	initial float64
	sum     float64
}

func newAccumulator(args node.Args) (node.Kernel, error) {
	initial, err := args.Float("initial", 0)
	if err != nil {
		return nil, err
	}
	return &accumulator{initial: initial}, nil
}

// Init implements node.Initializer.
func (a *accumulator) Init(ic *node.InitContext) error {
	a.sum = a.initial
	ic.Logger.Debug("Accumulator initialized.", "initial", a.initial)
	return nil
}

// Execute implements node.Kernel.
func (a *accumulator) Execute(ec *node.ExecContext) error {
	a.sum += ec.Float(0)
	ec.SetOutput(0, a.sum)
	return nil
}
