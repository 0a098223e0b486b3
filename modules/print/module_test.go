package print

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/registry"
	"github.com/vk/tickflow/internal/testutil"
	"github.com/vk/tickflow/modules/arith"
	"github.com/vk/tickflow/modules/env_vars"
	"github.com/zclconf/go-cty/cty"
)

func TestPrint_RunsWithoutObservers(t *testing.T) {
	out := &testutil.SafeBuffer{}
	m := testutil.NewGraph(t, []registry.Module{&Module{Out: out}, &arith.Module{}})
	c := testutil.Node(t, m, "clock", nil)
	p := testutil.Node(t, m, "print", node.Args{"label": cty.StringVal("clock")})
	testutil.Connect(t, m, c, "out", p, "input", 0)

	testutil.Run(t, m, 2)
	assert.Equal(t, "[1] clock = 1\n[2] clock = 2\n", out.String())
}

func TestPrint_NullAndMaps(t *testing.T) {
	out := &testutil.SafeBuffer{}
	env := &env_vars.Module{Environ: func() []string { return []string{"B=2", "A=1"} }}
	m := testutil.NewGraph(t, []registry.Module{&Module{Out: out}, env})
	testutil.Node(t, m, "print", node.Args{"label": cty.StringVal("empty")})
	vars := testutil.Node(t, m, "env_vars", nil)
	p := testutil.Node(t, m, "print", node.Args{"label": cty.StringVal("env")})
	testutil.Connect(t, m, vars, "all", p, "input", 0)

	testutil.Run(t, m, 1)
	assert.Contains(t, out.String(), "[1] empty = (null)\n")
	assert.Contains(t, out.String(), "[1] env.A = 1\n[1] env.B = 2\n")
}
