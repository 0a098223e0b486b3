package scheduler

import (
	"container/heap"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vk/tickflow/internal/node"
	"github.com/vk/tickflow/internal/nodeid"
	"github.com/vk/tickflow/internal/topologystore"
)

// ErrCycle is returned when same-tick edges among enabled nodes form a cycle.
var ErrCycle = errors.New("same-tick dependency cycle")

// CycleError lists the nodes left unordered by a failed plan.
type CycleError struct {
	Nodes []nodeid.Handle
}

func (e *CycleError) Error() string {
	ids := make([]string, len(e.Nodes))
	for i, n := range e.Nodes {
		ids[i] = n.String()
	}
	return fmt.Sprintf("%v through nodes [%s]", ErrCycle, strings.Join(ids, ", "))
}

// Is matches ErrCycle.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// Task is one node's work item within a tick.
type Task struct {
	Node  nodeid.Handle
	Group topologystore.GroupID
	// Deps and Dependents index into Plan.Tasks.
	Deps       []int
	Dependents []int
}

// Plan is the ordered work of one tick.
type Plan struct {
	// Tasks are in execution order: every task follows all of its Deps.
	Tasks []Task
	// Islands partitions task indexes by connected component, each list in
	// plan order. No dependency crosses two islands.
	Islands [][]int
	// Flags holds the execution flags of every live node, culled ones included.
	Flags map[nodeid.Handle]node.ExecutionFlags
	// Culled lists the nodes skipped this tick in ascending index order.
	Culled []nodeid.Handle
}

// Len returns the number of tasks.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Tasks)
}

// BuildPlan orders the enabled nodes by a stable Kahn sort. Among nodes that
// are ready at the same time the lowest slot index goes first, so an unchanged
// topology always yields the same plan.
func BuildPlan(topo topologystore.Store, flags map[nodeid.Handle]node.ExecutionFlags) (*Plan, error) {
	var enabled, culled []nodeid.Handle
	for h, f := range flags {
		if f.Has(node.Enabled) {
			enabled = append(enabled, h)
		} else {
			culled = append(culled, h)
		}
	}
	byIndex := func(a, b nodeid.Handle) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	}
	slices.SortFunc(enabled, byIndex)
	slices.SortFunc(culled, byIndex)

	pos := make(map[nodeid.Handle]int, len(enabled))
	for i, h := range enabled {
		pos[h] = i
	}

	deps := make([][]int, len(enabled))
	dependents := make([][]int, len(enabled))
	indegree := make([]int, len(enabled))
	for i, h := range enabled {
		seen := make(map[int]bool)
		for c := range topo.Inputs(h, topologystore.AnyPort) {
			if c.IsFeedback() {
				continue
			}
			j, ok := pos[c.Source.Node]
			if !ok || seen[j] {
				continue
			}
			seen[j] = true
			deps[i] = append(deps[i], j)
			dependents[j] = append(dependents[j], i)
			indegree[i]++
		}
	}

	ready := &indexHeap{}
	for i := range enabled {
		if indegree[i] == 0 {
			heap.Push(ready, i)
		}
	}
	order := make([]int, 0, len(enabled))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, i)
		for _, d := range dependents[i] {
			indegree[d]--
			if indegree[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}
	if len(order) != len(enabled) {
		var stuck []nodeid.Handle
		for i, n := range indegree {
			if n > 0 {
				stuck = append(stuck, enabled[i])
			}
		}
		return nil, &CycleError{Nodes: stuck}
	}

	// Re-index from sorted positions to plan positions.
	planPos := make([]int, len(enabled))
	for p, i := range order {
		planPos[i] = p
	}
	plan := &Plan{Tasks: make([]Task, len(order)), Flags: flags, Culled: culled}
	for p, i := range order {
		g, _ := topo.Group(enabled[i])
		t := Task{Node: enabled[i], Group: g}
		for _, d := range deps[i] {
			t.Deps = append(t.Deps, planPos[d])
		}
		for _, d := range dependents[i] {
			t.Dependents = append(t.Dependents, planPos[d])
		}
		slices.Sort(t.Deps)
		slices.Sort(t.Dependents)
		plan.Tasks[p] = t
	}
	plan.Islands = partitionIslands(plan.Tasks)
	return plan, nil
}

// partitionIslands groups tasks by group id. Orphans become singleton islands.
func partitionIslands(tasks []Task) [][]int {
	var islands [][]int
	byGroup := make(map[topologystore.GroupID]int)
	for p, t := range tasks {
		if t.Group == topologystore.OrphanGroup {
			islands = append(islands, []int{p})
			continue
		}
		idx, ok := byGroup[t.Group]
		if !ok {
			idx = len(islands)
			byGroup[t.Group] = idx
			islands = append(islands, nil)
		}
		islands[idx] = append(islands[idx], p)
	}
	return islands
}

// WouldCycle reports whether adding a same-tick edge from src to dst closes
// a cycle, that is whether src is reachable from dst over same-tick edges.
func WouldCycle(topo topologystore.Store, src, dst nodeid.Handle) bool {
	if src == dst {
		return true
	}
	visited := map[nodeid.Handle]bool{dst: true}
	queue := []nodeid.Handle{dst}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for c := range topo.Outputs(v, topologystore.AnyPort) {
			if c.IsFeedback() {
				continue
			}
			next := c.Dest.Node
			if next == src {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
