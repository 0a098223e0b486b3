// Package scheduler turns the topology of a graph into an executable plan,
// once per tick.
//
// # How It Works
//
// Each tick the scheduler:
//  1. Ingests the drained graph diff, releasing resources of deleted nodes.
//  2. Recomputes exact connected components for every group the topology
//     store flagged changed (RecomputeIslands).
//  3. Derives execution flags, culling nodes whose outputs reach no observer
//     (Cull).
//  4. Orders the enabled nodes into a Plan with a stable Kahn sort over
//     same-tick edges (BuildPlan). Feedback edges never create dependencies.
//
// The plan is handed to the executor, which runs it under one of its
// strategies. The scheduler itself never calls node code.
package scheduler
