// Package graph provides the editing and evaluation facade of a dataflow
// graph, combining the topology database, per-node state and the safety
// layer behind one Manager.
//
// # Architecture
//
// The Manager is a thin coordinator over specialized components:
//
//	┌─────────────────────────────────────────┐
//	│              graph.Manager              │
//	│  (edits, graph values, external hooks)  │
//	└──┬──────────┬───────────┬───────────┬───┘
//	   │          │           │           │
//	   ▼          ▼           ▼           ▼
//	┌────────┐ ┌────────┐ ┌─────────┐ ┌────────┐
//	│Topology│ │  Node  │ │  Graph  │ │ Safety │
//	│ Store  │ │ Store  │ │  Diff   │ │Manager │
//	└────────┘ └────────┘ └─────────┘ └────────┘
//	                 │
//	                 ▼
//	     scheduler.Scheduler ──► executor.Executor
//
// **Topology Store** (topologystore.Store) holds nodes, connections and
// islands. **Node Store** (nodestore.Store) holds port buffers, the
// previous-tick snapshot, status and external bindings. **Graph Diff**
// (graphdiff.Log) collects creations, deletions and observer changes between
// ticks. **Safety Manager** (safety.Manager) guards every node's buffers with
// two regions: the current outputs and the previous-tick snapshot.
//
// # Tick Lifecycle
//
// Update (or Schedule followed by Tick.Wait) evaluates the graph once:
//
//  1. **Diff:** the change log is drained into the scheduler, which releases
//     the buffers and regions of destroyed nodes.
//  2. **Plan:** changed islands are recomputed, unobserved work is culled and
//     the remaining nodes are ordered. A failed plan ends the tick here,
//     before its number is taken.
//  3. **Boundary:** the safety version is bumped, retiring every token
//     handed out during the previous tick, graph-value views included.
//  4. **Snapshot:** each node's outputs are copied into its previous buffer,
//     which stays read-only for the rest of the tick.
//  5. **Dispatch:** the executor runs the plan under the active strategy.
//     Each task holds a ReadWrite lease on its node's current region; input
//     resolution takes short Read tokens on upstream regions.
//  6. **Publication:** once the fence completes, the execution flags of every
//     node are published and the tick is done.
//
// Edits attempted between Schedule and completion fail with ErrTickInFlight.
//
// # Graph Values
//
// CreateValue attaches an observer to an output. Resolve returns a View whose
// Read token is valid until the next tick starts; after that the view reports
// safety.ErrSuperseded instead of exposing a buffer that is being rewritten.
//
// # Error Handling
//
// Structural errors are returned immediately as *EditError or
// *topologystore.Error values wrapping the package sentinels. Errors and
// panics from node code are caught and returned as *executor.NodeError,
// joined in occurrence order by Tick.Wait.
package graph
