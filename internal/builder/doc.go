/*
Package builder turns a format-agnostic graph description (config.Model) into
live nodes, connections and graph values on a graph.Manager.

Construction is a multi-phase process:

 1. Node Creation: every declared node is instantiated through the registry.
    Its constructor and Init run here, so argument errors surface before any
    connection exists.

 2. Array Sizing: array input ports are sized from the explicit `arrays`
    attribute, grown to fit the highest element index any connection uses.

 3. Linking: connections are resolved from their textual `node.port[index]`
    form to endpoints and added. Same-tick cycles are rejected by the graph
    itself; feedback connections are exempt.

 4. Observation: every `observe` entry becomes a graph value, which keeps the
    observed node and its upstream work from being culled.

A failing phase returns immediately; the caller owns the graph and decides
whether to close it.
*/
package builder
