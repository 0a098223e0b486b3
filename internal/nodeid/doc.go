// internal/nodeid/doc.go

/*
Package nodeid provides the identity types of the dataflow graph.

Two kinds of identifiers live here:

  - Handle, a generational index (slot index + version + owning graph) that
    names a live node. Handles are issued by an Arena, which keeps a free list
    of recycled slots and bumps a slot's version every time it is released, so
    a stale Handle is always detected instead of silently aliasing a newer node.
  - PortRef, the textual `node.port` or `node.port[index]` reference used by
    graph description files to name a connection endpoint.

Handles never alias across graphs: every graph instance draws a fresh GraphID
from NextGraphID and every Arena rejects handles minted for another graph.
*/
package nodeid
