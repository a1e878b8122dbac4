// Package valuegraph implements an incremental dependency graph of numeric
// nodes. Each node holds a base value and derives its computed value by
// folding the base through an ordered operator chain over named parent
// nodes. External writers perturb nodes through shared handles (additive
// deltas only); a single Update pass per tick recomputes exactly the nodes
// affected by committed deltas, in dependency order, each at most once.
package valuegraph

import (
	"errors"
	"fmt"
	"slices"
)

// NodeID identifies a node within one graph. IDs are positional: RemoveNode
// shifts every higher id down by one, so callers that remove nodes must not
// hold stale ids across the call.
type NodeID int

// Parent names one dependency of a node together with the operator used to
// fold that dependency into the node's value.
type Parent struct {
	Op Op
	ID NodeID
}

// ErrCycle is returned by Update when the recompute pass cannot make
// progress. The construction API only accepts parents that already exist,
// which makes cycles impossible to build, so hitting this indicates graph
// state corruption.
var ErrCycle = errors.New("valuegraph: dependency cycle detected during update")

type node struct {
	base     float64
	value    float64
	parents  []Parent
	children []NodeID
}

// Graph owns the authoritative node list. It is single-writer: AddNode,
// RemoveNode, and Update must only be called by the owning domain loop.
// Concurrent access from other goroutines goes through handles.
type Graph struct {
	nodes   []node
	handles []*Handle
	dirty   []bool
	queue   []NodeID // scratch for the expansion walk
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// AddNode registers a node with the given base value and parent chain and
// returns its id and shared handle. Parents must already be registered:
// forward references are rejected, which also guarantees the graph stays
// acyclic without a separate cycle check. The initial value is computed
// eagerly against the parents' current values.
func (g *Graph) AddNode(base float64, parents ...Parent) (NodeID, *Handle, error) {
	for _, p := range parents {
		if p.ID < 0 || int(p.ID) >= len(g.nodes) {
			return 0, nil, fmt.Errorf("valuegraph: parent node %d does not exist (parents must be added before children)", p.ID)
		}
	}

	id := NodeID(len(g.nodes))
	n := node{base: base, parents: slices.Clone(parents)}
	n.value = g.fold(&n)

	h := &Handle{}
	h.publish(n.value)

	g.nodes = append(g.nodes, n)
	g.handles = append(g.handles, h)
	g.dirty = append(g.dirty, false)

	for _, p := range parents {
		g.nodes[p.ID].children = append(g.nodes[p.ID].children, id)
	}
	return id, h, nil
}

// RemoveNode deletes a node and re-indexes every higher id downward by one,
// fixing up all stored parent and child references. A node that still has
// dependents cannot be removed. The node's handle is marked detached and
// keeps its last published value. Cost is linear in graph size; removal is
// not designed to be a per-tick operation.
func (g *Graph) RemoveNode(id NodeID) error {
	if id < 0 || int(id) >= len(g.nodes) {
		return fmt.Errorf("valuegraph: node %d does not exist", id)
	}
	if n := len(g.nodes[id].children); n > 0 {
		return fmt.Errorf("valuegraph: node %d still has %d dependent node(s)", id, n)
	}

	for _, p := range g.nodes[id].parents {
		ch := g.nodes[p.ID].children
		for i := 0; i < len(ch); i++ {
			if ch[i] == id {
				ch = append(ch[:i], ch[i+1:]...)
				i--
			}
		}
		g.nodes[p.ID].children = ch
	}

	g.handles[id].detached.Store(true)
	g.nodes = append(g.nodes[:id], g.nodes[id+1:]...)
	g.handles = append(g.handles[:id], g.handles[id+1:]...)
	g.dirty = append(g.dirty[:id], g.dirty[id+1:]...)

	for i := range g.nodes {
		for j := range g.nodes[i].parents {
			if g.nodes[i].parents[j].ID > id {
				g.nodes[i].parents[j].ID--
			}
		}
		for j := range g.nodes[i].children {
			if g.nodes[i].children[j] > id {
				g.nodes[i].children[j]--
			}
		}
	}
	return nil
}

// Update runs one recomputation pass. Deltas accumulated in handles are
// committed into base values, every transitive descendant of a changed node
// is marked dirty, and the dirty set is recomputed in topological order so
// no node is read by a dependent before its own recompute finished. A node
// is recomputed at most once per pass. With no pending deltas Update is a
// no-op.
func (g *Graph) Update() error {
	dirtyCount := 0

	// Commit phase: fold pending deltas into base values.
	for i := range g.nodes {
		if d := g.handles[i].takeDelta(); d != 0 {
			g.nodes[i].base += d
			if !g.dirty[i] {
				g.dirty[i] = true
				dirtyCount++
			}
		}
	}
	if dirtyCount == 0 {
		return nil
	}

	// Expansion phase: every descendant of a dirty node must recompute even
	// if its own base did not change.
	g.queue = g.queue[:0]
	for i := range g.nodes {
		if g.dirty[i] {
			g.queue = append(g.queue, NodeID(i))
		}
	}
	for len(g.queue) > 0 {
		id := g.queue[0]
		g.queue = g.queue[1:]
		for _, c := range g.nodes[id].children {
			if !g.dirty[c] {
				g.dirty[c] = true
				dirtyCount++
				g.queue = append(g.queue, c)
			}
		}
	}

	// Topological recompute: take nodes none of whose parents are still
	// dirty, publish, repeat until the dirty set drains.
	for dirtyCount > 0 {
		progressed := false
		for i := range g.nodes {
			if !g.dirty[i] {
				continue
			}
			ready := true
			for _, p := range g.nodes[i].parents {
				if g.dirty[p.ID] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			n := &g.nodes[i]
			n.value = g.fold(n)
			g.handles[i].publish(n.value)
			g.dirty[i] = false
			dirtyCount--
			progressed = true
		}
		if !progressed {
			return ErrCycle
		}
	}
	return nil
}

// Value returns the current computed value of a node.
func (g *Graph) Value(id NodeID) float64 {
	return g.nodes[id].value
}

// Base returns the base value of a node.
func (g *Graph) Base(id NodeID) float64 {
	return g.nodes[id].base
}

// NodeHandle returns the shared handle of a node.
func (g *Graph) NodeHandle(id NodeID) *Handle {
	return g.handles[id]
}

func (g *Graph) fold(n *node) float64 {
	v := n.base
	for _, p := range n.parents {
		v = p.Op.apply(v, g.nodes[p.ID].value)
	}
	return v
}
