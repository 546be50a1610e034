// Package astbuilder turns a parsed syntax tree (ST, internal/stree) into a
// typed AST (spec.md §4.6), generalized from the "walk a tree, build a typed
// node" idiom and away from tree-sitter's flat cursor API: every rule with
// at least one assignment becomes a Node with slots pre-sized from the
// grammar index (internal/gr), rather than a dynamic property bag.
package astbuilder

import "github.com/kpumuk/langforge/internal/stree"

// Value is whatever an assigned property can hold: a primitive produced by
// a data-type rule or value converter, a *Node, a *Reference, a
// *MultiReference, a bool ("?=" existence flags), or a []Value for "+="
// lists that are not cross-references.
type Value interface{}

// Node is one AST node. Its shape is a dense slot array rather than a map:
// slots are looked up by the gr.PropertySlot the grammar index assigned to
// (TypeName, property) once, at grammar-build time (spec.md §9).
type Node struct {
	TypeName   string
	SyntaxNode stree.Node

	// Container back-links, filled by the post-walk pass (spec.md §4.6
	// step 7). Root has a nil Container.
	Container         *Node
	ContainerProperty string
	ContainerIndex    int // valid iff ContainerProperty was a list slot
	HasContainerIndex bool

	slots []Value
}

func newNode(typeName string, syntaxNode stree.Node, slotCount int) *Node {
	return &Node{TypeName: typeName, SyntaxNode: syntaxNode, slots: make([]Value, slotCount)}
}

func (n *Node) ensureSlots(count int) {
	if len(n.slots) >= count {
		return
	}
	grown := make([]Value, count)
	copy(grown, n.slots)
	n.slots = grown
}

// Get returns the value stored at slot, or nil if the slot is out of range
// (a builder bug would otherwise panic on a rule whose TypeName changed
// mid-build; Get stays defensive instead).
func (n *Node) Get(slot int) Value {
	if slot < 0 || slot >= len(n.slots) {
		return nil
	}
	return n.slots[slot]
}

// Set stores v at slot, growing the slot array if a type-override (spec.md
// §4.6 step 4) requires more slots than the node was first created with.
func (n *Node) Set(slot int, v Value) {
	if slot < 0 {
		return
	}
	if slot >= len(n.slots) {
		n.ensureSlots(slot + 1)
	}
	n.slots[slot] = v
}

// Reference is an unresolved or resolved cross-reference (spec.md §3).
type Reference struct {
	RefText       string
	RefSyntaxNode stree.Node
	Resolved      *Node
	Err           error
}

// MultiReference collects the targets of a "+=" cross-reference assignment
// (spec.md §3).
type MultiReference struct {
	Items []*Reference
}
