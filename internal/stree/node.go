// Package stree implements the backend-neutral syntax-tree abstraction
// (ST, spec.md §4.1): a uniform cursor/tree view over either parser
// backend's output. Generalized from internal/syntax's Tree/Node/ChildRef
// (internal/syntax/types.go); this package's concrete node type (nodeImpl,
// tree.go) wraps a backend's RawNode tree and reads kind names from a
// *gr.Index instead of calling treesitter.Language() directly.
package stree

import (
	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/text"
)

// Node is one backend-neutral syntax-tree node.
type Node interface {
	// Kind is the node's symbolic type: a grammar rule, terminal, or
	// keyword symbol.
	Kind() gr.SymbolID
	// KindName resolves Kind() through the owning Root's grammar index.
	KindName() string

	Offset() text.ByteOffset
	End() text.ByteOffset
	Length() int
	Text() []byte
	Range() text.Range

	Parent() Node
	Children() []Node
	IsLeaf() bool
	IsHidden() bool
	IsError() bool
	IsKeyword() bool
	// TokenType returns the terminal symbol for a leaf, or (NoSymbol, false)
	// for a composite node.
	TokenType() (gr.SymbolID, bool)

	ChildForField(name string) (Node, bool)
	ChildrenForField(name string) []Node
	// FieldName is the property name this node satisfies on its parent, or
	// "" if it is unassigned (spec.md §4.6 step 4's "unassigned composite
	// children").
	FieldName() string

	// Root returns the owning root node.
	Root() Root
}

// Root extends Node with whole-document state (spec.md §3 "Root Syntax
// Node").
type Root interface {
	Node
	FullText() []byte
	Index() *gr.Index
	Diagnostics() []diagnostic.Diagnostic
}

// PreviousSibling returns n's previous sibling. When includeHidden is
// false, hidden (skipped-token) siblings are skipped over.
func PreviousSibling(n Node, includeHidden bool) Node {
	return siblingAt(n, -1, includeHidden)
}

// NextSibling returns n's next sibling, honoring includeHidden the same
// way as PreviousSibling.
func NextSibling(n Node, includeHidden bool) Node {
	return siblingAt(n, 1, includeHidden)
}

func siblingAt(n Node, dir int, includeHidden bool) Node {
	if n == nil {
		return nil
	}
	parent := n.Parent()
	if parent == nil {
		return nil
	}
	siblings := parent.Children()
	idx := indexOf(siblings, n)
	if idx < 0 {
		return nil
	}
	for i := idx + dir; i >= 0 && i < len(siblings); i += dir {
		if includeHidden || !siblings[i].IsHidden() {
			return siblings[i]
		}
	}
	return nil
}

func indexOf(nodes []Node, target Node) int {
	for i, n := range nodes {
		if n == target {
			return i
		}
	}
	return -1
}

// NodesBetween returns the children of a common parent strictly between a
// and b, in document order. Returns nil if a and b do not share a parent.
func NodesBetween(a, b Node) []Node {
	if a == nil || b == nil {
		return nil
	}
	pa, pb := a.Parent(), b.Parent()
	if pa == nil || pa != pb {
		return nil
	}
	siblings := pa.Children()
	ia, ib := indexOf(siblings, a), indexOf(siblings, b)
	if ia < 0 || ib < 0 {
		return nil
	}
	if ia > ib {
		ia, ib = ib, ia
	}
	if ib-ia <= 1 {
		return nil
	}
	return append([]Node(nil), siblings[ia+1:ib]...)
}

// FindComment returns the preceding visible-or-hidden sibling of n whose
// token type belongs to commentKinds, or nil.
func FindComment(n Node, commentKinds map[gr.SymbolID]bool) Node {
	prev := PreviousSibling(n, true)
	if prev == nil {
		return nil
	}
	if tt, ok := prev.TokenType(); ok && commentKinds[tt] {
		return prev
	}
	return nil
}

// Descendants streams every node under n (n included) in document order.
func Descendants(n Node) []Node {
	var out []Node
	var walk func(Node)
	walk = func(cur Node) {
		out = append(out, cur)
		for _, c := range cur.Children() {
			walk(c)
		}
	}
	walk(n)
	return out
}

// Leaves flattens n's subtree to its leaf nodes, in document order.
func Leaves(n Node) []Node {
	var out []Node
	var walk func(Node)
	walk = func(cur Node) {
		if cur.IsLeaf() {
			out = append(out, cur)
			return
		}
		for _, c := range cur.Children() {
			walk(c)
		}
	}
	walk(n)
	return out
}

// FindLeafAtOffset returns the leaf whose [offset,end) contains off. If off
// sits on a boundary shared by two tokens, the later token wins (spec.md
// §4.1). Empty error leaves are never returned (spec.md §3).
func FindLeafAtOffset(root Node, off text.ByteOffset) Node {
	leaves := Leaves(root)
	var found Node
	for _, leaf := range leaves {
		if isEmptyErrorLeaf(leaf) {
			continue
		}
		if leaf.Offset() <= off && off < leaf.End() {
			found = leaf
		}
		if leaf.Offset() == off && leaf.Length() == 0 {
			found = leaf
		}
	}
	return found
}

// LeafBefore returns the rightmost leaf strictly ending at or before off.
func LeafBefore(root Node, off text.ByteOffset) Node {
	leaves := Leaves(root)
	var found Node
	for _, leaf := range leaves {
		if isEmptyErrorLeaf(leaf) {
			continue
		}
		if leaf.End() <= off {
			found = leaf
		} else {
			break
		}
	}
	return found
}

// DeclarationOffset adjusts off for "declaration-friendly" lookups: when the
// byte at off does not match nameRegexp, the effective offset is off-1, so
// that IDE queries issued at the very end of an identifier still land on
// that identifier's leaf (spec.md §4.1).
func DeclarationOffset(root Node, off text.ByteOffset, isNameByte func(b byte) bool) text.ByteOffset {
	full := rootText(root)
	if int(off) < 0 || int(off) > len(full) {
		return off
	}
	if int(off) == len(full) || !isNameByte(full[off]) {
		if off > 0 {
			return off - 1
		}
	}
	return off
}

func rootText(n Node) []byte {
	if r, ok := n.(Root); ok {
		return r.FullText()
	}
	if n.Parent() != nil {
		return rootText(n.Parent())
	}
	return n.Text()
}

func isEmptyErrorLeaf(n Node) bool {
	return n.IsError() && n.Length() == 0 && len(n.Text()) == 0
}
