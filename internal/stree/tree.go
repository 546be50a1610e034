package stree

import (
	"runtime"
	"sync"
	"weak"

	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/text"
)

// RawNode is the backend-agnostic tree shape either parser backend builds.
// A backend constructs a RawNode tree directly from its own parse result
// (tree-sitter's flat node list for the compiled backend, or the
// interpreted backend's own recursive-descent output) and hands the root
// to WrapRoot. Field resolution (spec.md §4.4b's Field Map) has already
// happened by this point: a RawNode's Field is the property name it
// satisfies on its parent, or "" if it is unassigned.
type RawNode struct {
	Kind      gr.SymbolID
	Span      text.Span
	IsHidden  bool
	IsError   bool
	IsKeyword bool
	// HasTokenType is true for leaves; TokenType is then the terminal
	// symbol. Composite nodes leave this false.
	HasTokenType bool
	TokenType    gr.SymbolID
	Field        string
	Children     []*RawNode

	text []byte // leaf text override read by Text(); no code sets it, so every node's Text() is a slice of the root's full text
}

type rootImpl struct {
	raw      *RawNode
	fullText []byte
	diags    []diagnostic.Diagnostic
	idx      *gr.Index
	lines    *text.LineIndex

	cacheMu sync.Mutex
	cache   map[*RawNode]weak.Pointer[nodeImpl]
}

// WrapRoot builds the Root ST for a freshly parsed document. raw must be
// the root of a backend's RawNode tree; fullText is the complete source.
func WrapRoot(raw *RawNode, fullText []byte, diags []diagnostic.Diagnostic, idx *gr.Index) Root {
	r := &rootImpl{
		raw:      raw,
		fullText: fullText,
		diags:    diags,
		idx:      idx,
		lines:    text.NewLineIndex(fullText),
		cache:    make(map[*RawNode]weak.Pointer[nodeImpl]),
	}
	return r
}

// wrap returns the unique nodeImpl for raw, creating and caching it if
// this is the first observation (spec.md §4.1 "Wrapper identity"). The
// cache holds weak pointers to the wrappers: once the returned *nodeImpl becomes unreachable,
// runtime.AddCleanup drops its cache entry so the whole cache does not
// outlive individual wrappers that nothing still references.
func (r *rootImpl) wrap(raw *RawNode, parent Node) Node {
	if raw == nil {
		return nil
	}
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	if wp, ok := r.cache[raw]; ok {
		if n := wp.Value(); n != nil {
			return n
		}
	}
	n := &nodeImpl{raw: raw, parent: parent, root: r}
	r.cache[raw] = weak.Make(n)
	runtime.AddCleanup(n, func(key *RawNode) {
		r.cacheMu.Lock()
		defer r.cacheMu.Unlock()
		if wp, ok := r.cache[key]; ok && wp.Value() == nil {
			delete(r.cache, key)
		}
	}, raw)
	return n
}

func (r *rootImpl) Kind() gr.SymbolID                       { return r.rootNode().Kind() }
func (r *rootImpl) KindName() string                        { return r.rootNode().KindName() }
func (r *rootImpl) Offset() text.ByteOffset                  { return r.rootNode().Offset() }
func (r *rootImpl) End() text.ByteOffset                     { return r.rootNode().End() }
func (r *rootImpl) Length() int                              { return r.rootNode().Length() }
func (r *rootImpl) Text() []byte                             { return r.rootNode().Text() }
func (r *rootImpl) Range() text.Range                        { return r.rootNode().Range() }
func (r *rootImpl) Parent() Node                             { return nil }
func (r *rootImpl) Children() []Node                         { return r.rootNode().Children() }
func (r *rootImpl) IsLeaf() bool                             { return r.rootNode().IsLeaf() }
func (r *rootImpl) IsHidden() bool                           { return false }
func (r *rootImpl) IsError() bool                            { return r.rootNode().IsError() }
func (r *rootImpl) IsKeyword() bool                          { return false }
func (r *rootImpl) TokenType() (gr.SymbolID, bool)           { return r.rootNode().TokenType() }
func (r *rootImpl) ChildForField(name string) (Node, bool)   { return r.rootNode().ChildForField(name) }
func (r *rootImpl) ChildrenForField(name string) []Node      { return r.rootNode().ChildrenForField(name) }
func (r *rootImpl) FieldName() string                        { return r.rootNode().FieldName() }
func (r *rootImpl) Root() Root                               { return r }
func (r *rootImpl) FullText() []byte                         { return r.fullText }
func (r *rootImpl) Index() *gr.Index                         { return r.idx }
func (r *rootImpl) Diagnostics() []diagnostic.Diagnostic     { return r.diags }

func (r *rootImpl) rootNode() Node {
	return r.wrap(r.raw, nil)
}

var _ Root = (*rootImpl)(nil)

type nodeImpl struct {
	raw    *RawNode
	parent Node
	root   *rootImpl
}

func (n *nodeImpl) Kind() gr.SymbolID { return n.raw.Kind }

func (n *nodeImpl) KindName() string {
	if n.root == nil || n.root.idx == nil {
		return ""
	}
	return n.root.idx.SymbolName(n.raw.Kind)
}

func (n *nodeImpl) Offset() text.ByteOffset { return n.raw.Span.Start }
func (n *nodeImpl) End() text.ByteOffset    { return n.raw.Span.End }
func (n *nodeImpl) Length() int             { return int(n.raw.Span.Len()) }

func (n *nodeImpl) Text() []byte {
	if n.raw.text != nil {
		return n.raw.text
	}
	full := n.root.fullText
	start, end := int(n.raw.Span.Start), int(n.raw.Span.End)
	if start < 0 || end > len(full) || start > end {
		return nil
	}
	return full[start:end]
}

func (n *nodeImpl) Range() text.Range {
	start, _ := n.root.lines.OffsetToPoint(n.raw.Span.Start)
	end, _ := n.root.lines.OffsetToPoint(n.raw.Span.End)
	return text.Range{Start: start, End: end}
}

func (n *nodeImpl) Parent() Node { return n.parent }

func (n *nodeImpl) Children() []Node {
	if len(n.raw.Children) == 0 {
		return nil
	}
	out := make([]Node, len(n.raw.Children))
	for i, c := range n.raw.Children {
		out[i] = n.root.wrap(c, n)
	}
	return out
}

func (n *nodeImpl) IsLeaf() bool    { return len(n.raw.Children) == 0 }
func (n *nodeImpl) IsHidden() bool  { return n.raw.IsHidden }
func (n *nodeImpl) IsError() bool   { return n.raw.IsError }
func (n *nodeImpl) IsKeyword() bool { return n.raw.IsKeyword }

func (n *nodeImpl) TokenType() (gr.SymbolID, bool) {
	if !n.raw.HasTokenType {
		return gr.NoSymbol, false
	}
	return n.raw.TokenType, true
}

func (n *nodeImpl) ChildForField(name string) (Node, bool) {
	for _, c := range n.raw.Children {
		if c.Field == name {
			return n.root.wrap(c, n), true
		}
	}
	return nil, false
}

func (n *nodeImpl) ChildrenForField(name string) []Node {
	var out []Node
	for _, c := range n.raw.Children {
		if c.Field == name {
			out = append(out, n.root.wrap(c, n))
		}
	}
	return out
}

func (n *nodeImpl) FieldName() string { return n.raw.Field }

func (n *nodeImpl) Root() Root { return n.root }

var _ Node = (*nodeImpl)(nil)
