package astbuilder

import "github.com/kpumuk/langforge/internal/stree"

// Linker resolves cross-references while the AST is built. Resolution
// itself is out of scope for astbuilder (spec.md §4.6 step 3 "resolution is
// deferred to the linker"): the default linker below only records the
// reference text and originating ST node, leaving Resolved nil. A language
// service supplies its own Linker to resolve references against a symbol
// table or scope graph.
type Linker interface {
	// BuildReference constructs the Reference for a single-valued ("=")
	// cross-reference assignment.
	BuildReference(container *Node, property string, identifier stree.Node, text string) *Reference
	// BuildMultiReference constructs the MultiReference for a "+=" list of
	// cross-reference assignments; items is always non-nil (possibly
	// length 0, per spec.md §4.6 step 5's mandatory-empty-list rule).
	BuildMultiReference(container *Node, property string, identifiers []stree.Node, texts []string) *MultiReference
}

// deferredLinker is the zero-effort Linker used when a Builder is
// constructed without one: it always produces unresolved references,
// matching the "resolution deferred to the linker" contract literally.
type deferredLinker struct{}

func (deferredLinker) BuildReference(container *Node, property string, identifier stree.Node, text string) *Reference {
	return &Reference{RefText: text, RefSyntaxNode: identifier}
}

func (deferredLinker) BuildMultiReference(container *Node, property string, identifiers []stree.Node, texts []string) *MultiReference {
	items := make([]*Reference, len(identifiers))
	for i, id := range identifiers {
		items[i] = &Reference{RefText: texts[i], RefSyntaxNode: id}
	}
	return &MultiReference{Items: items}
}
