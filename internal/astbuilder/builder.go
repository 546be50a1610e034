package astbuilder

import (
	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/gr"
	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/stree"
)

// Builder walks an ST and produces its AST (spec.md §4.6). A Builder is
// reusable across documents of the same language; it carries no per-build
// state itself (each Build call opens its own walk state).
type Builder struct {
	idx        *gr.Index
	linker     Linker
	converters ValueConverterRegistry
}

// Option configures a Builder.
type Option func(*Builder)

// WithLinker installs a non-default Linker.
func WithLinker(l Linker) Option {
	return func(b *Builder) {
		if l != nil {
			b.linker = l
		}
	}
}

// WithValueConverters installs the registry used for terminal value
// conversion (spec.md §4.6 step 3).
func WithValueConverters(reg ValueConverterRegistry) Option {
	return func(b *Builder) { b.converters = reg }
}

// New builds a Builder bound to idx.
func New(idx *gr.Index, opts ...Option) *Builder {
	b := &Builder{idx: idx, linker: deferredLinker{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// walkState carries the per-document bookkeeping a single Build call needs:
// the ST-to-AST map (for $syntaxNode back-references and FindASTNode) and
// any diagnostics raised while converting values.
type walkState struct {
	astOf map[stree.Node]*Node
	diags []diagnostic.Diagnostic
}

// Result is the outcome of one Build call.
type Result struct {
	// Value is the built AST: *Node if the entry rule produces an AST
	// node, or a string if the entry rule is itself a data-type rule.
	Value       Value
	Diagnostics []diagnostic.Diagnostic

	ws *walkState
}

// FindASTNode climbs from an ST node to the nearest AST node that was built
// for it or an ancestor, mirroring the "current ST node has no AST node of
// its own" case (e.g. a hidden or unassigned terminal) from spec.md §4.6
// step 6.
func (r *Result) FindASTNode(n stree.Node) *Node {
	for cur := n; cur != nil; cur = cur.Parent() {
		if a, ok := r.ws.astOf[cur]; ok {
			return a
		}
	}
	return nil
}

// Build walks root and returns its AST root plus any diagnostics raised
// while converting terminal values or resolving cross-references.
func (b *Builder) Build(root stree.Root) *Result {
	ws := &walkState{astOf: map[stree.Node]*Node{}}
	val := b.buildValue(ws, root)
	assignContainers(b.idx, val, nil, "", 0, false)
	return &Result{Value: val, Diagnostics: ws.diags, ws: ws}
}

// buildValue computes the Value for ST node n: a flat string if n's rule is
// a data-type rule (spec.md §4.6 step 1), otherwise a freshly built *Node.
func (b *Builder) buildValue(ws *walkState, n stree.Node) Value {
	ruleName := n.KindName()
	if b.idx.IsDataTypeRule(ruleName) {
		return dataTypeText(n)
	}
	node := newNode(ruleName, n, b.idx.SlotCount(ruleName))
	ws.astOf[n] = node
	b.applyRule(ws, node, n, ruleName)
	return node
}

// applyRule processes ruleName's assignments onto node, reading children
// off ST node n, then inlines any unassigned composite child that is a
// delegate target (spec.md §4.6 step 4 "type override") by recursing with
// the SAME node and the child rule's own assignments — this is what lets
// `Element: Person | Greeting;` leave a single Node typed as whichever
// alternative actually matched, instead of wrapping it in an Element node.
func (b *Builder) applyRule(ws *walkState, node *Node, n stree.Node, ruleName string) {
	node.ensureSlots(b.idx.SlotCount(ruleName))

	for _, info := range b.idx.Assignments(ruleName) {
		slot := int(info.Slot)
		switch info.Operator {
		case langgrammar.OpAppend:
			children := n.ChildrenForField(info.Property)
			if info.IsCrossReference {
				texts := make([]string, len(children))
				idents := make([]stree.Node, len(children))
				for i, c := range children {
					idents[i] = unwrapFieldWrapper(c)
					texts[i] = b.referenceText(ws, idents[i])
				}
				node.Set(slot, b.linker.BuildMultiReference(node, info.Property, idents, texts))
				continue
			}
			list := make([]Value, 0, len(children))
			for _, c := range children {
				list = append(list, b.childValue(ws, node, info, c))
			}
			node.Set(slot, list)
		case langgrammar.OpExists:
			_, ok := n.ChildForField(info.Property)
			node.Set(slot, ok)
		default: // OpEquals
			c, ok := n.ChildForField(info.Property)
			if !ok {
				continue
			}
			if info.IsCrossReference {
				ident := unwrapFieldWrapper(c)
				text := b.referenceText(ws, ident)
				node.Set(slot, b.linker.BuildReference(node, info.Property, ident, text))
				continue
			}
			node.Set(slot, b.childValue(ws, node, info, c))
		}
	}

	assignMandatoryDefaults(node, b.idx, ruleName)

	for _, c := range n.Children() {
		if c.IsHidden() || c.IsLeaf() || c.FieldName() != "" {
			continue
		}
		childRule := c.KindName()
		if !b.idx.IsDelegateTarget(ruleName, childRule) {
			continue
		}
		node.TypeName = childRule
		ws.astOf[c] = node
		b.applyRule(ws, node, c, childRule)
	}
}

// childValue computes the value a single matched child contributes to an
// assignment (spec.md §4.6 step 3): unwrap a field-wrapper layer if the
// compiled backend introduced one, then dispatch on whether the child is a
// leaf (terminal value conversion, or a keyword's verbatim text) or
// composite (recurse).
func (b *Builder) childValue(ws *walkState, container *Node, info gr.AssignmentInfo, raw stree.Node) Value {
	n := unwrapFieldWrapper(raw)
	if n.IsLeaf() {
		if n.IsKeyword() {
			return string(n.Text())
		}
		v, err := b.converters.Convert(info.TerminalRuleName, string(n.Text()))
		if err != nil {
			ws.diags = append(ws.diags, diagnostic.Diagnostic{
				Message:  err.Error(),
				Offset:   n.Offset(),
				Length:   max(n.Length(), 1),
				Severity: diagnostic.SeverityError,
				Source:   diagnostic.SourceParser,
			})
			return string(n.Text())
		}
		return v
	}
	return b.buildValue(ws, n)
}

func (b *Builder) referenceText(ws *walkState, ident stree.Node) string {
	if ident.IsLeaf() {
		return string(ident.Text())
	}
	if s, ok := b.buildValue(ws, ident).(string); ok {
		return s
	}
	return string(ident.Text())
}

// unwrapFieldWrapper descends through a single synthetic field-wrapper
// layer: a node whose children contain exactly one non-hidden, non-error
// child carries no information of its own (spec.md §4.6 step 3). The
// interpreted backend never introduces such a layer, so this is a no-op for
// it in practice.
func unwrapFieldWrapper(n stree.Node) stree.Node {
	var only stree.Node
	count := 0
	for _, c := range n.Children() {
		if c.IsHidden() || c.IsError() {
			continue
		}
		count++
		only = c
	}
	if count == 1 {
		return only
	}
	return n
}

// dataTypeText concatenates the raw text of every non-hidden leaf under n,
// implementing spec.md §4.6 step 1's flat-string conversion for data-type
// rules.
func dataTypeText(n stree.Node) string {
	var out []byte
	for _, leaf := range stree.Leaves(n) {
		if leaf.IsHidden() {
			continue
		}
		out = append(out, leaf.Text()...)
	}
	return string(out)
}

// assignMandatoryDefaults fills in the spec.md §4.6 step 5 defaults for
// slots no child ever touched: "+=" properties become an empty (non-nil)
// list rather than staying absent.
func assignMandatoryDefaults(node *Node, idx *gr.Index, ruleName string) {
	for _, info := range idx.Assignments(ruleName) {
		if info.Operator != langgrammar.OpAppend {
			continue
		}
		if node.Get(int(info.Slot)) == nil {
			node.Set(int(info.Slot), []Value{})
		}
	}
}

// assignContainers performs the post-walk $container/$containerProperty/
// $containerIndex pass (spec.md §4.6 step 7). It must run after the whole
// tree is built since a node's container is only known once its parent has
// finished assigning it into a slot.
func assignContainers(idx *gr.Index, v Value, container *Node, property string, index int, hasIndex bool) {
	node, ok := v.(*Node)
	if !ok {
		return
	}
	node.Container = container
	node.ContainerProperty = property
	node.ContainerIndex = index
	node.HasContainerIndex = hasIndex

	bySlot := map[int]string{}
	for _, info := range idx.Assignments(node.TypeName) {
		bySlot[int(info.Slot)] = info.Property
	}

	for slot, val := range node.slots {
		switch vv := val.(type) {
		case *Node:
			assignContainers(idx, vv, node, bySlot[slot], 0, false)
		case []Value:
			for i, item := range vv {
				assignContainers(idx, item, node, bySlot[slot], i, true)
			}
		}
	}
}
