package compiled

import (
	"fmt"

	"github.com/kpumuk/langforge/internal/backend/compiled/treesitter"
	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/stree"
	"github.com/kpumuk/langforge/internal/text"
)

// buildRawTree converts a pre-order FlatNode stream (parent indices, as
// tw_tree_export_nodes produces it) into a stree.RawNode tree, resolving
// each node's grammar symbol from its tree-sitter kind name and stamping
// Field from the language artifact's field map. Grounded on
// internal/syntax/parse.go's cstBuilder.buildFlatTree, adapted to build
// stree.RawNode directly (instead of the teacher's separate Tree/Node/
// ChildRef model) and to keep "extra" nodes (whitespace, comments) in the
// tree as hidden leaves rather than dropping them, matching how the
// interpreted backend represents trivia (spec.md §4.1, §4.4a).
func (a *Adapter) buildRawTree(p *treesitter.Parser, flat []treesitter.FlatNode, src []byte) (*stree.RawNode, []diagnostic.Diagnostic) {
	if len(flat) == 0 {
		return nil, []diagnostic.Diagnostic{
			diagnostic.FromParseError("compiled backend returned an empty tree", 0, max(len(src), 1)),
		}
	}

	nodes := make([]*stree.RawNode, len(flat))
	kindNames := make([]string, len(flat))
	var diags []diagnostic.Diagnostic
	var root *stree.RawNode

	for i, f := range flat {
		kindName := p.NodeKindForID(f.KindID)
		kindNames[i] = kindName
		span := text.Span{Start: text.ByteOffset(f.StartByte), End: text.ByteOffset(f.EndByte)}

		raw := &stree.RawNode{
			Span:    span,
			IsError: f.IsError || f.IsMissing,
		}

		if f.ChildCount == 0 {
			raw.HasTokenType = true
		}

		switch {
		case f.IsExtra:
			raw.IsHidden = true
			if rule, ok := a.idx.RuleByName(kindName); ok {
				raw.Kind = rule.Symbol
				raw.TokenType = rule.Symbol
			}
		case !f.IsNamed:
			raw.IsKeyword = true
			if int(span.Start) >= 0 && int(span.End) <= len(src) && span.Start <= span.End {
				value := string(src[span.Start:span.End])
				if els := a.idx.KeywordElements(value); len(els) > 0 {
					if rule, ok := a.idx.RuleByName(els[0].RuleName); ok {
						raw.TokenType = rule.Symbol
					}
				}
			}
		default:
			if rule, ok := a.idx.RuleByName(kindName); ok {
				raw.Kind = rule.Symbol
				if f.ChildCount == 0 {
					raw.TokenType = rule.Symbol
				}
			} else if f.ChildCount == 0 {
				diags = append(diags, diagnostic.FromParseError(
					fmt.Sprintf("unknown node kind %q in compiled grammar output", kindName), span.Start, max(int(span.Len()), 1),
				))
			}
		}

		nodes[i] = raw

		if f.Parent < 0 || f.Parent >= i {
			root = raw
			continue
		}
		parent := nodes[f.Parent]
		if parent == nil {
			continue
		}
		if field, ok := a.artifact.FieldMap.PropertyFor(kindNames[f.Parent], kindName); ok {
			raw.Field = field
		}
		parent.Children = append(parent.Children, raw)
	}

	diags = append(diags, collectStructuralDiagnostics(flat)...)
	return root, diags
}

func collectStructuralDiagnostics(flat []treesitter.FlatNode) []diagnostic.Diagnostic {
	var diags []diagnostic.Diagnostic
	for _, f := range flat {
		span := text.Span{Start: text.ByteOffset(f.StartByte), End: text.ByteOffset(f.EndByte)}
		switch {
		case f.IsMissing:
			diags = append(diags, diagnostic.Diagnostic{
				Message:  "missing token",
				Offset:   span.Start,
				Length:   max(int(span.Len()), 1),
				Severity: diagnostic.SeverityError,
				Source:   diagnostic.SourceParser,
				Code:     diagnostic.CodeParserMissingNode,
			})
		case f.IsError:
			diags = append(diags, diagnostic.Diagnostic{
				Message:  "syntax error",
				Offset:   span.Start,
				Length:   max(int(span.Len()), 1),
				Severity: diagnostic.SeverityError,
				Source:   diagnostic.SourceParser,
				Code:     diagnostic.CodeParserErrorNode,
			})
		}
	}
	return diags
}
