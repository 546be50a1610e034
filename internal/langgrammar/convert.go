package langgrammar

import (
	"fmt"
	"strings"
)

// Parse parses a ".glang" source buffer into a normalized Grammar.
func Parse(name string, src []byte) (*Grammar, error) {
	raw, err := parseSyntaxFile(name, src)
	if err != nil {
		return nil, fmt.Errorf("parse grammar %s: %w", name, err)
	}
	return convert(raw)
}

func convert(raw *syntaxFile) (*Grammar, error) {
	g := &Grammar{Name: raw.Name}

	for _, item := range raw.Items {
		switch {
		case item.Terminal != nil:
			g.Rules = append(g.Rules, &Rule{
				Name:            item.Terminal.Name,
				IsTerminal:      true,
				IsHidden:        item.Terminal.Hidden,
				TerminalPattern: unwrapRegex(item.Terminal.Pattern),
			})
		case item.Infix != nil:
			lvls := make([]InfixLevel, 0, len(item.Infix.Levels))
			for _, l := range item.Infix.Levels {
				lvls = append(lvls, InfixLevel{
					RightAssoc: l.Assoc == "@right",
					Operator:   l.Keyword,
				})
			}
			g.InfixRules = append(g.InfixRules, &InfixRule{
				Name:        item.Infix.Name,
				OperandRule: item.Infix.On,
				Levels:      lvls,
			})
		case item.Rule != nil:
			rule, err := convertRuleDecl(item.Rule)
			if err != nil {
				return nil, err
			}
			if rule.IsEntry {
				if g.EntryRule != "" {
					return nil, fmt.Errorf("grammar %s: multiple entry rules (%s, %s)", g.Name, g.EntryRule, rule.Name)
				}
				g.EntryRule = rule.Name
			}
			g.Rules = append(g.Rules, rule)
		}
	}

	if err := expandInfixRules(g); err != nil {
		return nil, err
	}
	if g.EntryRule == "" && len(g.Rules) > 0 {
		g.EntryRule = firstNonTerminalRule(g)
	}
	return g, nil
}

func firstNonTerminalRule(g *Grammar) string {
	for _, r := range g.Rules {
		if !r.IsTerminal && !r.IsFragment {
			return r.Name
		}
	}
	return ""
}

func unwrapRegex(lit string) string {
	return strings.TrimSuffix(strings.TrimPrefix(lit, "/"), "/")
}

func convertRuleDecl(decl *syntaxRuleDecl) (*Rule, error) {
	rule := &Rule{
		Name:       decl.Name,
		IsFragment: decl.Fragment,
		IsEntry:    decl.Entry,
	}
	if decl.DynPrec != nil {
		rule.DynamicPrecedence = *decl.DynPrec
	}
	if decl.Returns != "" {
		rule.ReturnsPrimitive = decl.Returns
	}
	for _, alt := range decl.Body {
		converted, err := convertAlternative(alt)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", decl.Name, err)
		}
		rule.Alternatives = append(rule.Alternatives, converted)
	}
	return rule, nil
}

func convertAlternative(alt *syntaxAlternative) (*Alternative, error) {
	out := &Alternative{}
	for _, el := range alt.Elements {
		converted, err := convertElement(el)
		if err != nil {
			return nil, err
		}
		out.Elements = append(out.Elements, converted)
	}
	return out, nil
}

func convertElement(el *syntaxElement) (Element, error) {
	switch {
	case el.Assignment != nil:
		return convertAssignment(el.Assignment)
	case el.CrossRef != nil:
		return convertCrossRef(el.CrossRef), nil
	case el.Group != nil:
		return convertGroup(el.Group)
	case el.Keyword != nil:
		return convertKeyword(el.Keyword), nil
	case el.RuleRef != nil:
		return convertRuleRef(el.RuleRef), nil
	default:
		return nil, fmt.Errorf("empty grammar element")
	}
}

func convertAssignment(a *syntaxAssignment) (*Assignment, error) {
	var target Element
	var err error
	switch {
	case a.Target.CrossRef != nil:
		target = convertCrossRef(a.Target.CrossRef)
	case a.Target.Group != nil:
		target, err = convertGroup(a.Target.Group)
	case a.Target.Keyword != nil:
		target = convertKeyword(a.Target.Keyword)
	case a.Target.RuleRef != nil:
		target = convertRuleRef(a.Target.RuleRef)
	default:
		return nil, fmt.Errorf("assignment %s: empty target", a.Property)
	}
	if err != nil {
		return nil, err
	}

	var op AssignOp
	switch a.Op {
	case "+=":
		op = OpAppend
	case "?=":
		op = OpExists
	default:
		op = OpEquals
	}

	out := &Assignment{
		Property: a.Property,
		Operator: op,
		Target:   target,
	}
	if cr, ok := target.(*CrossReference); ok {
		out.IsCrossReference = true
		out.CrossRefRuleName = cr.TargetRuleName
	}
	if rc, ok := target.(*RuleCall); ok {
		out.TerminalRuleName = rc.RuleName
	}
	return out, nil
}

func convertCrossRef(c *syntaxCrossRef) *CrossReference {
	return &CrossReference{
		TargetRuleName: c.RuleName,
		Cardinality:    cardinalityFromSuffix(c.Cardinality),
	}
}

func convertKeyword(k *syntaxKeyword) *Keyword {
	return &Keyword{
		Value:       k.Value,
		Cardinality: cardinalityFromSuffix(k.Cardinality),
	}
}

func convertRuleRef(r *syntaxRuleRef) *RuleCall {
	return &RuleCall{
		RuleName:    r.Name,
		Cardinality: cardinalityFromSuffix(r.Cardinality),
	}
}

func convertGroup(g *syntaxGroup) (*Group, error) {
	out := &Group{Unordered: g.Unordered, Cardinality: cardinalityFromSuffix(g.Cardinality)}
	for _, alt := range g.Alternatives {
		converted, err := convertAlternative(alt)
		if err != nil {
			return nil, err
		}
		out.Alternatives = append(out.Alternatives, converted)
	}
	return out, nil
}

// expandInfixRules unfolds each InfixRule into a concrete left-recursive
// Rule with one alternative per operator at that level, plus a fallback
// call to the operand rule (spec.md §4.5 / GLOSSARY "Infix rule").
func expandInfixRules(g *Grammar) error {
	for _, infix := range g.InfixRules {
		if g.RuleByName(infix.Name) != nil {
			return fmt.Errorf("infix rule %s collides with an existing rule", infix.Name)
		}
		rule := &Rule{Name: infix.Name}
		for _, level := range infix.Levels {
			rule.Alternatives = append(rule.Alternatives, &Alternative{
				Elements: []Element{
					&Assignment{Property: "left", Operator: OpEquals, Target: &RuleCall{RuleName: infix.Name}},
					&Keyword{Value: level.Operator},
					&Assignment{Property: "right", Operator: OpEquals, Target: &RuleCall{RuleName: infix.OperandRule}},
				},
			})
		}
		// Fallback: an unassigned rule call inlines via the AST builder's
		// "type override" pattern (spec.md §4.6 step 4).
		rule.Alternatives = append(rule.Alternatives, &Alternative{
			Elements: []Element{&RuleCall{RuleName: infix.OperandRule}},
		})
		g.Rules = append(g.Rules, rule)
	}
	return nil
}
