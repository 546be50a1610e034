package translator_test

import (
	"strings"
	"testing"

	"github.com/kpumuk/langforge/internal/diagnostic"
	"github.com/kpumuk/langforge/internal/langgrammar"
	"github.com/kpumuk/langforge/internal/translator"
)

func TestInterpretedValidateCleanGrammarReportsNothing(t *testing.T) {
	g := &langgrammar.Grammar{
		Rules: []*langgrammar.Rule{
			{
				Name: "document",
				Alternatives: []*langgrammar.Alternative{
					{Elements: []langgrammar.Element{&langgrammar.RuleCall{RuleName: "field"}}},
				},
			},
		},
	}
	diags := (translator.Interpreted{}).Validate(g)
	if len(diags) != 0 {
		t.Errorf("Validate(clean grammar) = %+v, want no diagnostics", diags)
	}
}

func TestInterpretedValidateDynamicPrecedenceIsError(t *testing.T) {
	g := &langgrammar.Grammar{
		Rules: []*langgrammar.Rule{
			{Name: "expr", DynamicPrecedence: 2},
		},
	}
	diags := (translator.Interpreted{}).Validate(g)
	if len(diags) != 1 {
		t.Fatalf("Validate = %+v, want exactly one diagnostic", diags)
	}
	if diags[0].Severity != diagnostic.SeverityError {
		t.Errorf("diags[0].Severity = %v, want SeverityError", diags[0].Severity)
	}
	if !strings.Contains(diags[0].Message, "expr") || !strings.Contains(diags[0].Message, "dynamicPrecedence") {
		t.Errorf("diags[0].Message = %q, want it to name the rule and the dynamicPrecedence annotation", diags[0].Message)
	}
}

func TestInterpretedValidateUnorderedGroupIsWarning(t *testing.T) {
	g := &langgrammar.Grammar{
		Rules: []*langgrammar.Rule{
			{
				Name: "header",
				Alternatives: []*langgrammar.Alternative{
					{Elements: []langgrammar.Element{
						&langgrammar.Group{
							Unordered: true,
							Alternatives: []*langgrammar.Alternative{
								{Elements: []langgrammar.Element{&langgrammar.Keyword{Value: "a"}}},
								{Elements: []langgrammar.Element{&langgrammar.Keyword{Value: "b"}}},
							},
						},
					}},
				},
			},
		},
	}
	diags := (translator.Interpreted{}).Validate(g)
	if len(diags) != 1 {
		t.Fatalf("Validate = %+v, want exactly one diagnostic", diags)
	}
	if diags[0].Severity != diagnostic.SeverityWarning {
		t.Errorf("diags[0].Severity = %v, want SeverityWarning", diags[0].Severity)
	}
	if !strings.Contains(diags[0].Message, "header") {
		t.Errorf("diags[0].Message = %q, want it to name the rule", diags[0].Message)
	}
}

func TestInterpretedValidateFindsUnorderedGroupNestedInsideAssignment(t *testing.T) {
	g := &langgrammar.Grammar{
		Rules: []*langgrammar.Rule{
			{
				Name: "header",
				Alternatives: []*langgrammar.Alternative{
					{Elements: []langgrammar.Element{
						&langgrammar.Assignment{
							Property: "opts",
							Target: &langgrammar.Group{
								Unordered: true,
								Alternatives: []*langgrammar.Alternative{
									{Elements: []langgrammar.Element{&langgrammar.Keyword{Value: "a"}}},
								},
							},
						},
					}},
				},
			},
		},
	}
	diags := (translator.Interpreted{}).Validate(g)
	if len(diags) != 1 {
		t.Fatalf("Validate = %+v, want one diagnostic from the group nested inside the assignment target", diags)
	}
}

func TestInterpretedValidateInfixRuleIsWarning(t *testing.T) {
	g := &langgrammar.Grammar{
		InfixRules: []*langgrammar.InfixRule{
			{
				Name:        "expr",
				OperandRule: "term",
				Levels: []langgrammar.InfixLevel{
					{Operator: "+"},
					{Operator: "*", RightAssoc: false},
				},
			},
		},
	}
	diags := (translator.Interpreted{}).Validate(g)
	if len(diags) != 1 {
		t.Fatalf("Validate = %+v, want exactly one diagnostic for the infix rule", diags)
	}
	if diags[0].Severity != diagnostic.SeverityWarning {
		t.Errorf("diags[0].Severity = %v, want SeverityWarning", diags[0].Severity)
	}
	if !strings.Contains(diags[0].Message, "expr") {
		t.Errorf("diags[0].Message = %q, want it to name the infix rule", diags[0].Message)
	}
}
