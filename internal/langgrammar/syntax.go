// Package langgrammar parses the grammar description language (".glang"
// files) that users write to describe their own language, and exposes a
// normalized Grammar model consumed by the grammar index (internal/gr) and
// the grammar translator (internal/translator).
package langgrammar

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var glangLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Regex", Pattern: `/(?:[^/\\\n]|\\.)*/`},
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`},
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Name", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Op", Pattern: `\+=|\?=|@left|@right|@dynamicPrecedence|[=(){}\[\]|&?+*:;,]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var glangParser = participle.MustBuild[syntaxFile](
	participle.Lexer(glangLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// syntaxFile is the raw participle parse tree for one ".glang" source file.
type syntaxFile struct {
	Name  string         `parser:"\"grammar\" @Name"`
	Items []*syntaxItem  `parser:"@@*"`
}

type syntaxItem struct {
	Terminal *syntaxTerminalDecl `parser:"  @@"`
	Infix    *syntaxInfixDecl    `parser:"| @@"`
	Rule     *syntaxRuleDecl     `parser:"| @@"`
}

type syntaxTerminalDecl struct {
	Hidden  bool   `parser:"@\"hidden\"?"`
	Name    string `parser:"\"terminal\" @Name \":\""`
	Pattern string `parser:"@Regex \";\""`
}

type syntaxInfixLevel struct {
	Assoc   string `parser:"@(\"@left\" | \"@right\")"`
	Keyword string `parser:"@String"`
}

type syntaxInfixDecl struct {
	Name   string              `parser:"\"infix\" @Name"`
	On     string              `parser:"\"on\" @Name \":\""`
	Levels []*syntaxInfixLevel `parser:"@@ (\"|\" @@)* \";\""`
}

type syntaxRuleDecl struct {
	Entry      bool                `parser:"@\"entry\"?"`
	Fragment   bool                `parser:"@\"fragment\"?"`
	DynPrec    *int                `parser:"(\"@dynamicPrecedence\" \"(\" @Number \")\")?"`
	Name       string              `parser:"@Name"`
	Returns    string              `parser:"(\"returns\" @Name)?"`
	Body       []*syntaxAlternative `parser:"\":\" @@ (\"|\" @@)* \";\""`
}

type syntaxAlternative struct {
	Elements []*syntaxElement `parser:"@@+"`
}

type syntaxElement struct {
	Assignment *syntaxAssignment `parser:"( @@"`
	CrossRef   *syntaxCrossRef   `parser:"| @@"`
	Group      *syntaxGroup      `parser:"| @@"`
	Keyword    *syntaxKeyword    `parser:"| @@"`
	RuleRef    *syntaxRuleRef    `parser:"| @@ )"`
}

type syntaxAssignment struct {
	Property string           `parser:"@Name"`
	Op       string           `parser:"@(\"+=\" | \"?=\" | \"=\")"`
	Target   *syntaxAssignTarget `parser:"@@"`
}

type syntaxAssignTarget struct {
	CrossRef *syntaxCrossRef `parser:"( @@"`
	Group    *syntaxGroup    `parser:"| @@"`
	Keyword  *syntaxKeyword  `parser:"| @@"`
	RuleRef  *syntaxRuleRef  `parser:"| @@ )"`
}

type syntaxKeyword struct {
	Value       string `parser:"@String"`
	Cardinality string `parser:"@(\"?\" | \"*\" | \"+\")?"`
}

type syntaxCrossRef struct {
	RuleName    string `parser:"\"[\" @Name \"]\""`
	Cardinality string `parser:"@(\"?\" | \"*\" | \"+\")?"`
}

type syntaxRuleRef struct {
	Name        string `parser:"@Name"`
	Cardinality string `parser:"@(\"?\" | \"*\" | \"+\")?"`
}

type syntaxGroup struct {
	Unordered    bool                 `parser:"@\"&\"?"`
	Alternatives []*syntaxAlternative `parser:"\"(\" @@ (\"|\" @@)* \")\""`
	Cardinality  string               `parser:"@(\"?\" | \"*\" | \"+\")?"`
}

// parseSyntaxFile parses a ".glang" source buffer into the raw syntax tree.
func parseSyntaxFile(name string, src []byte) (*syntaxFile, error) {
	return glangParser.ParseBytes(name, src)
}
