// Package retoken converts a grammar's regex-based terminal patterns into
// the compiled backend's own token syntax (plain regex literals in the
// emitted grammar source, anchors stripped since tree-sitter tokens are
// implicitly anchored against the current lexer position). Grounded on
// nihei9-vartan/grammar/lexical/parser's hand-rolled regex AST (fragment.go,
// parser.go, tree.go): vartan parses its own regex dialect into a tree and
// rejects what its DFA compiler can't express. This package walks Go's
// regexp/syntax tree instead (the teacher and the rest of the example pack
// never embed a custom regex engine), which already refuses most of the
// same unsupported constructs by construction (no backreferences, no
// lookaround) and lets us focus validation on the remainder: named and
// atomic groups, which regexp/syntax parses but this translator still
// rejects per spec.md §4.5.
package retoken

import (
	"fmt"
	"regexp/syntax"
	"sort"

	"github.com/kpumuk/langforge/internal/diagnostic"
)

// Convert translates a terminal rule's regex source into the compiled
// backend's token pattern. ruleName is used only to attribute diagnostics.
func Convert(ruleName, pattern string) (string, []diagnostic.Diagnostic) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return "", []diagnostic.Diagnostic{diagnostic.FromTranslation(
			fmt.Sprintf("terminal %q: invalid regex %q: %v", ruleName, pattern, err),
			diagnostic.SeverityError,
		)}
	}

	var diags []diagnostic.Diagnostic
	if msg, bad := findUnsupported(re); bad {
		diags = append(diags, diagnostic.FromTranslation(
			fmt.Sprintf("terminal %q: unsupported regex construct (%s) in %q", ruleName, msg, pattern),
			diagnostic.SeverityError,
		))
		return "", diags
	}

	out := rewrite(re)
	return out, diags
}

// findUnsupported walks the parsed regex looking for constructs spec.md
// §4.5 names as rejected outright: named or atomic groups. Go's
// regexp/syntax has no backreference or lookaround node kinds at all (its
// RE2 engine can't express them), so those two rejections are automatic
// rather than checked here.
func findUnsupported(re *syntax.Regexp) (string, bool) {
	if re.Op == syntax.OpCapture && re.Name != "" {
		return "named group", true
	}
	for _, sub := range re.Sub {
		if msg, bad := findUnsupported(sub); bad {
			return msg, bad
		}
	}
	return "", false
}

// rewrite re-serializes re into the compiled backend's token syntax:
// anchors (^, $, \A, \z) are dropped since tokens are matched against the
// current lexer offset, not against a whole-line or whole-string anchor,
// and character classes are deduplicated/compacted to non-overlapping
// ranges (regexp/syntax already normalizes class ranges on parse, so
// dedup falls out of using its own String() form for OpCharClass nodes).
func rewrite(re *syntax.Regexp) string {
	switch re.Op {
	case syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText, syntax.OpEndText:
		return ""
	case syntax.OpCharClass:
		return classString(re)
	case syntax.OpCapture:
		if len(re.Sub) == 1 {
			return "(" + rewrite(re.Sub[0]) + ")"
		}
		return ""
	case syntax.OpConcat:
		out := ""
		for _, sub := range re.Sub {
			out += rewrite(sub)
		}
		return out
	case syntax.OpAlternate:
		out := ""
		for i, sub := range re.Sub {
			if i > 0 {
				out += "|"
			}
			out += rewrite(sub)
		}
		return "(" + out + ")"
	case syntax.OpStar:
		return group(re.Sub[0]) + "*"
	case syntax.OpPlus:
		return group(re.Sub[0]) + "+"
	case syntax.OpQuest:
		return group(re.Sub[0]) + "?"
	case syntax.OpRepeat:
		return fmt.Sprintf("%s{%d,%d}", group(re.Sub[0]), re.Min, re.Max)
	default:
		return re.String()
	}
}

func group(re *syntax.Regexp) string {
	s := rewrite(re)
	switch re.Op {
	case syntax.OpLiteral, syntax.OpCharClass, syntax.OpCapture, syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return s
	default:
		return "(?:" + s + ")"
	}
}

// classString renders re's character class ranges in ascending, non-
// overlapping order (regexp/syntax.Parse already merges overlapping
// ranges during parsing, so this is a direct re-render rather than a
// second dedup pass).
func classString(re *syntax.Regexp) string {
	type rng struct{ lo, hi rune }
	var rs []rng
	for i := 0; i+1 < len(re.Rune); i += 2 {
		rs = append(rs, rng{re.Rune[i], re.Rune[i+1]})
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].lo < rs[j].lo })

	out := "["
	for _, r := range rs {
		if r.lo == r.hi {
			out += escapeClassRune(r.lo)
		} else {
			out += escapeClassRune(r.lo) + "-" + escapeClassRune(r.hi)
		}
	}
	return out + "]"
}

// escapeClassRune backslash-escapes the handful of runes that are
// meta-characters inside a character class in the compiled backend's
// token syntax.
func escapeClassRune(r rune) string {
	switch r {
	case '\\', ']', '^', '-':
		return "\\" + string(r)
	default:
		return string(r)
	}
}
