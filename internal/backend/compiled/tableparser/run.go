package tableparser

import "fmt"

type stackEntry struct {
	state int
	node  *Node
}

// Token is one lexed input symbol: a numeric grammar symbol id (matching
// the ids Tables.Action/Goto are keyed by) plus its source span, so a
// reduced node can carry a byte range.
type Token struct {
	Symbol int32
	Start  int
	End    int
}

// Node is the shift-reduce parser's own output shape: a terminal (leaf,
// Children is nil) or a reduced production (composite). stree.RawNode
// construction from Node happens in internal/backend/compiled (this
// package has no stree dependency, so it stays usable independent of the
// ST layer, mirroring how nihei9-vartan's parsing_table.go is agnostic to
// any particular AST representation).
type Node struct {
	Symbol   int32
	RuleName string
	Start    int
	End      int
	Children []*Node
}

// Run drives tokens through t's ACTION/GOTO tables using the standard
// shift-reduce stack discipline, returning the single root node on accept.
// A parse error returns the partial stack's top node (if any) plus an
// error describing the offending token — the caller (compiled.Adapter's
// table-interpreter fallback path) wraps this into an error-marked ST leaf
// rather than aborting the whole document, matching both backends' "never
// fail outright on malformed input" contract (spec.md §4.3/§4.4).
func Run(t *Tables, tokens []Token) (*Node, error) {
	stack := []stackEntry{{state: 0}}
	pos := 0

	nextToken := func() int32 {
		if pos >= len(tokens) {
			return -1 // EOF, matching lalr.SymbolEOF's numeric convention
		}
		return tokens[pos].Symbol
	}

	for {
		top := stack[len(stack)-1]
		sym := nextToken()
		row, ok := t.Action[top.state]
		if !ok {
			return topNode(stack), fmt.Errorf("tableparser: no actions defined for state %d", top.state)
		}
		action, ok := row[sym]
		if !ok {
			return topNode(stack), fmt.Errorf("tableparser: unexpected symbol %d in state %d", sym, top.state)
		}

		switch action.Kind {
		case ActionShift:
			tok := tokens[pos]
			stack = append(stack, stackEntry{
				state: action.State,
				node:  &Node{Symbol: tok.Symbol, Start: tok.Start, End: tok.End},
			})
			pos++
		case ActionReduce:
			prod := t.Productions[action.Prod]
			n := prod.RHSLen
			children := make([]*Node, n)
			for i := 0; i < n; i++ {
				children[i] = stack[len(stack)-n+i].node
			}
			stack = stack[:len(stack)-n]

			start, end := 0, 0
			if n > 0 {
				start, end = children[0].Start, children[n-1].End
			} else if len(stack) > 0 && stack[len(stack)-1].node != nil {
				start = stack[len(stack)-1].node.End
				end = start
			}

			gotoRow, ok := t.Goto[stack[len(stack)-1].state]
			if !ok {
				return topNode(stack), fmt.Errorf("tableparser: no goto row for state %d", stack[len(stack)-1].state)
			}
			nextState, ok := gotoRow[prod.LHS]
			if !ok {
				return topNode(stack), fmt.Errorf("tableparser: no goto entry for symbol %d from state %d", prod.LHS, stack[len(stack)-1].state)
			}

			stack = append(stack, stackEntry{
				state: nextState,
				node:  &Node{Symbol: prod.LHS, RuleName: prod.RuleName, Start: start, End: end, Children: children},
			})
		case ActionAccept:
			return stack[len(stack)-1].node, nil
		default:
			return topNode(stack), fmt.Errorf("tableparser: parse error at symbol %d in state %d", sym, top.state)
		}
	}
}

func topNode(stack []stackEntry) *Node {
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1].node
}
