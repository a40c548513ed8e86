package monitor

import (
	"fmt"
	"strings"
)

type nodeKind int

const (
	nodeSimple nodeKind = iota
	nodeIf
	nodeWhile
	nodeFor
	nodeDef
	nodeImport
	nodeGlobal
)

// node is one statement of the program. Compound statements keep their
// header text (between keyword and colon) and their bodies.
type node struct {
	kind   nodeKind
	line   int
	text   string
	header string

	body   []*node
	orelse []*node

	// decorators of a def, with their line numbers.
	decorators []decorator
}

type decorator struct {
	line int
	expr string
}

// firstLine is the line a call to a function defined by n reports: its
// first decorator, or the def itself.
func (n *node) firstLine() int {
	if len(n.decorators) > 0 {
		return n.decorators[0].line
	}
	return n.line
}

type syntaxError struct {
	line int
	msg  string
}

func (e *syntaxError) Error() string { return e.msg }

type parser struct {
	lines []string
	pos   int
}

// parseProgram splits normalized source into a statement tree.
func parseProgram(src string) ([]*node, error) {
	p := &parser{lines: strings.Split(src, "\n")}
	nodes, err := p.block(0)
	if err != nil {
		return nil, err
	}
	if p.skipBlank(); p.pos < len(p.lines) {
		return nil, &syntaxError{line: p.pos + 1, msg: "IndentationError: unindent does not match any outer indentation level"}
	}
	return nodes, nil
}

func indentOf(line string) int {
	n := 0
	for _, ch := range line {
		switch ch {
		case ' ':
			n++
		case '\t':
			n += 8 - n%8
		default:
			return n
		}
	}
	return n
}

// skipBlank skips blank and comment-only lines.
func (p *parser) skipBlank() {
	for p.pos < len(p.lines) {
		if t := strings.TrimSpace(p.lines[p.pos]); t != "" && !strings.HasPrefix(t, "#") {
			return
		}
		p.pos++
	}
}

// peek returns the indentation and text of the next non-blank line.
func (p *parser) peek() (int, string, bool) {
	p.skipBlank()
	if p.pos >= len(p.lines) {
		return 0, "", false
	}
	raw := p.lines[p.pos]
	return indentOf(raw), strings.TrimSpace(raw), true
}

// block parses statements at exactly indent.
func (p *parser) block(indent int) ([]*node, error) {
	var nodes []*node
	var pending []decorator
	for {
		ind, text, ok := p.peek()
		if !ok || ind < indent {
			break
		}
		line := p.pos + 1
		if ind > indent {
			return nil, &syntaxError{line: line, msg: "IndentationError: unexpected indent"}
		}
		p.pos++

		if strings.HasPrefix(text, "@") {
			pending = append(pending, decorator{line: line, expr: strings.TrimSpace(text[1:])})
			continue
		}

		n, err := p.statement(indent, line, text)
		if err != nil {
			return nil, err
		}
		if len(pending) > 0 {
			if n.kind != nodeDef {
				return nil, &syntaxError{line: line, msg: "SyntaxError: decorators must be followed by a function definition"}
			}
			n.decorators = pending
			pending = nil
		}
		nodes = append(nodes, n)
	}
	if len(pending) > 0 {
		return nil, &syntaxError{line: pending[len(pending)-1].line, msg: "SyntaxError: decorators must be followed by a function definition"}
	}
	return nodes, nil
}

func keyword(text string) string {
	end := strings.IndexFunc(text, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	if end < 0 {
		return text
	}
	return text[:end]
}

// headerColon returns the index of the colon ending a compound statement
// header: the first one outside brackets, strings and lambdas.
func headerColon(text string) int {
	depth, lambdas := 0, 0
	for i := 0; i < len(text); i++ {
		switch ch := text[i]; ch {
		case '\'', '"':
			q := ch
			for i++; i < len(text) && text[i] != q; i++ {
				if text[i] == '\\' {
					i++
				}
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ':':
			if depth != 0 {
				continue
			}
			if lambdas > 0 {
				lambdas--
				continue
			}
			return i
		default:
			if depth == 0 && strings.HasPrefix(text[i:], "lambda") && (i == 0 || !isIdent(text[i-1])) &&
				(i+6 == len(text) || !isIdent(text[i+6])) {
				lambdas++
				i += 5
			}
		}
	}
	return -1
}

func isIdent(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}

func (p *parser) statement(indent, line int, text string) (*node, error) {
	kw := keyword(text)
	switch kw {
	case "if", "while", "for", "def", "elif", "else":
	case "import", "from":
		return &node{kind: nodeImport, line: line, text: text}, nil
	case "global", "nonlocal":
		return &node{kind: nodeGlobal, line: line, text: text, header: strings.TrimSpace(text[len(kw):])}, nil
	case "class", "try", "except", "finally", "with", "async", "raise", "del", "assert", "yield":
		return nil, &syntaxError{line: line, msg: fmt.Sprintf("SyntaxError: '%s' statements are not supported", kw)}
	default:
		return &node{kind: nodeSimple, line: line, text: text}, nil
	}

	colon := headerColon(text)
	if colon < 0 {
		return nil, &syntaxError{line: line, msg: "SyntaxError: expected ':'"}
	}
	n := &node{line: line, text: text, header: strings.TrimSpace(text[len(kw):colon])}
	switch kw {
	case "if":
		n.kind = nodeIf
	case "while":
		n.kind = nodeWhile
	case "for":
		n.kind = nodeFor
	case "def":
		n.kind = nodeDef
	default:
		return nil, &syntaxError{line: line, msg: "SyntaxError: invalid syntax"}
	}

	body, err := p.suite(indent, line, text[colon+1:])
	if err != nil {
		return nil, err
	}
	n.body = body

	if n.kind != nodeIf {
		if ind, next, ok := p.peek(); ok && ind == indent && keyword(next) == "else" {
			return nil, &syntaxError{line: p.pos + 1, msg: "SyntaxError: 'else' on loops is not supported"}
		}
		return n, nil
	}

	// elif chains nest as an if in orelse.
	ind, next, ok := p.peek()
	if !ok || ind != indent {
		return n, nil
	}
	switch keyword(next) {
	case "elif":
		line := p.pos + 1
		p.pos++
		elif, err := p.statement(indent, line, "if"+next[len("elif"):])
		if err != nil {
			return nil, err
		}
		elif.text = next
		n.orelse = []*node{elif}
	case "else":
		line := p.pos + 1
		p.pos++
		colon := headerColon(next)
		if colon < 0 || strings.TrimSpace(next[len("else"):colon]) != "" {
			return nil, &syntaxError{line: line, msg: "SyntaxError: expected ':'"}
		}
		orelse, err := p.suite(indent, line, next[colon+1:])
		if err != nil {
			return nil, err
		}
		n.orelse = orelse
	}
	return n, nil
}

// suite parses the body of a compound statement: either the rest of the
// header line or an indented block.
func (p *parser) suite(indent, line int, rest string) ([]*node, error) {
	if rest = strings.TrimSpace(rest); rest != "" {
		n, err := p.statement(indent, line, rest)
		if err != nil {
			return nil, err
		}
		return []*node{n}, nil
	}
	ind, _, ok := p.peek()
	if !ok || ind <= indent {
		return nil, &syntaxError{line: line, msg: "IndentationError: expected an indented block"}
	}
	return p.block(ind)
}
