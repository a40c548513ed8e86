// Package source prepares submitted program text for execution: it strips
// comments, joins bracketed runs into single logical lines and locates the
// circuit entry point and its transform decorators.
package source

import "strings"

// Normalize strips comments and joins bracketed runs so every statement
// occupies one line. The number of lines is unchanged.
func Normalize(src string) string {
	return JoinLines(StripComments(src))
}

// StripComments removes comment text while keeping the newline that ends
// it. A '#' inside a string literal is not a comment.
func StripComments(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))
	for i := 0; i < len(src); {
		switch ch := src[i]; ch {
		case '"', '\'':
			end := skipString(src, i)
			sb.WriteString(src[i:end])
			i = end
		case '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		default:
			sb.WriteByte(ch)
			i++
		}
	}
	return sb.String()
}

// JoinLines removes newlines that occur inside an open bracket run (or a
// triple-quoted string, or after a backslash continuation) and re-emits
// them right after the end of the logical line, so code below keeps its
// line numbers. Whitespace inside brackets is collapsed to single spaces,
// with none directly inside the brackets themselves.
//
//	"qml.PauliX(\nwires=0\n)\n"  ->  "qml.PauliX(wires=0)\n\n\n"
func JoinLines(src string) string {
	var sb strings.Builder
	sb.Grow(len(src))

	depth, pending := 0, 0
	space := false
	var last byte

	write := func(s string) {
		if s == "" {
			return
		}
		if space {
			if !isOpenBracket(last) && !isCloseBracket(s[0]) {
				sb.WriteByte(' ')
			}
			space = false
		}
		sb.WriteString(s)
		last = s[len(s)-1]
	}

	for i := 0; i < len(src); {
		ch := src[i]
		switch {
		case ch == '"' || ch == '\'':
			end := skipString(src, i)
			lit := src[i:end]
			if n := strings.Count(lit, "\n"); n > 0 {
				pending += n
				lit = strings.ReplaceAll(lit, "\n", `\n`)
			}
			write(lit)
			i = end
		case ch == '\\' && i+1 < len(src) && src[i+1] == '\n':
			pending++
			space = last != ' ' && last != '\t'
			i += 2
		case ch == '\n':
			i++
			if depth > 0 {
				pending++
				space = true
				continue
			}
			space = false
			sb.WriteByte('\n')
			sb.WriteString(strings.Repeat("\n", pending))
			pending = 0
			last = '\n'
		case ch == ' ' || ch == '\t' || ch == '\r':
			i++
			if depth > 0 {
				space = true
				continue
			}
			if space {
				continue
			}
			sb.WriteByte(ch)
			last = ch
		case isOpenBracket(ch):
			write(string(ch))
			depth++
			i++
		case isCloseBracket(ch):
			space = false
			write(string(ch))
			if depth > 0 {
				depth--
			}
			i++
		default:
			write(string(ch))
			i++
		}
	}
	sb.WriteString(strings.Repeat("\n", pending))
	return sb.String()
}

// skipString returns the index just past the string literal starting at
// src[i]. Unterminated single-quoted literals end at the newline.
func skipString(src string, i int) int {
	q := src[i]
	triple := strings.Repeat(string(q), 3)
	if strings.HasPrefix(src[i:], triple) {
		for j := i + 3; j < len(src); j++ {
			if src[j] == '\\' {
				j++
				continue
			}
			if strings.HasPrefix(src[j:], triple) {
				return j + 3
			}
		}
		return len(src)
	}
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case q:
			return j + 1
		case '\n':
			return j
		}
	}
	return len(src)
}

func isOpenBracket(ch byte) bool  { return ch == '(' || ch == '[' || ch == '{' }
func isCloseBracket(ch byte) bool { return ch == ')' || ch == ']' || ch == '}' }
