package source

import (
	"regexp"
	"strings"
)

var qnodeDecorator = regexp.MustCompile(`^\s*@\s*qml\s*\.\s*qnode\b`)

// Stage is one transform decorator stacked next to the circuit entry point.
type Stage struct {
	// Text is the decorator line as written
	Text string `json:"text"`
	// Line is the 1-based line of the decorator
	Line int `json:"line"`
}

// QNodeLine returns the 0-based index of the first @qml.qnode decorator in
// lines, or -1 when there is none.
func QNodeLine(lines []string) int {
	for i, l := range lines {
		if qnodeDecorator.MatchString(l) {
			return i
		}
	}
	return -1
}

// TransformStages returns the decorators directly above and below the
// first @qml.qnode line, in ascending line order. Blank and comment-only
// lines may sit between them.
func TransformStages(src string) []Stage {
	lines := strings.Split(src, "\n")
	idx := QNodeLine(lines)
	if idx < 0 {
		return nil
	}

	var above, below []Stage
	for j := idx - 1; j >= 0; j-- {
		if skippable(lines[j]) {
			continue
		}
		if !isDecorator(lines[j]) {
			break
		}
		above = append(above, Stage{Text: lines[j], Line: j + 1})
	}
	for k := idx + 1; k < len(lines); k++ {
		if skippable(lines[k]) {
			continue
		}
		if !isDecorator(lines[k]) {
			break
		}
		below = append(below, Stage{Text: lines[k], Line: k + 1})
	}

	stages := make([]Stage, 0, len(above)+len(below))
	for i := len(above) - 1; i >= 0; i-- {
		stages = append(stages, above[i])
	}
	return append(stages, below...)
}

// CommentOutTransforms prefixes every transform stage line with '#'.
func CommentOutTransforms(src string) string {
	stages := TransformStages(src)
	if len(stages) == 0 {
		return src
	}
	lines := strings.Split(src, "\n")
	for _, s := range stages {
		lines[s.Line-1] = "#" + lines[s.Line-1]
	}
	return strings.Join(lines, "\n")
}

// Uncomment removes one leading '#' from the given 1-based line.
func Uncomment(src string, line int) string {
	lines := strings.Split(src, "\n")
	if line < 1 || line > len(lines) {
		return src
	}
	lines[line-1] = strings.TrimPrefix(lines[line-1], "#")
	return strings.Join(lines, "\n")
}

// Line returns the trimmed text of a 1-based line, or "" when out of range.
func Line(lines []string, n int) string {
	if n < 1 || n > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[n-1])
}

func skippable(line string) bool {
	t := strings.TrimSpace(line)
	return t == "" || strings.HasPrefix(line, "#")
}

func isDecorator(line string) bool {
	return strings.HasPrefix(line, "@") && !qnodeDecorator.MatchString(line)
}
