package source

import (
	"regexp"
	"slices"
	"strings"

	cierrors "circinspect/pkg/errors"
)

var (
	restrictedSplit = regexp.MustCompile(`[ ,.:=(]+`)
	defName         = regexp.MustCompile(`^\s*def\s+([A-Za-z_]\w*)\s*\(`)
)

var bannedImports = []string{"csv", "json", "lane", "os", "pathlib", "requests", "sys", "urllib"}

var disabledCalls = []struct {
	name    string
	message string
}{
	{"open", "Filesystem functionality such as open() is disabled. "},
	{"exec", "exec() function is disabled. "},
	{"eval", "eval() function is disabled. "},
	{"breakpoint", "Other debuggers cannot be used inside CircInspect. "},
}

// CheckRestricted rejects programs that import modules outside the
// sandbox or reach for open/exec/eval/breakpoint. Lines are split on
// punctuation and matched as whole tokens.
func CheckRestricted(src string) error {
	for i, line := range strings.Split(src, "\n") {
		tokens := restrictedSplit.Split(line, -1)
		if slices.Contains(tokens, "import") {
			for _, b := range bannedImports {
				if slices.Contains(tokens, b) {
					return &cierrors.ProgramError{Message: "No module named: " + b, Line: i + 1}
				}
			}
		}
		for _, d := range disabledCalls {
			if slices.Contains(tokens, d.name) {
				return &cierrors.ProgramError{Message: d.message, Line: i + 1}
			}
		}
	}
	return nil
}

// MethodNames returns the names of every function defined in src,
// at any indentation.
func MethodNames(src string) map[string]bool {
	names := make(map[string]bool)
	for _, line := range strings.Split(src, "\n") {
		if m := defName.FindStringSubmatch(line); m != nil {
			names[m[1]] = true
		}
	}
	return names
}

// IsDefinition reports whether a line of source defines a function.
func IsDefinition(line string) bool {
	return strings.Contains(line, "def ")
}
