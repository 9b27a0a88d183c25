// Package shellwords splits configured command lines (editor, screenshot tool) into argv.
package shellwords

import (
	"strings"
	"unicode"
)

// Split splits a shell-like command string into argv, handling basic quoting.
// It supports single quotes, double quotes, and backslash escaping (outside single quotes).
// Quoted empty strings are kept as empty arguments.
func Split(s string) []string {
	var out []string
	var cur strings.Builder
	inSingle, inDouble, escaped, quoted := false, false, false, false

	flush := func() {
		if cur.Len() == 0 && !quoted {
			return
		}
		out = append(out, cur.String())
		cur.Reset()
		quoted = false
	}

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && !inSingle:
			escaped = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			quoted = true
		case r == '"' && !inSingle:
			inDouble = !inDouble
			quoted = true
		case !inSingle && !inDouble && unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}

	flush()
	return out
}

// Expand splits s and replaces every {key} placeholder inside each word with vars[key].
// Substitution happens after splitting so values containing spaces stay one argument.
func Expand(s string, vars map[string]string) []string {
	args := Split(s)
	for i, a := range args {
		for k, v := range vars {
			a = strings.ReplaceAll(a, "{"+k+"}", v)
		}
		args[i] = a
	}
	return args
}
