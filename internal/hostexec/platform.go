package hostexec

import "strings"

// PingCountFlag returns the flag ping uses for a repeat count on goos.
func PingCountFlag(goos string) string {
	if strings.EqualFold(goos, "windows") {
		return "-n"
	}
	return "-c"
}

// ShellQuote wraps s in single quotes for a POSIX shell unless it only
// contains safe characters.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		}
		switch r {
		case '-', '_', '.', '/', '@', ':', ',', '+', '=':
			return false
		}
		return true
	}) == -1 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "'\"'\"'") + "'"
}

// JoinArgs renders argv as a single shell command line with every argument
// quoted.
func JoinArgs(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = ShellQuote(a)
	}
	return strings.Join(quoted, " ")
}
