// Package policy gates filesystem-style commands against a fixed allowlist
// before they reach any executor.
package policy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDisallowed is returned for verbs outside the allowlist.
var ErrDisallowed = errors.New("command not allowed")

// Allowed maps each permitted verb to what it is used for.
var Allowed = map[string]string{
	"ls":   "list",
	"du":   "disk-usage",
	"stat": "stat-info",
	"cat":  "read",
	"find": "find",
}

// Error reports a rejected verb.
type Error struct {
	Verb string
}

func (e *Error) Error() string {
	return fmt.Sprintf("Command '%s' is not allowed.", e.Verb)
}

func (e *Error) Unwrap() error { return ErrDisallowed }

// Command is a validated command split into an argument vector.
type Command struct {
	Verb string
	Args []string
}

// Argv returns the verb followed by its arguments and any extra trailing
// arguments.
func (c Command) Argv(extra ...string) []string {
	argv := make([]string, 0, 1+len(c.Args)+len(extra))
	argv = append(argv, c.Verb)
	argv = append(argv, c.Args...)
	return append(argv, extra...)
}

// Validate splits raw on whitespace and checks the first token against the
// allowlist. Only the verb is checked; the remaining arguments pass through
// unchanged.
func Validate(raw string) (Command, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Command{}, &Error{}
	}
	verb := fields[0]
	if _, ok := Allowed[verb]; !ok {
		return Command{}, &Error{Verb: verb}
	}
	return Command{Verb: verb, Args: fields[1:]}, nil
}

// Verbs returns the allowlist in sorted order.
func Verbs() []string {
	verbs := make([]string, 0, len(Allowed))
	for v := range Allowed {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)
	return verbs
}
