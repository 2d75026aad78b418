package hostexec

import (
	"fmt"
	"strings"
)

// Origin tags where a result was produced.
type Origin int

const (
	Local Origin = iota
	Remote
)

func (o Origin) String() string {
	switch o {
	case Remote:
		return "remote"
	default:
		return "local"
	}
}

// Result is the outcome of one command invocation. It is produced fresh per
// call and never persisted.
type Result struct {
	Origin  Origin
	Success bool
	Output  []byte // combined stdout+stderr
	Err     error
}

// Succeeded builds a successful result.
func Succeeded(origin Origin, out []byte) Result {
	return Result{Origin: origin, Success: true, Output: out}
}

// Failed builds a failed result. out may hold whatever the command printed
// before failing.
func Failed(origin Origin, out []byte, err error) Result {
	return Result{Origin: origin, Output: out, Err: err}
}

// OutputString returns the captured output as a string.
func (r Result) OutputString() string {
	return string(r.Output)
}

// ErrorText describes a failure, preferring captured output over the bare
// error since that is what the command itself said.
func (r Result) ErrorText() string {
	if out := strings.TrimSpace(string(r.Output)); out != "" {
		return out
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	if !r.Success {
		return fmt.Sprintf("%s command failed", r.Origin)
	}
	return ""
}
