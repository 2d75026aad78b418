package hostexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
)

// LocalExecutor runs commands on the local machine, one attempt per call.
type LocalExecutor struct {
	Logger *slog.Logger
}

func (l *LocalExecutor) Origin() Origin { return Local }

// Run resolves argv[0] to an absolute path and runs it, capturing merged
// stdout and stderr. It never returns an error; failures are carried in the
// Result.
func (l *LocalExecutor) Run(ctx context.Context, argv []string) Result {
	if len(argv) == 0 {
		return Failed(Local, nil, fmt.Errorf("empty command"))
	}

	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return Failed(Local, nil, fmt.Errorf("%s not found: %w", argv[0], err))
	}

	cmd := exec.CommandContext(ctx, bin, argv[1:]...)
	out, err := cmd.CombinedOutput()
	if l.Logger != nil {
		l.Logger.Debug("local command finished", "bin", bin, "args", argv[1:], "exit", exitCode(err))
	}
	if err != nil {
		return Failed(Local, out, err)
	}
	return Succeeded(Local, out)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// LookPath reports whether a binary is available locally.
func LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
