// Package gateway routes each operation to the active remote session or to
// local process execution, and turns every outcome into reply text.
//
// The dispatch rule is uniform: prefer the live remote session; fall back to
// the local machine only for operations that define a local equivalent.
package gateway

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/simon/opsgate/internal/hostexec"
	"github.com/simon/opsgate/internal/session"
	"github.com/simon/opsgate/internal/state"
)

// Operation names, as exposed to callers.
const (
	OpPing          = "ping_server"
	OpConnect       = "connect_ssh"
	OpDisconnect    = "disconnect_ssh"
	OpRunRemote     = "run_remote_command"
	OpListServices  = "list_services"
	OpFilesystemCmd = "filesystem_command"
)

// PingCount is the fixed repeat count for reachability probes.
const PingCount = 4

// Recorder persists a summary of each dispatched operation.
type Recorder interface {
	Record(e state.Entry) (string, error)
}

// Options configures a Gateway. Zero values pick the real local machine.
type Options struct {
	Local    hostexec.Executor
	LookPath func(name string) (string, error)
	Abs      func(path string) (string, error)
	GOOS     string
	Recorder Recorder
	Logger   *slog.Logger
}

// Gateway is the dispatcher. It is safe for concurrent use.
type Gateway struct {
	sessions *session.Registry
	local    hostexec.Executor
	lookPath func(string) (string, error)
	abs      func(string) (string, error)
	goos     string
	recorder Recorder
	log      *slog.Logger
}

// New returns a Gateway dispatching through sessions.
func New(sessions *session.Registry, opts Options) *Gateway {
	g := &Gateway{
		sessions: sessions,
		local:    opts.Local,
		lookPath: opts.LookPath,
		abs:      opts.Abs,
		goos:     opts.GOOS,
		recorder: opts.Recorder,
		log:      opts.Logger,
	}
	if g.log == nil {
		g.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if g.local == nil {
		g.local = &hostexec.LocalExecutor{Logger: g.log}
	}
	if g.lookPath == nil {
		g.lookPath = hostexec.LookPath
	}
	if g.abs == nil {
		g.abs = filepath.Abs
	}
	if g.goos == "" {
		g.goos = runtime.GOOS
	}
	return g
}

// Reply is a normalized operation outcome: the raw execution result plus the
// human-readable text returned to callers.
type Reply struct {
	hostexec.Result
	Operation string
	Target    string
	Text      string
}

// route returns the live remote session, or nil when commands should run
// locally.
func (g *Gateway) route() session.Remote {
	return g.sessions.Current()
}

func (g *Gateway) finish(ctx context.Context, r Reply) Reply {
	g.log.LogAttrs(ctx, levelFor(r), "operation finished",
		slog.String("op", r.Operation),
		slog.String("origin", r.Origin.String()),
		slog.String("target", r.Target),
		slog.Bool("success", r.Success),
	)
	if g.recorder != nil {
		detail := ""
		if !r.Success {
			detail = r.ErrorText()
		}
		if _, err := g.recorder.Record(state.Entry{
			Operation: r.Operation,
			Origin:    r.Origin.String(),
			Target:    r.Target,
			Success:   r.Success,
			Detail:    detail,
		}); err != nil {
			g.log.Warn("record execution", "op", r.Operation, "err", err)
		}
	}
	return r
}

func levelFor(r Reply) slog.Level {
	if r.Success {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}
