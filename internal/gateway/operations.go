package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/simon/opsgate/internal/hostexec"
	"github.com/simon/opsgate/internal/policy"
	"github.com/simon/opsgate/internal/remote"
	"github.com/simon/opsgate/internal/session"
)

var serviceListing = []string{"systemctl", "list-units", "--type=service", "--state=running"}

// Ping probes address with PingCount echo requests, from the remote host
// when connected.
func (g *Gateway) Ping(ctx context.Context, address string) Reply {
	var res hostexec.Result
	if rem := g.route(); rem != nil {
		res = rem.Run(ctx, []string{"ping", "-c", fmt.Sprint(PingCount), address})
	} else {
		res = g.local.Run(ctx, []string{"ping", hostexec.PingCountFlag(g.goos), fmt.Sprint(PingCount), address})
	}

	var text string
	if res.Success {
		text = fmt.Sprintf("Server: %s\nOrigin: %s\nStatus: Online\n%s", address, res.Origin, res.OutputString())
	} else {
		text = fmt.Sprintf("Server: %s\nOrigin: %s\nStatus: Offline\nError: %s", address, res.Origin, res.ErrorText())
	}
	return g.finish(ctx, Reply{Result: res, Operation: OpPing, Target: address, Text: text})
}

// ListServices lists running services. Locally it falls back to a process
// listing when systemd is absent, so some output is always produced.
func (g *Gateway) ListServices(ctx context.Context) Reply {
	var res hostexec.Result
	if rem := g.route(); rem != nil {
		res = rem.Run(ctx, serviceListing)
	} else if _, err := g.lookPath("systemctl"); err == nil {
		res = g.local.Run(ctx, serviceListing)
	} else {
		res = g.local.Run(ctx, []string{"ps", "aux"})
	}
	text := res.OutputString()
	if !res.Success {
		text = "Error listing services: " + res.ErrorText()
	}
	return g.finish(ctx, Reply{Result: res, Operation: OpListServices, Text: text})
}

// Filesystem runs an allowlisted filesystem command against path. The verb
// is checked before anything executes.
func (g *Gateway) Filesystem(ctx context.Context, raw, path string) Reply {
	if path == "" {
		path = "."
	}
	cmd, err := policy.Validate(raw)
	if err != nil {
		origin := hostexec.Local
		if g.sessions.Connected() {
			origin = hostexec.Remote
		}
		res := hostexec.Failed(origin, nil, err)
		return g.finish(ctx, Reply{Result: res, Operation: OpFilesystemCmd, Target: path, Text: err.Error()})
	}

	var res hostexec.Result
	if rem := g.route(); rem != nil {
		res = rem.Run(ctx, cmd.Argv(path))
	} else {
		resolved, err := g.abs(path)
		if err != nil {
			res = hostexec.Failed(hostexec.Local, nil, fmt.Errorf("resolve %s: %w", path, err))
		} else {
			path = resolved
			res = g.local.Run(ctx, cmd.Argv(resolved))
		}
	}

	text := res.OutputString()
	if !res.Success {
		text = "Error running command: " + res.ErrorText()
	}
	return g.finish(ctx, Reply{Result: res, Operation: OpFilesystemCmd, Target: path, Text: text})
}

// RunRemote runs an arbitrary command line on the connected host. It has no
// local equivalent and fails without executing anything when disconnected.
func (g *Gateway) RunRemote(ctx context.Context, command string) Reply {
	rem := g.route()
	if rem == nil {
		res := hostexec.Failed(hostexec.Remote, nil, session.ErrNoSession)
		return g.finish(ctx, Reply{Result: res, Operation: OpRunRemote, Target: command,
			Text: "No active SSH session. Use connect_ssh first."})
	}

	res := rem.RunLine(ctx, command)
	text := res.OutputString()
	if !res.Success {
		text = "Error running remote command: " + res.ErrorText()
	}
	return g.finish(ctx, Reply{Result: res, Operation: OpRunRemote, Target: command, Text: text})
}

// Connect opens a session to host with the configured credentials,
// replacing any existing one.
func (g *Gateway) Connect(ctx context.Context, host string) Reply {
	rem, err := g.sessions.Connect(ctx, host)
	if err != nil {
		res := hostexec.Failed(hostexec.Remote, nil, err)
		return g.finish(ctx, Reply{Result: res, Operation: OpConnect, Target: host, Text: connectFailureText(host, err)})
	}
	res := hostexec.Succeeded(hostexec.Remote, nil)
	return g.finish(ctx, Reply{Result: res, Operation: OpConnect, Target: rem.Addr(),
		Text: fmt.Sprintf("SSH connection to %s established successfully.", rem.Addr())})
}

func connectFailureText(host string, err error) string {
	var ce *remote.ConnectError
	if errors.As(err, &ce) {
		return fmt.Sprintf("Failed to connect to %s: %s: %v", ce.Addr, ce.Kind, ce.Err)
	}
	return fmt.Sprintf("Failed to connect to %s: %v", host, err)
}

// Disconnect closes the current session. Disconnecting with no session is a
// successful no-op.
func (g *Gateway) Disconnect(ctx context.Context) Reply {
	addr, had, err := g.sessions.Disconnect()
	switch {
	case !had:
		res := hostexec.Succeeded(hostexec.Remote, nil)
		return g.finish(ctx, Reply{Result: res, Operation: OpDisconnect, Text: "No SSH session to disconnect."})
	case err != nil:
		res := hostexec.Failed(hostexec.Remote, nil, err)
		return g.finish(ctx, Reply{Result: res, Operation: OpDisconnect, Target: addr,
			Text: fmt.Sprintf("Error closing SSH session to %s: %v", addr, err)})
	default:
		res := hostexec.Succeeded(hostexec.Remote, nil)
		return g.finish(ctx, Reply{Result: res, Operation: OpDisconnect, Target: addr,
			Text: fmt.Sprintf("SSH session to %s closed.", addr)})
	}
}
