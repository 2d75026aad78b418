package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/simon/opsgate/internal/hostexec"
	"github.com/simon/opsgate/internal/remote"
	"github.com/simon/opsgate/internal/remote/remotetest"
	"github.com/simon/opsgate/internal/session"
	"github.com/simon/opsgate/internal/session/sessiontest"
	"github.com/simon/opsgate/internal/state"
)

// fakeLocal records every argv it is asked to spawn.
type fakeLocal struct {
	mu    sync.Mutex
	calls [][]string
	reply func(argv []string) hostexec.Result
}

func (f *fakeLocal) Origin() hostexec.Origin { return hostexec.Local }

func (f *fakeLocal) Run(_ context.Context, argv []string) hostexec.Result {
	f.mu.Lock()
	f.calls = append(f.calls, argv)
	f.mu.Unlock()
	if f.reply != nil {
		return f.reply(argv)
	}
	return hostexec.Succeeded(hostexec.Local, []byte("local ok\n"))
}

func (f *fakeLocal) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

type memRecorder struct {
	mu      sync.Mutex
	entries []state.Entry
}

func (m *memRecorder) Record(e state.Entry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return "id", nil
}

type fixture struct {
	gw    *Gateway
	reg   *session.Registry
	conn  *sessiontest.Connector
	local *fakeLocal
	rec   *memRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		conn:  &sessiontest.Connector{},
		local: &fakeLocal{},
		rec:   &memRecorder{},
	}
	f.reg = session.NewRegistry(f.conn, nil)
	f.gw = New(f.reg, Options{
		Local:    f.local,
		LookPath: func(string) (string, error) { return "/usr/bin/systemctl", nil },
		Abs:      func(p string) (string, error) { return "/abs/" + strings.TrimPrefix(p, "./"), nil },
		GOOS:     "linux",
		Recorder: f.rec,
	})
	return f
}

func (f *fixture) connect(t *testing.T) *sessiontest.Remote {
	t.Helper()
	r := f.gw.Connect(context.Background(), "web1")
	require.True(t, r.Success, r.Text)
	created := f.conn.Created()
	return created[len(created)-1]
}

func TestFilesystem_RejectsBeforeExecution(t *testing.T) {
	for _, raw := range []string{"rm -rf", "bash -c ls", "sudo ls", "chmod 777", ""} {
		t.Run(raw, func(t *testing.T) {
			f := newFixture(t)
			r := f.gw.Filesystem(context.Background(), raw, "/tmp")
			require.False(t, r.Success)
			require.Contains(t, r.Text, "is not allowed")
			require.Empty(t, f.local.Calls())
		})
	}

	f := newFixture(t)
	rem := f.connect(t)
	r := f.gw.Filesystem(context.Background(), "rm -rf", "/")
	require.Equal(t, "Command 'rm' is not allowed.", r.Text)
	require.Equal(t, hostexec.Remote, r.Origin)
	require.Empty(t, rem.Lines())
}

func TestFilesystem_LocalResolvesPath(t *testing.T) {
	f := newFixture(t)
	r := f.gw.Filesystem(context.Background(), "ls -la", "./logs")
	require.True(t, r.Success)
	require.Equal(t, hostexec.Local, r.Origin)
	require.Equal(t, "local ok\n", r.Text)
	require.Equal(t, [][]string{{"ls", "-la", "/abs/logs"}}, f.local.Calls())
	require.Equal(t, "/abs/logs", r.Target)
}

func TestFilesystem_DefaultPath(t *testing.T) {
	f := newFixture(t)
	f.gw.Filesystem(context.Background(), "du -sh", "")
	require.Equal(t, [][]string{{"du", "-sh", "/abs/."}}, f.local.Calls())
}

func TestFilesystem_ConnectedRoutesRemoteOnly(t *testing.T) {
	f := newFixture(t)
	rem := f.connect(t)

	r := f.gw.Filesystem(context.Background(), "ls", "/tmp")
	require.True(t, r.Success)
	require.Equal(t, hostexec.Remote, r.Origin)
	require.Equal(t, []string{"ls /tmp"}, rem.Lines())
	require.Empty(t, f.local.Calls())
}

func TestFilesystem_LocalFailure(t *testing.T) {
	f := newFixture(t)
	f.local.reply = func([]string) hostexec.Result {
		return hostexec.Failed(hostexec.Local, []byte("cat: /abs/x: No such file or directory\n"), errors.New("exit status 1"))
	}
	r := f.gw.Filesystem(context.Background(), "cat", "x")
	require.False(t, r.Success)
	require.Equal(t, "Error running command: cat: /abs/x: No such file or directory", r.Text)
}

func TestRunRemote_NoSession(t *testing.T) {
	f := newFixture(t)
	r := f.gw.RunRemote(context.Background(), "uptime")
	require.False(t, r.Success)
	require.ErrorIs(t, r.Err, session.ErrNoSession)
	require.Equal(t, "No active SSH session. Use connect_ssh first.", r.Text)
	require.Empty(t, f.local.Calls())
	require.Empty(t, f.conn.Created())
}

func TestRunRemote_Connected(t *testing.T) {
	f := newFixture(t)
	rem := f.connect(t)
	rem.Reply = func(line string) hostexec.Result {
		return hostexec.Succeeded(hostexec.Remote, []byte("up 1 day\n"))
	}
	r := f.gw.RunRemote(context.Background(), "uptime | tail -1")
	require.True(t, r.Success)
	require.Equal(t, "up 1 day\n", r.Text)
	require.Equal(t, []string{"uptime | tail -1"}, rem.Lines())

	rem.Reply = func(line string) hostexec.Result {
		return hostexec.Failed(hostexec.Remote, []byte("bad\n"), errors.New("exit 2"))
	}
	r = f.gw.RunRemote(context.Background(), "false")
	require.False(t, r.Success)
	require.Equal(t, "Error running remote command: bad", r.Text)
}

func TestPing(t *testing.T) {
	t.Run("local online", func(t *testing.T) {
		f := newFixture(t)
		r := f.gw.Ping(context.Background(), "10.0.0.1")
		require.True(t, r.Success)
		require.Equal(t, [][]string{{"ping", "-c", "4", "10.0.0.1"}}, f.local.Calls())
		require.Equal(t, "Server: 10.0.0.1\nOrigin: local\nStatus: Online\nlocal ok\n", r.Text)
	})

	t.Run("windows count flag", func(t *testing.T) {
		f := newFixture(t)
		f.gw.goos = "windows"
		f.gw.Ping(context.Background(), "10.0.0.1")
		require.Equal(t, [][]string{{"ping", "-n", "4", "10.0.0.1"}}, f.local.Calls())
	})

	t.Run("local offline", func(t *testing.T) {
		f := newFixture(t)
		f.local.reply = func([]string) hostexec.Result {
			return hostexec.Failed(hostexec.Local, []byte("ping: unknown host nowhere.invalid\n"), errors.New("exit status 2"))
		}
		r := f.gw.Ping(context.Background(), "nowhere.invalid")
		require.False(t, r.Success)
		require.Equal(t, "Server: nowhere.invalid\nOrigin: local\nStatus: Offline\nError: ping: unknown host nowhere.invalid", r.Text)
	})

	t.Run("remote", func(t *testing.T) {
		f := newFixture(t)
		rem := f.connect(t)
		r := f.gw.Ping(context.Background(), "db")
		require.True(t, r.Success)
		require.Equal(t, []string{"ping -c 4 db"}, rem.Lines())
		require.Empty(t, f.local.Calls())
		require.True(t, strings.HasPrefix(r.Text, "Server: db\nOrigin: remote\nStatus: Online\n"))
	})
}

func TestListServices(t *testing.T) {
	t.Run("local systemctl", func(t *testing.T) {
		f := newFixture(t)
		f.gw.ListServices(context.Background())
		require.Equal(t, [][]string{serviceListing}, f.local.Calls())
	})

	t.Run("local without systemctl falls back to ps", func(t *testing.T) {
		f := newFixture(t)
		f.gw.lookPath = func(string) (string, error) { return "", errors.New("not found") }
		r := f.gw.ListServices(context.Background())
		require.True(t, r.Success)
		require.Equal(t, [][]string{{"ps", "aux"}}, f.local.Calls())
	})

	t.Run("remote", func(t *testing.T) {
		f := newFixture(t)
		rem := f.connect(t)
		f.gw.ListServices(context.Background())
		require.Equal(t, []string{"systemctl list-units --type=service --state=running"}, rem.Lines())
		require.Empty(t, f.local.Calls())
	})

	t.Run("error text", func(t *testing.T) {
		f := newFixture(t)
		f.local.reply = func([]string) hostexec.Result {
			return hostexec.Failed(hostexec.Local, []byte("Failed to connect to bus\n"), errors.New("exit status 1"))
		}
		r := f.gw.ListServices(context.Background())
		require.Equal(t, "Error listing services: Failed to connect to bus", r.Text)
	})
}

func TestConnectDisconnectDisconnect(t *testing.T) {
	f := newFixture(t)
	r := f.gw.Connect(context.Background(), "web1")
	require.True(t, r.Success)
	require.Equal(t, "SSH connection to web1:22 established successfully.", r.Text)

	r = f.gw.Disconnect(context.Background())
	require.True(t, r.Success)
	require.Equal(t, "SSH session to web1:22 closed.", r.Text)

	r = f.gw.Disconnect(context.Background())
	require.True(t, r.Success)
	require.Equal(t, "No SSH session to disconnect.", r.Text)
	require.False(t, f.reg.Connected())
}

func TestDeadSessionFallsBackToLocal(t *testing.T) {
	f := newFixture(t)
	rem := f.connect(t)
	rem.Kill()

	r := f.gw.Filesystem(context.Background(), "ls", "/tmp")
	require.Equal(t, hostexec.Local, r.Origin)
	require.Len(t, f.local.Calls(), 1)
	require.Empty(t, rem.Lines())
}

func TestOperationsAreRecorded(t *testing.T) {
	f := newFixture(t)
	f.gw.Filesystem(context.Background(), "rm -rf", "/")
	f.gw.Ping(context.Background(), "h")

	require.Len(t, f.rec.entries, 2)
	require.Equal(t, OpFilesystemCmd, f.rec.entries[0].Operation)
	require.False(t, f.rec.entries[0].Success)
	require.Equal(t, "Command 'rm' is not allowed.", f.rec.entries[0].Detail)
	require.Equal(t, OpPing, f.rec.entries[1].Operation)
	require.Equal(t, "local", f.rec.entries[1].Origin)
	require.True(t, f.rec.entries[1].Success)
}

// The tests below use a real SSH transport.

func newSSHGateway(t *testing.T, user, pass string, timeout time.Duration) (*Gateway, *fakeLocal) {
	t.Helper()
	d := &remote.Dialer{
		Credentials: remote.Credentials{Username: user, Password: pass},
		Timeout:     timeout,
	}
	local := &fakeLocal{}
	gw := New(session.NewRegistry(d, nil), Options{
		Local: local,
		Abs:   func(p string) (string, error) { return p, nil },
		GOOS:  "linux",
	})
	return gw, local
}

func TestSSH_WrongCredentialsThenLocalFallback(t *testing.T) {
	srv := remotetest.Start(t, "ops", "secret", nil)
	gw, local := newSSHGateway(t, "ops", "wrong", 2*time.Second)

	r := gw.Connect(context.Background(), srv.Addr)
	require.False(t, r.Success)
	require.Equal(t, remote.AuthRejected, remote.KindOf(r.Err))
	require.Contains(t, r.Text, "Failed to connect to "+srv.Addr)
	require.Contains(t, r.Text, "authentication rejected")
	require.False(t, gw.sessions.Connected())

	fs := gw.Filesystem(context.Background(), "ls", "/tmp")
	require.Equal(t, hostexec.Local, fs.Origin)
	require.Len(t, local.Calls(), 1)
	require.Empty(t, srv.Commands())
}

func TestSSH_ConnectedRoutesToServer(t *testing.T) {
	srv := remotetest.Start(t, "ops", "secret", func(cmd string) (string, uint32) {
		return "listing of " + cmd + "\n", 0
	})
	gw, local := newSSHGateway(t, "ops", "secret", 2*time.Second)

	r := gw.Connect(context.Background(), srv.Addr)
	require.True(t, r.Success, r.Text)

	fs := gw.Filesystem(context.Background(), "ls", "/tmp")
	require.True(t, fs.Success)
	require.Equal(t, "listing of ls /tmp\n", fs.Text)
	require.Empty(t, local.Calls())

	require.True(t, gw.Disconnect(context.Background()).Success)
	require.Equal(t, "No SSH session to disconnect.", gw.Disconnect(context.Background()).Text)
}

func TestSSH_HungTransportTimesOut(t *testing.T) {
	addr := remotetest.StartHung(t)
	gw, _ := newSSHGateway(t, "ops", "secret", 150*time.Millisecond)

	r := gw.Connect(context.Background(), addr)
	require.False(t, r.Success)
	require.Equal(t, remote.Timeout, remote.KindOf(r.Err))
	require.Contains(t, r.Text, "timed out")
	require.False(t, gw.sessions.Connected())
}

func TestSSH_DroppedConnectionFallsBackToLocal(t *testing.T) {
	srv := remotetest.Start(t, "ops", "secret", nil)
	gw, local := newSSHGateway(t, "ops", "secret", 2*time.Second)
	require.True(t, gw.Connect(context.Background(), srv.Addr).Success)

	srv.DropConnections()
	require.Eventually(t, func() bool { return !gw.sessions.Connected() }, 2*time.Second, 10*time.Millisecond)

	r := gw.Ping(context.Background(), "h")
	require.Equal(t, hostexec.Local, r.Origin)
	require.Len(t, local.Calls(), 1)
}
