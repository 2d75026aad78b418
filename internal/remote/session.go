package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/ssh"

	"github.com/simon/opsgate/internal/hostexec"
)

// ErrSessionClosed is returned for commands on a closed or dead session.
var ErrSessionClosed = errors.New("ssh session is closed")

// Session is one authenticated SSH connection. Every command runs on its own
// exec channel.
type Session struct {
	client *ssh.Client
	addr   string
	user   string
	log    *slog.Logger

	alive     atomic.Bool
	done      chan struct{} // closed once the transport has torn down
	closeOnce sync.Once
	closeErr  error
}

func newSession(client *ssh.Client, addr, user string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Session{
		client: client,
		addr:   addr,
		user:   user,
		log:    logger,
		done:   make(chan struct{}),
	}
	s.alive.Store(true)
	go func() {
		err := client.Wait()
		if s.alive.Swap(false) {
			s.log.Warn("ssh transport closed", "addr", addr, "err", err)
		}
		close(s.done)
	}()
	return s
}

func (s *Session) Origin() hostexec.Origin { return hostexec.Remote }

// Addr returns the host:port the session is connected to.
func (s *Session) Addr() string { return s.addr }

// User returns the authenticated principal.
func (s *Session) User() string { return s.user }

// Alive reports whether the session can still run commands.
func (s *Session) Alive() bool { return s.alive.Load() }

// Run quotes argv and runs it on the remote shell.
func (s *Session) Run(ctx context.Context, argv []string) hostexec.Result {
	return s.RunLine(ctx, hostexec.JoinArgs(argv))
}

// RunLine runs line on the remote host and returns combined output. A
// nonzero remote exit leaves the session usable; a transport failure marks
// it dead.
func (s *Session) RunLine(ctx context.Context, line string) hostexec.Result {
	if !s.Alive() {
		return hostexec.Failed(hostexec.Remote, nil, ErrSessionClosed)
	}

	ch, err := s.client.NewSession()
	if err != nil {
		s.invalidate(err)
		return hostexec.Failed(hostexec.Remote, nil, err)
	}
	defer ch.Close()

	type result struct {
		out []byte
		err error
	}
	resc := make(chan result, 1)
	go func() {
		out, err := ch.CombinedOutput(line)
		resc <- result{out, err}
	}()

	select {
	case r := <-resc:
		if r.err == nil {
			return hostexec.Succeeded(hostexec.Remote, r.out)
		}
		var ee *ssh.ExitError
		if !errors.As(r.err, &ee) {
			s.invalidate(r.err)
		}
		return hostexec.Failed(hostexec.Remote, r.out, r.err)
	case <-ctx.Done():
		_ = ch.Close()
		return hostexec.Failed(hostexec.Remote, nil, ctx.Err())
	}
}

func (s *Session) invalidate(err error) {
	if s.alive.Swap(false) {
		s.log.Warn("invalidating ssh session after transport error", "addr", s.addr, "err", err)
		_ = s.client.Close()
	}
}

// Close shuts the connection and waits for the transport to finish tearing
// down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.alive.Store(false)
		err := s.client.Close()
		if err != nil && !isClosedErr(err) {
			s.closeErr = err
		}
		<-s.done
	})
	return s.closeErr
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection")
}
