package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/simon/opsgate/internal/session"
)

// DefaultTimeout bounds a connect attempt when none is configured.
const DefaultTimeout = 10 * time.Second

// Credentials authenticate every session opened by a Dialer.
type Credentials struct {
	Username string
	Password string
}

// Dialer opens Sessions with a fixed set of credentials.
type Dialer struct {
	Credentials Credentials
	Port        int
	Timeout     time.Duration
	// KnownHosts enables strict host key checking when StrictHostKey is set.
	KnownHosts    string
	StrictHostKey bool
	Logger        *slog.Logger

	// DialContext overrides the TCP dial, mainly for tests.
	DialContext func(ctx context.Context, network, addr string) (net.Conn, error)
}

// Address resolves host to host:port, keeping an explicit port in host.
func (d *Dialer) Address(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	port := d.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (d *Dialer) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

func (d *Dialer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if !d.StrictHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if _, err := os.Stat(d.KnownHosts); err != nil {
		return nil, fmt.Errorf("known_hosts file not found at %s and strict host key checking is enabled", d.KnownHosts)
	}
	cb, err := knownhosts.New(d.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("known_hosts: %w", err)
	}
	return cb, nil
}

// Dial authenticates to host within the configured timeout. Any failure is a
// *ConnectError and leaves no connection behind.
func (d *Dialer) Dial(ctx context.Context, host string) (*Session, error) {
	addr := d.Address(host)
	fail := func(kind Kind, err error) (*Session, error) {
		return nil, &ConnectError{Kind: kind, Addr: addr, Err: err}
	}

	hostKeyCB, err := d.hostKeyCallback()
	if err != nil {
		return fail(Unexpected, err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	dial := d.DialContext
	if dial == nil {
		var nd net.Dialer
		dial = nd.DialContext
	}
	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		return fail(classify(ctx, false, err), err)
	}

	// The handshake has no context of its own; expire the conn when ctx ends.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })

	cfg := &ssh.ClientConfig{
		User:            d.Credentials.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(d.Credentials.Password)},
		HostKeyCallback: hostKeyCB,
		Timeout:         d.timeout(),
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if !stop() || err != nil {
		_ = conn.Close()
		if err == nil {
			err = ctx.Err()
		}
		return fail(classify(ctx, true, err), err)
	}
	_ = conn.SetDeadline(time.Time{})

	s := newSession(ssh.NewClient(c, chans, reqs), addr, d.Credentials.Username, d.Logger)
	return s, nil
}

// Connect implements session.Connector.
func (d *Dialer) Connect(ctx context.Context, host string) (session.Remote, error) {
	s, err := d.Dial(ctx, host)
	if err != nil {
		return nil, err
	}
	return s, nil
}
