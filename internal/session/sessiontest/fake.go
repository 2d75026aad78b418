// Package sessiontest provides in-memory session.Remote fakes for tests.
package sessiontest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/simon/opsgate/internal/hostexec"
	"github.com/simon/opsgate/internal/session"
)

// Remote is a scripted session.Remote that records every call.
type Remote struct {
	Address string
	// Reply, when set, produces the result for each command line.
	Reply func(line string) hostexec.Result

	mu     sync.Mutex
	lines  []string
	dead   atomic.Bool
	closed atomic.Int32
}

var _ session.Remote = (*Remote)(nil)

func (r *Remote) Origin() hostexec.Origin { return hostexec.Remote }

func (r *Remote) Run(ctx context.Context, argv []string) hostexec.Result {
	return r.RunLine(ctx, hostexec.JoinArgs(argv))
}

func (r *Remote) RunLine(_ context.Context, line string) hostexec.Result {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
	if r.Reply != nil {
		return r.Reply(line)
	}
	return hostexec.Succeeded(hostexec.Remote, []byte("ok\n"))
}

func (r *Remote) Addr() string { return r.Address }

func (r *Remote) Alive() bool { return !r.dead.Load() && r.closed.Load() == 0 }

func (r *Remote) Close() error {
	r.closed.Add(1)
	return nil
}

// Kill simulates the transport dropping.
func (r *Remote) Kill() { r.dead.Store(true) }

// Closed reports how many times Close was called.
func (r *Remote) Closed() int { return int(r.closed.Load()) }

// Lines returns the command lines run so far.
func (r *Remote) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Connector hands out fresh Remotes, or Err when set.
type Connector struct {
	Err   error
	Reply func(line string) hostexec.Result
	// Hook runs inside Connect before the result is returned.
	Hook func(ctx context.Context, host string)

	mu      sync.Mutex
	created []*Remote
}

func (c *Connector) Connect(ctx context.Context, host string) (session.Remote, error) {
	if c.Hook != nil {
		c.Hook(ctx, host)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	r := &Remote{Address: host + ":22", Reply: c.Reply}
	c.mu.Lock()
	c.created = append(c.created, r)
	c.mu.Unlock()
	return r, nil
}

// Created returns every Remote handed out so far.
func (c *Connector) Created() []*Remote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Remote(nil), c.created...)
}
