// Package session holds the process-wide slot for the one active remote
// session.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/simon/opsgate/internal/hostexec"
)

// ErrNoSession is returned when an operation needs a connected session.
var ErrNoSession = errors.New("no active SSH session")

// Remote is an authenticated remote execution channel.
type Remote interface {
	hostexec.Executor
	// RunLine runs a raw command line on the remote shell.
	RunLine(ctx context.Context, line string) hostexec.Result
	Addr() string
	Alive() bool
	Close() error
}

// Connector opens a new Remote for host. Credentials are bound into the
// connector, never passed per call.
type Connector interface {
	Connect(ctx context.Context, host string) (Remote, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, host string) (Remote, error)

func (f ConnectorFunc) Connect(ctx context.Context, host string) (Remote, error) {
	return f(ctx, host)
}

// Registry owns at most one Remote at a time.
//
// Writers (Connect, Disconnect) are serialized by writeMu and may block on
// network I/O while holding it. Readers only take mu, so routing decisions
// never wait on a connect in flight; they see an empty slot instead.
type Registry struct {
	connector Connector
	log       *slog.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	current Remote
}

// NewRegistry returns an empty registry that dials through connector.
func NewRegistry(connector Connector, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{connector: connector, log: logger}
}

// Connect discards any existing session and then dials host. On failure the
// registry is left empty.
func (r *Registry) Connect(ctx context.Context, host string) (Remote, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if old := r.swap(nil); old != nil {
		r.log.Info("closing previous session before reconnect", "addr", old.Addr())
		if err := old.Close(); err != nil {
			r.log.Warn("close previous session", "addr", old.Addr(), "err", err)
		}
	}

	rem, err := r.connector.Connect(ctx, host)
	if err != nil {
		r.log.Warn("connect failed", "host", host, "err", err)
		return nil, err
	}

	r.swap(rem)
	r.log.Info("session established", "addr", rem.Addr())
	return rem, nil
}

// Disconnect closes and clears the current session. The returned bool is
// false when there was nothing to disconnect.
func (r *Registry) Disconnect() (string, bool, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.swap(nil)
	if old == nil {
		return "", false, nil
	}
	addr := old.Addr()
	if err := old.Close(); err != nil {
		r.log.Warn("disconnect", "addr", addr, "err", err)
		return addr, true, err
	}
	r.log.Info("session closed", "addr", addr)
	return addr, true, nil
}

// Current returns the live session, or nil. A session whose transport has
// died is pruned from the slot and closed.
func (r *Registry) Current() Remote {
	r.mu.RLock()
	cur := r.current
	r.mu.RUnlock()

	if cur == nil || cur.Alive() {
		return cur
	}

	r.mu.Lock()
	pruned := r.current == cur
	if pruned {
		r.current = nil
	}
	r.mu.Unlock()
	if pruned {
		r.log.Warn("dropping dead session", "addr", cur.Addr())
		_ = cur.Close()
	}
	return nil
}

// Connected reports whether a live session is held.
func (r *Registry) Connected() bool {
	return r.Current() != nil
}

// Close tears down any held session. Used on shutdown.
func (r *Registry) Close() error {
	_, _, err := r.Disconnect()
	return err
}

func (r *Registry) swap(next Remote) Remote {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.current
	r.current = next
	return prev
}
