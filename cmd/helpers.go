package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/simon/opsgate/internal/config"
	"github.com/simon/opsgate/internal/gateway"
	"github.com/simon/opsgate/internal/remote"
	"github.com/simon/opsgate/internal/session"
	"github.com/simon/opsgate/internal/state"
)

// app is everything one invocation needs, built from configuration.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	dialer   *remote.Dialer
	sessions *session.Registry
	gw       *gateway.Gateway
	store    *state.Store
}

// loadConfig reads the config file and layers flag/env overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(overrides)
	return cfg, nil
}

// newLogger builds the process logger. Logs always go to stderr so stdout
// stays free for command output and the MCP transport.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	if strings.EqualFold(cfg.Format, "json") {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	}
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "opsgate",
	})
	return slog.New(handler), nil
}

// newApp wires config, logging, the session registry, history and the
// gateway. interactive allows prompting for a missing password.
func newApp(interactive bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	if interactive && cfg.SSH.Password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		cfg.SSH.Password = promptPassword(cfg.SSH.Username)
	}

	dialer := &remote.Dialer{
		Credentials: remote.Credentials{
			Username: cfg.SSH.Username,
			Password: cfg.SSH.Password,
		},
		Port:          cfg.SSH.Port,
		Timeout:       cfg.SSH.ConnectTimeout,
		KnownHosts:    cfg.SSH.KnownHosts,
		StrictHostKey: cfg.SSH.StrictHostKey,
		Logger:        logger,
	}
	sessions := session.NewRegistry(dialer, logger)

	rt := &app{cfg: cfg, log: logger, dialer: dialer, sessions: sessions}

	var recorder gateway.Recorder
	if !cfg.State.Disabled {
		store, err := openStore(cfg.State.Path)
		if err != nil {
			// History is best effort; operations still run without it.
			logger.Warn("execution history disabled", "err", err)
		} else {
			rt.store = store
			recorder = store
		}
	}

	rt.gw = gateway.New(sessions, gateway.Options{Recorder: recorder, Logger: logger})
	return rt, nil
}

func openStore(path string) (*state.Store, error) {
	if path == "" {
		p, err := state.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return state.Open(path)
}

// close tears down any open session and the history store.
func (rt *app) close() {
	if err := rt.sessions.Close(); err != nil {
		rt.log.Warn("close session", "err", err)
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
}

// withSession connects to host first when one is given, runs fn, and prints
// its reply. A failed connect is printed and fn still runs, falling back to
// local execution where the operation allows it.
func withSession(cmd *cobra.Command, host string, fn func(ctx context.Context, gw *gateway.Gateway) gateway.Reply) error {
	rt, err := newApp(host != "")
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	if host != "" {
		r := rt.gw.Connect(ctx, host)
		if !r.Success {
			fmt.Fprintln(cmd.ErrOrStderr(), r.Text)
		}
	}

	reply := fn(ctx, rt.gw)
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(reply.Text, "\n"))
	if !reply.Success {
		return errSilentFailure
	}
	return nil
}

func promptPassword(user string) string {
	fmt.Fprintf(os.Stderr, "SSH password for %s: ", user)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return ""
	}
	return string(pw)
}
