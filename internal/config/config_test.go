package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, 22, cfg.SSH.Port)
	require.Equal(t, 10*time.Second, cfg.SSH.ConnectTimeout)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ssh:
  username: deploy
  password: hunter2
  port: 2222
  connect_timeout: 3s
  known_hosts: ~/.ssh/hosts
  strict_host_key: true
log:
  level: debug
  format: json
state:
  path: ~/state.db
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "deploy", cfg.SSH.Username)
	require.Equal(t, "hunter2", cfg.SSH.Password)
	require.Equal(t, 2222, cfg.SSH.Port)
	require.Equal(t, 3*time.Second, cfg.SSH.ConnectTimeout)
	require.Equal(t, filepath.Join(home, ".ssh", "hosts"), cfg.SSH.KnownHosts)
	require.True(t, cfg.SSH.StrictHostKey)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, filepath.Join(home, "state.db"), cfg.State.Path)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ssh: [unclosed"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
}

func TestApplyOverrides_Env(t *testing.T) {
	t.Setenv("OPSGATE_SSH_USERNAME", "envuser")
	t.Setenv("OPSGATE_SSH_PASSWORD", "envpass")
	t.Setenv("OPSGATE_SSH_PORT", "2200")
	t.Setenv("OPSGATE_SSH_CONNECT_TIMEOUT", "4s")
	t.Setenv("OPSGATE_STATE_DISABLED", "true")

	cfg := Default()
	cfg.SSH.Username = "fileuser"
	cfg.ApplyOverrides(NewViper())

	require.Equal(t, "envuser", cfg.SSH.Username)
	require.Equal(t, "envpass", cfg.SSH.Password)
	require.Equal(t, 2200, cfg.SSH.Port)
	require.Equal(t, 4*time.Second, cfg.SSH.ConnectTimeout)
	require.True(t, cfg.State.Disabled)
}

func TestApplyOverrides_UnsetKeepsFile(t *testing.T) {
	cfg := Default()
	cfg.SSH.Username = "fileuser"
	cfg.SSH.StrictHostKey = true
	cfg.ApplyOverrides(NewViper())
	require.Equal(t, "fileuser", cfg.SSH.Username)
	require.True(t, cfg.SSH.StrictHostKey)
}
