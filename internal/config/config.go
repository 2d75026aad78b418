package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. OPSGATE_SSH_PASSWORD.
const EnvPrefix = "OPSGATE"

type SSHConfig struct {
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Port           int           `yaml:"port"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	KnownHosts     string        `yaml:"known_hosts"`
	StrictHostKey  bool          `yaml:"strict_host_key"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type StateConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

type Config struct {
	SSH   SSHConfig   `yaml:"ssh"`
	Log   LogConfig   `yaml:"log"`
	State StateConfig `yaml:"state"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		SSH: SSHConfig{
			Port:           22,
			ConnectTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath returns ~/.config/opsgate/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "opsgate", "config.yaml")
	}
	return filepath.Join(home, ".config", "opsgate", "config.yaml")
}

// Load reads the config at path, or DefaultPath when path is empty.
// Returns the defaults if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// ApplyOverrides copies any value set in v (flags or OPSGATE_* env vars) over
// the file configuration. Keys use dotted names such as "ssh.password".
func (c *Config) ApplyOverrides(v *viper.Viper) {
	if s := v.GetString("ssh.username"); s != "" {
		c.SSH.Username = s
	}
	if s := v.GetString("ssh.password"); s != "" {
		c.SSH.Password = s
	}
	if p := v.GetInt("ssh.port"); p > 0 {
		c.SSH.Port = p
	}
	if d := v.GetDuration("ssh.connect_timeout"); d > 0 {
		c.SSH.ConnectTimeout = d
	}
	if s := v.GetString("ssh.known_hosts"); s != "" {
		c.SSH.KnownHosts = s
	}
	if v.IsSet("ssh.strict_host_key") {
		c.SSH.StrictHostKey = v.GetBool("ssh.strict_host_key")
	}
	if s := v.GetString("log.level"); s != "" {
		c.Log.Level = s
	}
	if s := v.GetString("log.format"); s != "" {
		c.Log.Format = s
	}
	if s := v.GetString("state.path"); s != "" {
		c.State.Path = s
	}
	if v.IsSet("state.disabled") {
		c.State.Disabled = v.GetBool("state.disabled")
	}
	c.normalize()
}

// NewViper returns a viper instance reading OPSGATE_* environment variables
// for every key ApplyOverrides understands.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{
		"ssh.username", "ssh.password", "ssh.port", "ssh.connect_timeout",
		"ssh.known_hosts", "ssh.strict_host_key",
		"log.level", "log.format",
		"state.path", "state.disabled",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

func (c *Config) normalize() {
	if c.SSH.Port == 0 {
		c.SSH.Port = 22
	}
	if c.SSH.ConnectTimeout <= 0 {
		c.SSH.ConnectTimeout = 10 * time.Second
	}
	if c.SSH.KnownHosts == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.SSH.KnownHosts = filepath.Join(home, ".ssh", "known_hosts")
		}
	}
	c.SSH.KnownHosts = expandHome(c.SSH.KnownHosts)
	c.State.Path = expandHome(c.State.Path)
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
