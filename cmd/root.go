package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/simon/opsgate/internal/config"
)

func SetVersionInfo(version, commit string) {
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
}

// overrides collects flag and OPSGATE_* env values layered over the config file.
var overrides = config.NewViper()

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "opsgate",
	Short: "Run operational commands locally or over one managed SSH session",
	Long: "opsgate exposes ping, service listing, safe filesystem inspection and remote command " +
		"execution. Commands run on the connected SSH host when a session is open and on " +
		"the local machine otherwise.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// errSilentFailure marks a command that already printed its failure.
var errSilentFailure = errors.New("operation failed")

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errSilentFailure) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "Config file (default ~/.config/opsgate/config.yaml)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.String("ssh-user", "", "SSH username (or OPSGATE_SSH_USERNAME)")
	pf.Int("ssh-port", 0, "SSH port used when the host has none (default 22)")
	pf.Duration("connect-timeout", 0, "SSH connect timeout (default 10s)")
	pf.Bool("strict-host-key", false, "Verify host keys against known_hosts")
	pf.String("known-hosts", "", "Path to known_hosts (default ~/.ssh/known_hosts)")
	pf.String("state-path", "", "Execution history database path")
	pf.Bool("no-state", false, "Do not record execution history")

	// The password is only read from the config file or OPSGATE_SSH_PASSWORD,
	// never from a flag, so it does not show up in process listings.
	for key, flag := range map[string]string{
		"log.level":           "log-level",
		"log.format":          "log-format",
		"ssh.username":        "ssh-user",
		"ssh.port":            "ssh-port",
		"ssh.connect_timeout": "connect-timeout",
		"ssh.strict_host_key": "strict-host-key",
		"ssh.known_hosts":     "known-hosts",
		"state.path":          "state-path",
		"state.disabled":      "no-state",
	} {
		_ = overrides.BindPFlag(key, pf.Lookup(flag))
	}
}
