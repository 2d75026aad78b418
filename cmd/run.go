package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simon/opsgate/internal/gateway"
)

var runCmd = &cobra.Command{
	Use:   "run <command...>",
	Short: "Run a command on a remote host",
	Long:  "Runs the command on --host over SSH. There is no local fallback.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		command := strings.Join(args, " ")
		return withSession(cmd, host, func(ctx context.Context, gw *gateway.Gateway) gateway.Reply {
			return gw.RunRemote(ctx, command)
		})
	},
}

func init() {
	runCmd.Flags().StringP("host", "H", "", "SSH host to run on")
	rootCmd.AddCommand(runCmd)
}
