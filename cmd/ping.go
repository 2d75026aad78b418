package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/simon/opsgate/internal/gateway"
)

var pingCmd = &cobra.Command{
	Use:   "ping <address>",
	Short: "Check whether a server answers ping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		return withSession(cmd, host, func(ctx context.Context, gw *gateway.Gateway) gateway.Reply {
			return gw.Ping(ctx, args[0])
		})
	},
}

func init() {
	pingCmd.Flags().StringP("host", "H", "", "Probe from this SSH host instead of locally")
	rootCmd.AddCommand(pingCmd)
}
