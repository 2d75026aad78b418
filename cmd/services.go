package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/simon/opsgate/internal/gateway"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List running services",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		return withSession(cmd, host, func(ctx context.Context, gw *gateway.Gateway) gateway.Reply {
			return gw.ListServices(ctx)
		})
	},
}

func init() {
	servicesCmd.Flags().StringP("host", "H", "", "List services on this SSH host")
	rootCmd.AddCommand(servicesCmd)
}
