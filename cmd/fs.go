package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simon/opsgate/internal/gateway"
	"github.com/simon/opsgate/internal/policy"
)

var fsCmd = &cobra.Command{
	Use:   "fs <command> [path]",
	Short: "Run an allowlisted filesystem command",
	Long: fmt.Sprintf("Runs one of %s against path (default \".\").\n"+
		"Quote the command when it carries flags, e.g. opsgate fs \"du -sh\" /var.",
		strings.Join(policy.Verbs(), ", ")),
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		path := "."
		if len(args) == 2 {
			path = args[1]
		}
		return withSession(cmd, host, func(ctx context.Context, gw *gateway.Gateway) gateway.Reply {
			return gw.Filesystem(ctx, args[0], path)
		})
	},
}

func init() {
	fsCmd.Flags().StringP("host", "H", "", "Run on this SSH host")
	rootCmd.AddCommand(fsCmd)
}
