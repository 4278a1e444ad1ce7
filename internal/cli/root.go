// Package cli holds the cobra commands of the devcamper binary.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/txxdx/devcamper-api/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "devcamper",
	Short: "DevCamper authentication API",
	Long: `DevCamper authentication API. Usage:

	devcamper serve
	devcamper migrate up
	devcamper worker
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadEnvFiles()
	},
}

// Execute runs the root command until it returns or SIGINT/SIGTERM arrives.
// It returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
