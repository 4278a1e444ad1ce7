package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/txxdx/devcamper-api/internal/app"
	"github.com/txxdx/devcamper-api/internal/config"
	"github.com/txxdx/devcamper-api/internal/logging"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.Port = port
		}
		log := logging.New(cfg.Env)

		ctx := cmd.Context()
		srv, err := app.New(ctx, cfg, config.LoadRateLimitConfig(), log)
		if err != nil {
			log.Error(ctx, "failed to start server", "err", err)
			return err
		}
		defer func() {
			if err := srv.Close(context.Background()); err != nil {
				log.Warn(context.Background(), "close resources", "err", err)
			}
		}()

		if err := srv.Run(ctx); err != nil {
			log.Error(ctx, "server error", "err", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "port to listen on (overrides APP_PORT)")
}
