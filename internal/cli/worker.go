package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/txxdx/devcamper-api/internal/config"
	"github.com/txxdx/devcamper-api/internal/logging"
	"github.com/txxdx/devcamper-api/internal/mail"
	"github.com/txxdx/devcamper-api/internal/queue"
)

// workerCmd consumes queued password reset requests and mails them.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Delivers queued password reset emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logging.New(cfg.Env).With("component", "reset-worker")

		c := &queue.Consumer{
			URL:         cfg.RabbitURL,
			Queue:       cfg.ResetQueue,
			Notifier:    mail.ResetNotifier{Mailer: mail.FromConfig(cfg.SMTP, log)},
			Log:         log,
			SendTimeout: 10 * time.Second,
		}
		log.Info(cmd.Context(), "worker started", "queue", cfg.ResetQueue)
		if err := c.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info(context.Background(), "worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
