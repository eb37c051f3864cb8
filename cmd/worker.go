package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/acuhire/internal/audit"
	"github.com/frahmantamala/acuhire/internal/core/events"
	"github.com/frahmantamala/acuhire/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background consumers",
	Long:  `Start consumers for events the HTTP server forwards to the message broker.`,
}

var auditWorkerCmd = &cobra.Command{
	Use:   "audit",
	Short: "Consume forwarded audit events",
	Long:  `Consume audit events from the broker queue and surface failed security events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startAuditWorker()
	},
}

func startAuditWorker() error {
	config, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !config.Broker.Enabled() {
		return fmt.Errorf("broker.url is not configured")
	}

	lg := logger.LoggerWrapper()
	conn, err := dialBroker(config.Broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}

	lg.Info("audit worker started", "queue", config.Broker.Queue)
	err = audit.Consume(ctx, ch, config.Broker.Queue, lg, func(_ context.Context, evt events.AuditRecordedEvent) error {
		attrs := []any{
			"entry_id", evt.EntryID,
			"action_type", evt.ActionType,
			"user_id", evt.UserID,
			"ip", evt.IPAddress,
			"status", evt.Status,
		}
		if evt.ActionType == string(audit.ActionSecurityEvent) && evt.Status == audit.StatusFailure {
			lg.Warn("security event", attrs...)
			return nil
		}
		lg.Info("audit event", attrs...)
		return nil
	})
	lg.Info("audit worker stopped")
	return err
}

func init() {
	workerCmd.AddCommand(auditWorkerCmd)
	rootCmd.AddCommand(workerCmd)
}
