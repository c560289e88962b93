package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stemfetch/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(cfg.Notifications.Webhooks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No webhooks configured")
				return nil
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			svc := notifications.NewService(cfg, logger)
			if err := svc.TestNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Delivered test notification to %d webhook(s)\n", len(cfg.Notifications.Webhooks))
			return nil
		},
	}
}
