package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liamhowell4/budget-master-sub001/internal/app"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/notification"
)

var (
	broadcastTitle    string
	broadcastBody     string
	broadcastCategory string
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Push a notification to every registered device",
	Long: `Sends one push notification to all active device tokens, ignoring
per-user preferences.

Example:
  admin broadcast --title="Maintenance" --body="Sync pauses tonight at 2am"`,
	RunE: runBroadcast,
}

func init() {
	broadcastCmd.Flags().StringVar(&broadcastTitle, "title", "", "Notification title")
	broadcastCmd.Flags().StringVar(&broadcastBody, "body", "", "Notification body")
	broadcastCmd.Flags().StringVar(&broadcastCategory, "category", notification.CategoryGeneral, "Preference category (budgets, recurring, general)")
	_ = broadcastCmd.MarkFlagRequired("title")
	_ = broadcastCmd.MarkFlagRequired("body")
	rootCmd.AddCommand(broadcastCmd)
}

func runBroadcast(_ *cobra.Command, _ []string) error {
	if !notification.IsValidCategory(broadcastCategory) {
		return fmt.Errorf("invalid --category %q", broadcastCategory)
	}
	return withApp(func(ctx context.Context, a *app.App) error {
		sent, err := a.Notifications.SendToAll(ctx, broadcastTitle, broadcastBody, broadcastCategory, nil)
		if err != nil {
			return fmt.Errorf("broadcast failed: %w", err)
		}
		fmt.Printf("Sent to %d device(s)\n", sent)
		return nil
	})
}
