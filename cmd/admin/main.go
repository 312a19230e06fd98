package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/liamhowell4/budget-master-sub001/internal/app"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/config"
)

var (
	flagTimeout time.Duration
	flagUser    string
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Budget Master admin CLI",
	Long: `Management commands for the Budget Master API.

Reads the same environment (and .env file) as the API server, so it talks
to the same store backend. The in-memory backend starts empty on every run.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 5*time.Minute, "Timeout for the operation (e.g., 30s, 5m)")
}

// requireUserFlag registers --user on cmd and marks it required.
func requireUserFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagUser, "user", "u", "", "User ID")
	_ = cmd.MarkFlagRequired("user")
}

// withApp loads config, builds the services and runs fn under the timeout.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// today is the current date in the configured budget timezone.
func today(a *app.App) civil.Date {
	return civil.DateOf(time.Now().In(a.Config.Budget.Location))
}

// parseDateFlag returns the --date value, or today when it is empty.
func parseDateFlag(raw string, a *app.App) (civil.Date, error) {
	if raw == "" {
		return today(a), nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid --date %q, want YYYY-MM-DD", raw)
	}
	return d, nil
}
