package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/liamhowell4/budget-master-sub001/internal/app"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/budget"
)

var statusMonth string

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List a user's recurring templates",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			templates, err := a.Recurring.ListTemplates(ctx, flagUser)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tNAME\tAMOUNT\tCATEGORY\tFREQUENCY\tACTIVE\tLAST REMINDED\tLAST ACTION")
			for _, t := range templates {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
					t.ID, t.Name, t.Amount.StringFixed(2), t.Category, t.Frequency, t.Active,
					dateOrDash(t.LastReminded), dateOrDash(t.LastUserAction))
			}
			return nil
		})
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List a user's pending expenses",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			pending, err := a.Recurring.ListPending(ctx, flagUser)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tNAME\tAMOUNT\tCATEGORY\tDUE")
			for _, p := range pending {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Amount.StringFixed(2), p.Category, p.DueDate)
			}
			return nil
		})
	},
}

var capsCmd = &cobra.Command{
	Use:   "caps",
	Short: "List a user's budget caps",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			caps, err := a.Tracker.ListCaps(ctx, flagUser)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "SCOPE\tAMOUNT")
			for _, c := range caps {
				fmt.Fprintf(w, "%s\t%s\n", c.Scope, c.Amount.StringFixed(2))
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show spending against each cap for a month",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			period := budget.PeriodOf(today(a))
			if statusMonth != "" {
				p, err := budget.ParsePeriod(statusMonth)
				if err != nil {
					return fmt.Errorf("invalid --month %q, want YYYY-MM", statusMonth)
				}
				period = p
			}

			statuses, err := a.Tracker.Status(ctx, flagUser, period)
			if err != nil {
				return err
			}
			fmt.Printf("Budget status for %s\n", period)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "SCOPE\tSPENT\tCAP\tPERCENT\tREMAINING\tLEVEL")
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s%%\t%s\t%d\n",
					s.Scope, s.Spent.StringFixed(2), s.Cap.StringFixed(2),
					s.Percentage.StringFixed(1), s.Remaining.StringFixed(2), s.Level)
			}
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{templatesCmd, pendingCmd, capsCmd, statusCmd} {
		requireUserFlag(cmd)
		rootCmd.AddCommand(cmd)
	}
	statusCmd.Flags().StringVar(&statusMonth, "month", "", "Month YYYY-MM (default current month)")
}

func dateOrDash(d *civil.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
