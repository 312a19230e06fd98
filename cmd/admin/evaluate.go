package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/liamhowell4/budget-master-sub001/internal/app"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/evaluation"
	"github.com/liamhowell4/budget-master-sub001/internal/domain/recurring"
)

var (
	evalDate string
	evalUser string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run the recurring evaluation pass now",
	Long: `Reconciles active templates against the given date, creating pending
expenses and sending reminders exactly as the scheduled run does.

Examples:
  # Evaluate every user for today
  admin evaluate

  # Evaluate one user as of a specific date
  admin evaluate --user=abc123 --date=2026-03-01`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalDate, "date", "", "Evaluation date YYYY-MM-DD (default today in TIMEZONE)")
	evaluateCmd.Flags().StringVarP(&evalUser, "user", "u", "", "Only evaluate this user's templates")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(_ *cobra.Command, _ []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		date, err := parseDateFlag(evalDate, a)
		if err != nil {
			return err
		}

		var result *evaluation.Result
		if evalUser != "" {
			result, err = a.Evaluation.EvaluateUser(ctx, evalUser, date)
		} else {
			result, err = a.Evaluation.EvaluateAll(ctx, date)
		}
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}

		printResult(result)
		if len(result.Errors) > 0 {
			return fmt.Errorf("%d template(s) failed", len(result.Errors))
		}
		return nil
	})
}

func printResult(r *evaluation.Result) {
	fmt.Printf("Evaluated %d template(s) for %s\n", r.Evaluated, r.Date)
	for _, o := range []recurring.Outcome{
		recurring.OutcomeCreated,
		recurring.OutcomeAlreadyPending,
		recurring.OutcomeAlreadyHandled,
		recurring.OutcomeSkipped,
	} {
		if n := r.Outcomes[o]; n > 0 {
			fmt.Printf("  %-16s %d\n", o, n)
		}
	}

	if len(r.Created) > 0 {
		fmt.Println("\nCreated pending expenses:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tNAME\tAMOUNT\tDUE")
		for _, p := range r.Created {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", p.ID, p.Name, p.Amount.StringFixed(2), p.DueDate)
		}
		w.Flush()
	}

	for _, e := range r.Errors {
		retry := ""
		if e.Retryable {
			retry = " (retryable)"
		}
		fmt.Printf("  error: template %s: %s%s\n", e.TemplateID, e.Message, retry)
	}
}
