package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"meurenda/internal/cli"
	"meurenda/internal/core"
	"meurenda/internal/services"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the dashboard of an account",
		Long: `Print the period statistics, the daily series and the goal projections
of one account, computed exactly as the API does.`,
		Example: `  meurenda report --email ana@example.com --period week
  meurenda report --email ana@example.com --period custom --from 2024-06-01 --to 2024-06-15`,
		RunE: runReport,
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("period", "month", "today, week, month or custom")
	cmd.Flags().String("from", "", "first day of a custom period (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last day of a custom period (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	email, _ := cmd.Flags().GetString("email")
	period, _ := cmd.Flags().GetString("period")
	fromFlag, _ := cmd.Flags().GetString("from")
	toFlag, _ := cmd.Flags().GetString("to")

	cal := cfg.Calendar()
	preset, err := core.ParsePreset(period)
	if err != nil {
		return err
	}
	var from, to time.Time
	if preset == core.PresetCustom {
		if from, err = time.ParseInLocation(time.DateOnly, fromFlag, cal.Location); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		if to, err = time.ParseInLocation(time.DateOnly, toFlag, cal.Location); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	res, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer res.Close()

	u, err := res.Store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("find user %s: %w", email, err)
	}

	dash := services.NewDashboardService(res.Store, res.Store, cal)
	daily, err := dash.DailyReport(ctx, u.ID, preset, from, to)
	if err != nil {
		return err
	}
	projections, err := dash.Projections(ctx, u.ID)
	if err != nil {
		return err
	}

	return printReport(cmd.OutOrStdout(), u.Email, daily, projections)
}

func printReport(out io.Writer, email string, rep services.DailyReport, projections []core.Projection) error {
	last := rep.Window.End.Add(-time.Nanosecond)
	fmt.Fprintf(out, "%s, %s %s to %s\n\n", email, rep.Preset,
		rep.Window.Start.Format(time.DateOnly), last.Format(time.DateOnly))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Day\tRevenue\tExpenses\tProfit\tMargin\t")
	for _, d := range rep.Days {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", d.Key,
			d.Stats.Revenue, d.Stats.Expenses, d.Stats.Profit, percent(d.Stats.Margin))
	}
	t := rep.Totals
	fmt.Fprintf(w, "Total\t%s\t%s\t%s\t%s\t\n", t.Revenue, t.Expenses, t.Profit, percent(t.Margin))
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nInvestments: %s\n", t.Investments)
	for _, c := range t.ExpenseByCategory {
		fmt.Fprintf(out, "  %s: %s\n", c.Name, c.Amount)
	}

	if len(projections) == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nGoals")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Horizon\tTarget\tProgress\tRemaining\tDays\tProfit/day\tRevenue/day\t")
	for _, p := range projections {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.2f\t%.2f\t\n",
			p.Goal.Horizon, p.Goal.Target, percent(p.ProgressPercent/100), p.Remaining,
			p.EffectiveDays, p.DailyProfitNeeded, p.DailyRevenueNeeded)
	}
	return w.Flush()
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}
