package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/fnopart/internal/analysis/participant"
	"github.com/seenimoa/fnopart/internal/pipeline"
	"github.com/seenimoa/fnopart/pkg/models"
	"github.com/seenimoa/fnopart/pkg/utils"
)

// --- Compute Command ---

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Fetch NSE archives and compute participant OI signals",
	Long: `Fetch the participant OI CSV for the current date and the FII derivatives
statistics for both dates, then print category OI, per-instrument metrics and
signals. Dates default to the current and previous working days (IST).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		currentFlag, _ := cmd.Flags().GetString("current")
		previousFlag, _ := cmd.Flags().GetString("previous")
		current, previous, err := resolveDates(utils.NowIST(), currentFlag, previousFlag)
		if err != nil {
			return err
		}
		var variant participant.Variant
		if v, _ := cmd.Flags().GetString("variant"); v != "" {
			if variant, err = participant.ParseVariant(v); err != nil {
				return err
			}
		}
		showTables, _ := cmd.Flags().GetBool("tables")

		app, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "⚠️ ", models.Disclaimer)
		fmt.Fprintf(out, "📅 Selected period: %s to %s\n", utils.FormatDateIST(previous), utils.FormatDateIST(current))
		printHolidayWarnings(previous, current)

		app.service.Subscribe(pipeline.ObserverFunc(func(e pipeline.Event) {
			switch e.Stage {
			case pipeline.StageFetching, pipeline.StageAnalyzing:
				fmt.Fprintf(out, "   %s\n", e.Label)
			case pipeline.StageComplete:
				fmt.Fprintf(out, "✅ %s\n", e.Label)
			case pipeline.StageFailed:
				fmt.Fprintf(out, "❌ %s\n", e.Label)
			}
		}))

		report, err := app.service.Compute(cmd.Context(), pipeline.Request{
			Previous: previous,
			Current:  current,
			Variant:  variant,
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(out)
		if showTables {
			printTables(out, report)
		}
		printReport(out, report)
		return nil
	},
}

func init() {
	computeCmd.Flags().String("current", "", "current date (YYYY-MM-DD, default current working day)")
	computeCmd.Flags().String("previous", "", "previous date (YYYY-MM-DD, default working day before current)")
	computeCmd.Flags().String("variant", "", "signal rule: value_weighted or oi_only (default from config)")
	computeCmd.Flags().Bool("tables", false, "also print the cleaned participant and FII tables")
}

// resolveDates applies the --current and --previous flags over the defaults
// for now. Without --previous the previous date is the working day before
// current.
func resolveDates(now time.Time, currentFlag, previousFlag string) (current, previous time.Time, err error) {
	current, previous = utils.ResolveDefaultDates(now)
	if currentFlag != "" {
		if current, err = utils.ParseDateIST(currentFlag); err != nil {
			return current, previous, fmt.Errorf("--current must be YYYY-MM-DD: %w", err)
		}
		previous = utils.PreviousWorkingDay(current)
	}
	if previousFlag != "" {
		if previous, err = utils.ParseDateIST(previousFlag); err != nil {
			return current, previous, fmt.Errorf("--previous must be YYYY-MM-DD: %w", err)
		}
	}
	return current, previous, nil
}

func printHolidayWarnings(dates ...time.Time) {
	for _, d := range dates {
		if name := utils.HolidayName(d); name != "" {
			fmt.Fprintf(os.Stderr, "⚠️  %s is an NSE holiday (%s); archives may be missing\n", utils.FormatDateIST(d), name)
		}
	}
}

func printReport(w io.Writer, r *models.Report) {
	rule := strings.Repeat("─", 88)

	fmt.Fprintf(w, "📊 Participant OI by category (%s)\n", utils.FormatDateIST(r.CurrentDate))
	for _, c := range models.Categories {
		fmt.Fprintf(w, "   %-16s %14s\n", c, utils.FormatContracts(r.CategoryOI[c]))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "🎯 Signals (%s rule", r.Variant)
	if r.FromCache {
		fmt.Fprint(w, ", cached data")
	}
	fmt.Fprintln(w, ")")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-24s %14s %14s %14s %9s  %s\n", "Instrument", "Participant OI", "Curr FII OI", "Prev FII OI", "Change", "Signal")
	fmt.Fprintln(w, rule)
	for _, s := range r.Signals {
		fmt.Fprintf(w, "%-24s %14s %14s %14s %9s  %s\n",
			s.Instrument,
			utils.FormatContracts(s.ParticipantOI),
			utils.FormatContracts(s.CurrentFIIOI),
			utils.FormatContracts(s.PreviousFIIOI),
			oiChange(s.CurrentFIIOI, s.PreviousFIIOI),
			directionBadge(s.Direction))
		fmt.Fprintf(w, "    %s\n", s.Explanation)
	}
	fmt.Fprintln(w, rule)

	summary := participant.Summary(r.Signals)
	fmt.Fprintf(w, "   LONG %d · SHORT %d · NEUTRAL %d\n",
		summary[models.Long], summary[models.Short], summary[models.Neutral])
	for _, name := range []string{pipeline.TableParticipant, pipeline.TableFIICurrent, pipeline.TableFIIPrevious} {
		if n := r.DroppedRows[name]; n > 0 {
			fmt.Fprintf(w, "   (%d rows dropped from %s)\n", n, name)
		}
	}
}

// oiChange is the day-over-day change in FII OI, or "-" without a base.
func oiChange(curr, prev float64) string {
	if prev == 0 {
		return "-"
	}
	return utils.FormatPct((curr - prev) / prev * 100)
}

func directionBadge(d models.Direction) string {
	switch d {
	case models.Long:
		return "🟢 LONG"
	case models.Short:
		return "🔴 SHORT"
	default:
		return "⚪ NEUTRAL"
	}
}

func printTables(w io.Writer, r *models.Report) {
	fmt.Fprintf(w, "📋 Participant OI (%s)\n", utils.FormatDateIST(r.CurrentDate))
	fmt.Fprintf(w, "%-8s %10s %10s %10s %10s %10s %10s\n", "Client", "FutIdx L", "FutIdx S", "FutStk L", "FutStk S", "Total L", "Total S")
	for _, p := range r.Participants {
		fmt.Fprintf(w, "%-8s %10s %10s %10s %10s %10s %10s\n",
			p.ClientType,
			utils.FormatContracts(p.FutureIndexLong), utils.FormatContracts(p.FutureIndexShort),
			utils.FormatContracts(p.FutureStockLong), utils.FormatContracts(p.FutureStockShort),
			optContracts(p.TotalLong), optContracts(p.TotalShort))
	}
	fmt.Fprintln(w)

	printFIITable(w, "📋 FII statistics", r.CurrentDate, r.FIICurrent)
	printFIITable(w, "📋 FII statistics", r.PreviousDate, r.FIIPrevious)
}

func printFIITable(w io.Writer, title string, d time.Time, rows []models.FIIStatsRow) {
	fmt.Fprintf(w, "%s (%s)\n", title, utils.FormatDateIST(d))
	fmt.Fprintf(w, "%-24s %14s %14s %14s\n", "Instrument", "OI contracts", "Buy value", "Sell value")
	for _, r := range rows {
		fmt.Fprintf(w, "%-24s %14s %14s %14s\n",
			r.Instrument, utils.FormatContracts(r.OIContracts), optCrores(r.BuyValue), optCrores(r.SellValue))
	}
	fmt.Fprintln(w)
}

func optContracts(v *float64) string {
	if v == nil {
		return "-"
	}
	return utils.FormatContracts(*v)
}

func optCrores(v *float64) string {
	if v == nil {
		return "-"
	}
	return utils.FormatCrores(*v)
}
