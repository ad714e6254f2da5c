package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/crawler"
	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
	"github.com/spf13/cobra"
)

var (
	searchDate    string
	searchRefresh bool
)

var searchCmd = &cobra.Command{
	Use:   "search [ORIGIN]",
	Short: "List every flight leaving ORIGIN on a date",
	Long: `search queries every destination served from ORIGIN, one at a time, and
prints the flights found. Results are cached per origin and date; use
--refresh to ignore the cache. ORIGIN defaults to the last searched airport.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchDate, "date", "", "departure date, YYYY-MM-DD, today or tomorrow (default today)")
	searchCmd.Flags().BoolVar(&searchRefresh, "refresh", false, "ignore cached results for this origin and date")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, origin, date, err := prepare(cmd, args, searchDate)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	execution, sweepErr := sweep(ctx, cmd, a, origin, date, searchRefresh)
	if sweepErr != nil && sweepErr.Severity() != failure.SeverityHalt {
		return errors.New(describeError(sweepErr, 0))
	}

	printSweep(cmd.OutOrStdout(), a, execution)
	if sweepErr != nil {
		return errors.New(describeError(sweepErr, execution.SuggestedWait))
	}
	return nil
}

func sweep(
	ctx context.Context,
	cmd *cobra.Command,
	a *app,
	origin string,
	date time.Time,
	force bool,
) (crawler.SweepExecution, failure.ClassifiedError) {
	progress := newProgressPrinter(cmd.ErrOrStderr())
	a.crawler.SetObserver(progress)
	defer progress.done()
	return a.crawler.Sweep(ctx, origin, date, force)
}

func printSweep(w io.Writer, a *app, execution crawler.SweepExecution) {
	title := fmt.Sprintf("Flights from %s on %s", stationLabel(a, execution.Origin), dayLabel(execution.Date))
	if execution.FromCache {
		if entry, ok := a.cache.GetEntry(execution.Key); ok {
			title += fmt.Sprintf(" (cached %s)", age(a.clock.Now().Sub(entry.StoredAt)))
		}
	}
	fmt.Fprintln(w, title)

	if execution.Results == nil || execution.Results.IsEmpty() {
		if execution.NoFlights() {
			fmt.Fprintln(w, "No flights found.")
		} else {
			fmt.Fprintln(w, "No flights found before the search stopped.")
		}
		return
	}
	renderLegs(w, execution.Results.Legs())
	fmt.Fprintf(w, "%d flights\n", execution.Results.Len())
}

func stationLabel(a *app, code string) string {
	if name := a.resolver.StationName(code); name != "" && name != code {
		return fmt.Sprintf("%s (%s)", code, name)
	}
	return code
}

// prepare builds the run for a command taking an optional ORIGIN argument.
func prepare(cmd *cobra.Command, args []string, dateText string) (*app, string, time.Time, error) {
	argOrigin := ""
	if len(args) > 0 {
		argOrigin = args[0]
	}
	date, err := parseDateFlag(dateText, time.Now())
	if err != nil {
		return nil, "", time.Time{}, err
	}
	cfg, err := InitConfigWithError(argOrigin)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, "", time.Time{}, err
	}

	origin := cfg.Origin()
	if origin == "" {
		last, ok := a.lastOrigin()
		if !ok {
			_ = a.Close()
			return nil, "", time.Time{}, ErrOriginRequired
		}
		origin = last
	}
	return a, origin, date, nil
}

// parseDateFlag accepts YYYY-MM-DD, "today", "tomorrow" or "" (today).
func parseDateFlag(text string, now time.Time) (time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "today":
		return today, nil
	case "tomorrow":
		return flight.AddDays(today, 1), nil
	}
	date, err := flight.ParseDate(text)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: %w", text, err)
	}
	return date, nil
}
