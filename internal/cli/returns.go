package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/internal/matcher"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
	"github.com/spf13/cobra"
)

var (
	returnsDate        string
	returnsFlight      string
	returnsDestination string
	returnsRefresh     bool
)

var returnsCmd = &cobra.Command{
	Use:   "returns [ORIGIN]",
	Short: "Find return flights for outbound flights from ORIGIN",
	Long: `returns takes the outbound flights of a search (cached, or searched now),
narrowed with --flight or --destination, and looks for the way back over the
following days. Only returns leaving enough time at the destination are shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReturns,
}

func init() {
	returnsCmd.Flags().StringVar(&returnsDate, "date", "", "outbound date, YYYY-MM-DD, today or tomorrow (default today)")
	returnsCmd.Flags().StringVar(&returnsFlight, "flight", "", "outbound flight code, e.g. \"W6 2202\"")
	returnsCmd.Flags().StringVar(&returnsDestination, "destination", "", "outbound destination airport code")
	returnsCmd.Flags().BoolVar(&returnsRefresh, "refresh", false, "ignore cached return candidates")
}

func runReturns(cmd *cobra.Command, args []string) error {
	a, origin, date, err := prepare(cmd, args, returnsDate)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	execution, sweepErr := sweep(ctx, cmd, a, origin, date, false)
	if sweepErr != nil && sweepErr.Severity() != failure.SeverityHalt {
		return errors.New(describeError(sweepErr, 0))
	}
	if sweepErr != nil {
		return errors.New(describeError(sweepErr, execution.SuggestedWait))
	}

	outbound := selectOutbound(execution.Results.Legs(), returnsFlight, returnsDestination)
	if len(outbound) == 0 {
		return fmt.Errorf("no outbound flight from %s on %s matches", origin, flight.FormatDate(date))
	}

	w := cmd.OutOrStdout()
	for i, leg := range outbound {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Returns for %s (lands %s)\n", leg.Route(), leg.Arrival().String())

		found, findErr := a.matcher.FindReturns(ctx, leg, returnsRefresh)
		if findErr != nil && findErr.Severity() != failure.SeverityHalt {
			return errors.New(describeError(findErr, 0))
		}

		options := matcher.ViableReturns(found.Candidates, a.matcher.MinLayover())
		if len(options) == 0 {
			fmt.Fprintf(w, "No return flights leaving at least %s at the destination.\n", a.matcher.MinLayover())
		} else {
			renderReturns(w, options)
		}
		if findErr != nil {
			return errors.New(describeError(findErr, found.SuggestedWait))
		}
	}
	return nil
}

// selectOutbound keeps legs matching the flight code (spaces and case ignored)
// and the destination, each filter applying only when set.
func selectOutbound(legs []flight.FlightLeg, flightCode, destination string) []flight.FlightLeg {
	normalize := func(s string) string {
		return strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	}
	var selected []flight.FlightLeg
	for _, leg := range legs {
		if flightCode != "" && normalize(leg.FlightCode()) != normalize(flightCode) {
			continue
		}
		if destination != "" && !strings.EqualFold(leg.Destination().Code, strings.TrimSpace(destination)) {
			continue
		}
		selected = append(selected, leg)
	}
	return selected
}
