package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/internal/matcher"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// table lays rows out in columns padded to their display width, so station
// names with wide or combining characters still line up.
type table struct {
	header []string
	rows   [][]string
}

func newTable(header ...string) *table {
	return &table{header: header}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) {
	widths := make([]int, len(t.header))
	measure := func(cells []string) {
		for i, c := range cells {
			if i < len(widths) && runewidth.StringWidth(c) > widths[i] {
				widths[i] = runewidth.StringWidth(c)
			}
		}
	}
	measure(t.header)
	for _, row := range t.rows {
		measure(row)
	}

	line := func(cells []string) {
		padded := make([]string, len(cells))
		for i, c := range cells {
			if i == len(cells)-1 {
				padded[i] = c
				continue
			}
			padded[i] = runewidth.FillRight(c, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(padded, "  "), " "))
	}
	line(t.header)
	rule := make([]string, len(widths))
	for i, width := range widths {
		rule[i] = strings.Repeat("-", width)
	}
	line(rule)
	for _, row := range t.rows {
		line(row)
	}
}

func renderLegs(w io.Writer, legs []flight.FlightLeg) {
	t := newTable("Route", "Departure", "Arrival", "Duration", "Computed")
	for _, leg := range legs {
		t.add(leg.Route(), leg.Departure().String(), leg.Arrival().String(), leg.Duration(), leg.ComputedDuration().String())
	}
	t.render(w)
}

func renderReturns(w io.Writer, options []matcher.ReturnOption) {
	t := newTable("Return", "Date", "Departure", "Arrival", "Time at destination")
	for _, o := range options {
		t.add(
			o.Leg.Route(),
			dayLabel(o.Leg.DepartureDate()),
			o.Leg.Departure().String(),
			o.Leg.Arrival().String(),
			o.Stay(),
		)
	}
	t.render(w)
}

// dayLabel renders "Fri 14 Mar 2025".
func dayLabel(date time.Time) string {
	return date.Format("Mon 02 Jan 2006")
}

// age renders a cache age rounded to the minute.
func age(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	return d.Truncate(time.Minute).String() + " ago"
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// progressPrinter reports sweep progress. On a terminal it redraws one status
// line; elsewhere it only prints found flights.
type progressPrinter struct {
	w   io.Writer
	tty bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, tty: isTerminal(w)}
}

func (p *progressPrinter) OnDestination(done, total int, destination string) {
	if p.tty {
		fmt.Fprintf(p.w, "\r\033[K[%d/%d] checking %s", done+1, total, destination)
	}
}

func (p *progressPrinter) OnLegs(destination string, legs []flight.FlightLeg) {
	if p.tty {
		fmt.Fprint(p.w, "\r\033[K")
	}
	for _, leg := range legs {
		fmt.Fprintf(p.w, "found %s\n", leg.Route())
	}
}

func (p *progressPrinter) done() {
	if p.tty {
		fmt.Fprint(p.w, "\r\033[K")
	}
}
