package export

import (
	"strings"

	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// ParseFormat accepts a format name or a file extension, with or without the dot.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", &ExportError{Message: name, Cause: ErrCauseUnsupportedFormat}
	}
}

func (f Format) artifactKind() metadata.ArtifactKind {
	switch f {
	case FormatCSV:
		return metadata.ArtifactCSV
	case FormatHTML:
		return metadata.ArtifactHTML
	default:
		return metadata.ArtifactJSON
	}
}

// Record is one flattened flight, the unit every export format writes.
type Record struct {
	Route            string `json:"route"`
	Date             string `json:"date"`
	Departure        string `json:"departure"`
	Arrival          string `json:"arrival"`
	Duration         string `json:"duration"`
	ComputedDuration string `json:"computedDuration"`
}

func NewRecord(leg flight.FlightLeg) Record {
	return Record{
		Route:            leg.Route(),
		Date:             flight.FormatDate(leg.DepartureDate()),
		Departure:        leg.Departure().String(),
		Arrival:          leg.Arrival().String(),
		Duration:         leg.Duration(),
		ComputedDuration: leg.ComputedDuration().String(),
	}
}

// Records flattens legs in order.
func Records(legs []flight.FlightLeg) []Record {
	records := make([]Record, 0, len(legs))
	for _, leg := range legs {
		records = append(records, NewRecord(leg))
	}
	return records
}
