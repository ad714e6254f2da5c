package export_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/export"
	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func legs() []flight.FlightLeg {
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	return []flight.FlightLeg{
		flight.NewFlightLeg(
			flight.Station{Code: "LTN", Label: "London Luton"},
			flight.Station{Code: "BUD", Label: "Budapest"},
			"W6 2202",
			date,
			flight.NewClockTime(6, 25, 0),
			flight.NewClockTime(11, 40, time.Hour),
			"4h 15m",
		),
		flight.NewFlightLeg(
			flight.Station{Code: "LTN", Label: "London | Luton"},
			flight.Station{Code: "OTP", Label: "Bucharest"},
			"W6 3002",
			date,
			flight.NewClockTime(23, 30, 0),
			flight.NewClockTime(5, 10, 2*time.Hour),
			"3h 40m",
		),
	}
}

func TestRecords_Flatten(t *testing.T) {
	records := export.Records(legs())
	require.Len(t, records, 2)
	assert.Equal(t, export.Record{
		Route:            "LTN (London Luton) to BUD (Budapest) - W6 2202",
		Date:             "2025-03-14",
		Departure:        "06:25 (+00:00)",
		Arrival:          "11:40 (+01:00)",
		Duration:         "4h 15m",
		ComputedDuration: "4h 15m",
	}, records[0])
	assert.Equal(t, "3h 40m", records[1].ComputedDuration)
}

func TestEncode_JSONArray(t *testing.T) {
	out, err := export.Encode(export.FormatJSON, export.Records(legs()), "")
	require.NoError(t, err)

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Len(t, decoded, 2)
	assert.True(t, strings.HasSuffix(decoded[0]["route"], "W6 2202"))
	assert.Equal(t, "3h 40m", decoded[1]["computedDuration"])

	empty, err := export.Encode(export.FormatJSON, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(empty))
}

func TestEncode_CSV(t *testing.T) {
	out, err := export.Encode(export.FormatCSV, export.Records(legs()), "")
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "route", rows[0][0])
	assert.Equal(t, []string{
		"LTN (London Luton) to BUD (Budapest) - W6 2202",
		"2025-03-14",
		"06:25 (+00:00)",
		"11:40 (+01:00)",
		"4h 15m",
		"4h 15m",
	}, rows[1])
}

func TestEncode_HTMLTable(t *testing.T) {
	out, err := export.Encode(export.FormatHTML, export.Records(legs()), "LTN 2025-03-14")
	require.NoError(t, err)

	page := string(out)
	assert.Contains(t, page, "<title>LTN 2025-03-14</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "W6 2202")
	// a pipe inside a label must not split the cell
	assert.Contains(t, page, "London | Luton")
	assert.Equal(t, 3, strings.Count(page, "<tr>"))
}

func TestEncode_HTMLEmpty(t *testing.T) {
	out, err := export.Encode(export.FormatHTML, nil, "BUD")
	require.NoError(t, err)
	assert.Contains(t, string(out), "No flights found.")
	assert.NotContains(t, string(out), "<table>")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]export.Format{
		"json": export.FormatJSON, ".CSV": export.FormatCSV, "htm": export.FormatHTML, " html ": export.FormatHTML,
	} {
		got, err := export.ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := export.ParseFormat("xlsx")
	var exportErr *export.ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, export.ErrCauseUnsupportedFormat, exportErr.Cause)
}

func TestExporter_WritesAndRecords(t *testing.T) {
	var buf bytes.Buffer
	exporter := export.NewExporter(metadata.NewRecorder(&buf, "run-x"))
	path := filepath.Join(t.TempDir(), "out", "flights.csv")

	err := exporter.Write(path, "", export.Records(legs()), "")
	require.Nil(t, err)

	content, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.True(t, strings.HasPrefix(string(content), "route,date"))
	assert.Contains(t, buf.String(), "event=artifact")
	assert.Contains(t, buf.String(), "count=2")
}

func TestExporter_UnknownExtension(t *testing.T) {
	exporter := export.NewExporter(nil)
	path := filepath.Join(t.TempDir(), "flights.txt")

	err := exporter.Write(path, "", nil, "")
	require.NotNil(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
