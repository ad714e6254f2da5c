package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/jimger/wizz-aycf-route-finder/internal/metadata"
	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
	"github.com/jimger/wizz-aycf-route-finder/pkg/fileutil"
)

var csvHeader = []string{"route", "date", "departure", "arrival", "duration", "computed duration"}

// Encode renders records in format. title is used by HTML only.
func Encode(format Format, records []Record, title string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return encodeJSON(records)
	case FormatCSV:
		return encodeCSV(records)
	case FormatHTML:
		return encodeHTML(records, title), nil
	default:
		return nil, &ExportError{Message: string(format), Cause: ErrCauseUnsupportedFormat}
	}
}

func encodeJSON(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func encodeCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := w.Write([]string{r.Route, r.Date, r.Departure, r.Arrival, r.Duration, r.ComputedDuration}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// markdownTable lays records out as a GitHub-style table.
func markdownTable(records []Record, title string) []byte {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	if len(records) == 0 {
		b.WriteString("No flights found.\n")
		return []byte(b.String())
	}
	b.WriteString("| Route | Date | Departure | Arrival | Duration | Computed duration |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, r := range records {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			cell(r.Route), cell(r.Date), cell(r.Departure), cell(r.Arrival), cell(r.Duration), cell(r.ComputedDuration))
	}
	return []byte(b.String())
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func encodeHTML(records []Record, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	doc := p.Parse(markdownTable(records, title))
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Title: title,
		Flags: mdhtml.CommonFlags | mdhtml.CompletePage,
	})
	return markdown.Render(doc, renderer)
}

/*
Exporter
  - Writes flattened records to a file in one of the supported formats
  - Writes atomically; a failed export leaves no partial file behind
  - Records every written artifact
*/
type Exporter struct {
	metadataSink metadata.MetadataSink
}

func NewExporter(metadataSink metadata.MetadataSink) *Exporter {
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	return &Exporter{metadataSink: metadataSink}
}

// Write encodes records and stores them at path. An empty format is taken from
// the path's extension.
func (e *Exporter) Write(path string, format Format, records []Record, title string) failure.ClassifiedError {
	if format == "" {
		parsed, err := ParseFormat(fileutil.GetFileExtension(path))
		if err != nil {
			return e.fail(err, path)
		}
		format = parsed
	}

	data, err := Encode(format, records, title)
	if err != nil {
		return e.fail(err, path)
	}

	if writeErr := fileutil.WriteFileAtomic(path, data); writeErr != nil {
		return e.fail(&ExportError{Message: writeErr.Error(), Cause: ErrCauseWriteFailed}, path)
	}

	e.metadataSink.RecordArtifact(format.artifactKind(), path, []metadata.Attribute{
		metadata.NewAttr(metadata.AttrCount, fmt.Sprint(len(records))),
	})
	return nil
}

func (e *Exporter) fail(err error, path string) failure.ClassifiedError {
	var exportErr *ExportError
	if !errors.As(err, &exportErr) {
		exportErr = &ExportError{Message: err.Error(), Cause: ErrCauseEncodeFailed}
	}
	e.metadataSink.RecordError(
		time.Now(),
		"export",
		"Exporter.Write",
		mapExportErrorToMetadataCause(exportErr),
		exportErr.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, path),
		},
	)
	return exportErr
}
