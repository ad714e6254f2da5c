package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/jimger/wizz-aycf-route-finder/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export KEY",
	Short: "Write the flights cached under KEY to a JSON, CSV or HTML file",
	Long: `export writes a cached search (KEY as listed by "cache list", e.g.
LTN-2025-03-14) to a file. The format is taken from --format, else from the
extension of --output, else JSON. The default output is <output-dir>/KEY.<format>.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "json, csv or html")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "file to write")
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	key := args[0]
	set, err := cachedResults(a, key)
	if err != nil {
		return err
	}

	format, path, err := exportTarget(key, exportFormat, exportOutput, a.cfg.OutputDir())
	if err != nil {
		return err
	}

	records := export.Records(set.Legs())
	title := fmt.Sprintf("Flights from %s on %s", set.Origin(), dayLabel(set.Date()))
	if writeErr := a.exporter.Write(path, format, records, title); writeErr != nil {
		return writeErr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d flights to %s\n", len(records), path)
	return nil
}

// exportTarget settles the format and path of one export.
func exportTarget(key, formatName, output, outputDir string) (export.Format, string, error) {
	var format export.Format
	switch {
	case formatName != "":
		parsed, err := export.ParseFormat(formatName)
		if err != nil {
			return "", "", err
		}
		format = parsed
	case output != "" && filepath.Ext(output) != "":
		parsed, err := export.ParseFormat(filepath.Ext(output))
		if err != nil {
			return "", "", err
		}
		format = parsed
	default:
		format = export.FormatJSON
	}

	if output == "" {
		output = filepath.Join(outputDir, key+"."+string(format))
	}
	return format, output, nil
}
