package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mikaelarth/fnev4/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Import invoice workbooks",
	Long: `Import one or more spreadsheet exports.

Each workbook holds one invoice per sheet in the fixed legacy layout.
Sheets that fail extraction or validation are reported individually; the
rest are persisted as Draft invoices awaiting certification.

Examples:
  fnev4 import export.xlsx
  fnev4 import exports/*.xlsx -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	files, err := collectWorkbooks(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no workbooks found to import")
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	im, err := buildImporter(cmd.Context(), st)
	if err != nil {
		return err
	}

	reports := make([]*importer.Report, 0, len(files))
	for _, file := range files {
		report, err := im.ImportFile(cmd.Context(), file)
		if err != nil {
			report = &importer.Report{
				SourceFile:   file,
				GlobalErrors: []string{err.Error()},
			}
		}
		reports = append(reports, report)
	}

	return outputImportReports(reports)
}

func collectWorkbooks(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil || len(matches) == 0 {
			matches = []string{arg}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("cannot read %s: %w", m, err)
			}
			if info.IsDir() {
				entries, err := os.ReadDir(m)
				if err != nil {
					return nil, err
				}
				for _, e := range entries {
					if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".xlsx") {
						files = append(files, filepath.Join(m, e.Name()))
					}
				}
				continue
			}
			files = append(files, m)
		}
	}
	return files, nil
}

func outputImportReports(reports []*importer.Report) error {
	if outputFormat == "table" {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tSHEETS\tIMPORTED\tFAILED")
		for _, r := range reports {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", r.SourceFile, r.TotalProcessed, r.Imported, r.Failed)
		}
		w.Flush()
		for _, r := range reports {
			for _, f := range r.Failures {
				fmt.Printf("  %s [%s] %s: %s\n", r.SourceFile, f.Sheet, f.Field, f.Reason)
			}
			for _, warn := range r.GlobalWarnings {
				fmt.Printf("  warning: %s\n", warn)
			}
		}
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
