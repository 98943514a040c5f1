package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mikaelarth/fnev4/internal/model"
)

var statusFilter string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List invoices and their certification state",
	Long: `List persisted invoices with lifecycle state, totals and
certification artifacts.

Examples:
  fnev4 status
  fnev4 status --status error -f table`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (draft, validated, certified, error)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	var statuses []model.Status
	if statusFilter != "" {
		status := model.Status(statusFilter)
		if !status.Valid() {
			return fmt.Errorf("unknown status %q", statusFilter)
		}
		statuses = append(statuses, status)
	}

	invoices, err := st.ListInvoices(cmd.Context(), statuses...)
	if err != nil {
		return err
	}

	if outputFormat == "table" {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNUMBER\tDATE\tCLIENT\tTTC\tSTATUS\tRETRIES\tREFERENCE")
		for _, inv := range invoices {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				inv.ID, inv.Number, inv.Date.Format("2006-01-02"), inv.ClientName,
				inv.TotalTTC.StringFixed(2), inv.Status, inv.RetryCount, inv.FneReference)
		}
		return w.Flush()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(invoices)
}
