package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var certifyAll bool

var certifyCmd = &cobra.Command{
	Use:   "certify [invoice ids...]",
	Short: "Certify invoices against the DGI FNE API",
	Long: `Submit invoices for certification.

With --all, every eligible invoice (Draft, Validated, or Error below the
retry cap) is submitted in ascending creation order. With explicit ids,
only those invoices are submitted.

Examples:
  fnev4 certify --all
  fnev4 certify 12 13 17`,
	RunE: runCertify,
}

func init() {
	rootCmd.AddCommand(certifyCmd)
	certifyCmd.Flags().BoolVar(&certifyAll, "all", false, "Certify every eligible invoice")
}

func runCertify(cmd *cobra.Command, args []string) error {
	if !certifyAll && len(args) == 0 {
		return fmt.Errorf("pass invoice ids or --all")
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	orch, err := buildOrchestrator(st)
	if err != nil {
		return err
	}

	if certifyAll {
		result, err := orch.RunAuto(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("processed=%d certified=%d failed=%d skipped=%d\n",
			result.Processed, result.Certified, result.Failed, result.Skipped)
		return nil
	}

	ids := make([]uint, 0, len(args))
	for _, arg := range args {
		n, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid invoice id %q", arg)
		}
		ids = append(ids, uint(n))
	}

	result, err := orch.CertifyBatch(cmd.Context(), ids)
	if err != nil {
		return err
	}
	fmt.Printf("processed=%d certified=%d failed=%d skipped=%d\n",
		result.Processed, result.Certified, result.Failed, result.Skipped)
	return nil
}
