package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/right-flow/docguard/internal/errors"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <template>...",
	Short: "Scan PDF templates for active content",
	Long: `Scan PDF templates for embedded JavaScript, automatic actions, and
file attachments. A template that fails the scan must never be filled or
served.

Examples:
  docguard scan contract.pdf
  docguard scan templates/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	failures := 0
	for _, path := range args {
		if err := verifier.ScanPDF(path); err != nil {
			failures++
			fmt.Fprintf(cmd.OutOrStdout(), "%s: UNSAFE (%s)\n", path, errors.CodeOf(err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: clean\n", path)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d templates failed the scan", failures, len(args))
	}

	return nil
}
