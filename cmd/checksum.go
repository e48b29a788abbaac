package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checksumExpected string

// checksumCmd represents the checksum command
var checksumCmd = &cobra.Command{
	Use:   "checksum <template>...",
	Short: "Compute template checksums",
	Long: `Compute the configured digest (sha256 by default) of one or more
template files, printed in the same format the registry stores.

With --expect the command instead verifies a single template against a
known checksum and exits non-zero on mismatch.

Examples:
  docguard checksum contract.pdf
  docguard checksum *.pdf
  docguard checksum contract.pdf --expect 9f86d08188...`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChecksum,
}

func init() {
	rootCmd.AddCommand(checksumCmd)

	checksumCmd.Flags().StringVar(&checksumExpected, "expect", "", "verify against this checksum instead of printing")
}

func runChecksum(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	if checksumExpected != "" {
		if len(args) != 1 {
			return fmt.Errorf("--expect verifies exactly one template, got %d", len(args))
		}

		ok, err := verifier.VerifyChecksum(args[0], checksumExpected)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("checksum mismatch for %s", args[0])
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", args[0])
		return nil
	}

	for _, path := range args {
		sum, err := verifier.ChecksumFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, path)
	}

	return nil
}
