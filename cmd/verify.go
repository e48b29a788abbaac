package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	verifyAll   bool
	verifyWatch bool
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [template]...",
	Short: "Verify templates against their published checksums",
	Long: `Check templates against the checksums recorded at publish time. A
mismatch means the file changed after it was trusted and must be treated as
tampering.

With --watch the command keeps running and re-verifies templates whenever
their files change, recording violations in the audit trail.

Examples:
  docguard verify contract.pdf
  docguard verify --all
  docguard verify --all --watch`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().BoolVar(&verifyAll, "all", false, "verify every published template")
	verifyCmd.Flags().BoolVar(&verifyWatch, "watch", false, "keep watching published templates for changes")
}

func runVerify(cmd *cobra.Command, args []string) error {
	if !verifyAll && len(args) == 0 {
		return fmt.Errorf("name templates to verify or pass --all")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg, auditor, err := newRegistry(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer auditor.Close()
	defer reg.Close()

	targets := args
	if verifyAll {
		targets = reg.Paths()
	}

	failures := 0
	for _, path := range targets {
		if err := reg.Verify(path); err != nil {
			failures++
			fmt.Fprintf(cmd.OutOrStdout(), "%s: FAILED (%v)\n", path, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", path)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d templates failed verification", failures, len(targets))
	}

	if verifyWatch {
		if err := reg.Watch(); err != nil {
			return err
		}

		fmt.Fprintln(cmd.ErrOrStderr(), "watching published templates, Ctrl-C to stop")
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
	}

	return nil
}
