package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish <template>...",
	Short: "Record trusted checksums for templates",
	Long: `Scan each template for active content, compute its checksum, and
store it in the registry manifest. Published templates are what the verify
command and the runtime pipeline check filled documents against.

Examples:
  docguard publish contract.pdf
  docguard publish templates/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
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

	for _, path := range args {
		sum, err := reg.Publish(path)
		if err != nil {
			return fmt.Errorf("publish %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %s  %s\n", path, sum)
	}

	return nil
}
