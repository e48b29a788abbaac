package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/right-flow/docguard/internal/audit"
)

var (
	auditSince  string
	auditUntil  string
	auditAction string
	auditLevel  string
)

// auditCmd represents the audit command group
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and maintain the audit trail",
	Long: `Query and maintain the append-only audit trail written by the
security pipeline. Entries are JSON lines stamped with a per-machine
identifier; query output is one JSON entry per line.

Examples:
  docguard audit query --level SECURITY
  docguard audit query --action rate_limit_violation --since 2026-08-01
  docguard audit cleanup`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit entries",
	Long: `Read audit entries across all log files, filtered by time range,
action, and level. Times accept RFC 3339 or plain dates (2026-08-01).`,
	RunE: runAuditQuery,
}

var auditCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete audit files past the retention period",
	RunE:  runAuditCleanup,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd)
	auditCmd.AddCommand(auditCleanupCmd)

	auditQueryCmd.Flags().StringVar(&auditSince, "since", "", "earliest timestamp to include")
	auditQueryCmd.Flags().StringVar(&auditUntil, "until", "", "latest timestamp to include")
	auditQueryCmd.Flags().StringVar(&auditAction, "action", "", "only entries with this action")
	auditQueryCmd.Flags().StringVar(&auditLevel, "level", "", "only entries with this level (INFO, WARN, ERROR, SECURITY)")
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	auditor, err := newAuditor(cfg)
	if err != nil {
		return err
	}
	defer auditor.Close()

	filter := audit.Filter{
		Action: auditAction,
		Level:  audit.Level(auditLevel),
	}
	if filter.From, err = parseAuditTime(auditSince); err != nil {
		return err
	}
	if filter.To, err = parseAuditTime(auditUntil); err != nil {
		return err
	}

	entries, err := auditor.Query(filter)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return err
		}
	}

	return nil
}

func runAuditCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	auditor, err := newAuditor(cfg)
	if err != nil {
		return err
	}
	defer auditor.Close()

	if err := auditor.Cleanup(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "removed audit files older than %d days\n", cfg.Audit.RetentionDays)
	return nil
}

// parseAuditTime accepts RFC 3339 timestamps or bare dates. Empty input
// yields the zero time, which the filter treats as unbounded.
func parseAuditTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized time %q, want RFC 3339 or YYYY-MM-DD", s)
}
