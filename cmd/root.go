// Package cmd provides the command-line interface for docguard with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration with clear precedence:
//	1. Command-line flags (--config, --log-level, etc.) - highest priority
//	2. DOCGUARD_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (DOCGUARD_AUDIT_LOG_DIR, etc.)
//	4. Configuration files (.docguard.yml) - lowest priority
//
// Environment Variables:
//
//	DOCGUARD_CONFIG_FILE: Path to custom configuration file
//	DOCGUARD_AUDIT_LOG_DIR: Override audit log directory
//	DOCGUARD_RATE_LIMIT_MAX_REQUESTS: Override admission budget
//	And more following the DOCGUARD_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "docguard",
	Short: "Security pipeline tooling for Hebrew document generation",
	Long: `Docguard guards a document-generation service: it verifies template
integrity, scans PDFs for active content, strips directional-override and
zero-width characters from Hebrew text, redacts personal data, and keeps a
tamper-evident audit trail.

Quick Start:
  docguard checksum template.pdf        Compute a template checksum
  docguard scan template.pdf            Scan a PDF for JavaScript and attachments
  docguard publish template.pdf         Record a template's trusted checksum
  docguard verify --all                 Re-verify every published template
  docguard sanitize --pii < input.txt   Clean text of BiDi controls and PII
  docguard audit query --level SECURITY Inspect the audit trail`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .docguard.yml, can also use DOCGUARD_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig initializes the configuration system.
//
// Loading priority (highest to lowest):
//  1. --config flag: explicitly specified config file path
//  2. DOCGUARD_CONFIG_FILE environment variable
//  3. Default: .docguard.yml in the current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("DOCGUARD_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".docguard")
	}

	viper.SetEnvPrefix("DOCGUARD")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing or unreadable file falls back to defaults; a present file is
	// announced so operators can tell which configuration is live.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
