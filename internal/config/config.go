// Package config provides configuration management for the docguard security
// pipeline using Viper for flexible loading from files, environment variables,
// and command-line flags.
//
// The configuration system supports YAML files (.docguard.yml), environment
// variable overrides with the DOCGUARD_ prefix, and a validation pass that
// rejects unusable guard settings at startup. Every option carries a default
// so an empty file yields a working pipeline.
package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Memory    MemoryConfig    `yaml:"memory" mapstructure:"memory"`
	Hebrew    HebrewConfig    `yaml:"hebrew" mapstructure:"hebrew"`
	Verify    VerifyConfig    `yaml:"verify" mapstructure:"verify"`
	PII       PIIConfig       `yaml:"pii" mapstructure:"pii"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type RateLimitConfig struct {
	MaxRequests   int           `yaml:"max_requests" mapstructure:"max_requests"`
	Window        time.Duration `yaml:"window" mapstructure:"window"`
	MaxConcurrent int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

type PathsConfig struct {
	AllowedBasePaths []string `yaml:"allowed_base_paths" mapstructure:"allowed_base_paths"`
	AllowSymlinks    bool     `yaml:"allow_symlinks" mapstructure:"allow_symlinks"`
}

type MemoryConfig struct {
	MaxPerDocument int64 `yaml:"max_per_document" mapstructure:"max_per_document"`
	MaxTotal       int64 `yaml:"max_total" mapstructure:"max_total"`
}

type HebrewConfig struct {
	RemoveBiDiOverrides bool `yaml:"remove_bidi_overrides" mapstructure:"remove_bidi_overrides"`
	RemoveZeroWidth     bool `yaml:"remove_zero_width" mapstructure:"remove_zero_width"`
	DetectHomographs    bool `yaml:"detect_homographs" mapstructure:"detect_homographs"`
}

type VerifyConfig struct {
	Algorithm          string `yaml:"algorithm" mapstructure:"algorithm"`
	Encoding           string `yaml:"encoding" mapstructure:"encoding"`
	CheckJavaScript    bool   `yaml:"check_javascript" mapstructure:"check_javascript"`
	CheckEmbeddedFiles bool   `yaml:"check_embedded_files" mapstructure:"check_embedded_files"`
	ThrowOnMismatch    bool   `yaml:"throw_on_mismatch" mapstructure:"throw_on_mismatch"`
}

type PIIConfig struct {
	HashAlgorithm string `yaml:"hash_algorithm" mapstructure:"hash_algorithm"`
	HashEncoding  string `yaml:"hash_encoding" mapstructure:"hash_encoding"`
	SecureErase   bool   `yaml:"secure_erase" mapstructure:"secure_erase"`
	EnableLogging bool   `yaml:"enable_logging" mapstructure:"enable_logging"`
	Replacement   string `yaml:"replacement" mapstructure:"replacement"`
}

type AuditConfig struct {
	LogDir        string        `yaml:"log_dir" mapstructure:"log_dir"`
	MaxFileSize   int64         `yaml:"max_file_size" mapstructure:"max_file_size"`
	RetentionDays int           `yaml:"retention_days" mapstructure:"retention_days"`
	EnableConsole bool          `yaml:"enable_console" mapstructure:"enable_console"`
	BufferSize    int           `yaml:"buffer_size" mapstructure:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval" mapstructure:"flush_interval"`
}

type RegistryConfig struct {
	ManifestPath string `yaml:"manifest_path" mapstructure:"manifest_path"`
	Watch        bool   `yaml:"watch" mapstructure:"watch"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   100,
			Window:        time.Minute,
			MaxConcurrent: 10,
		},
		Paths: PathsConfig{
			AllowedBasePaths: []string{"./templates"},
			AllowSymlinks:    false,
		},
		Memory: MemoryConfig{
			MaxPerDocument: 100 << 20, // 100 MiB
			MaxTotal:       500 << 20, // 500 MiB
		},
		Hebrew: HebrewConfig{
			RemoveBiDiOverrides: true,
			RemoveZeroWidth:     true,
			DetectHomographs:    true,
		},
		Verify: VerifyConfig{
			Algorithm:          "sha256",
			Encoding:           "hex",
			CheckJavaScript:    true,
			CheckEmbeddedFiles: true,
			ThrowOnMismatch:    true,
		},
		PII: PIIConfig{
			HashAlgorithm: "sha256",
			HashEncoding:  "hex",
			SecureErase:   true,
			EnableLogging: false,
		},
		Audit: AuditConfig{
			LogDir:        "./audit-logs",
			MaxFileSize:   10 << 20, // 10 MiB
			RetentionDays: 90,
			EnableConsole: false,
			BufferSize:    50,
			FlushInterval: 5 * time.Second,
		},
		Registry: RegistryConfig{
			ManifestPath: "./templates/manifest.yml",
			Watch:        false,
		},
	}
}

// Load reads configuration via the shared viper instance, layering file and
// environment values over the defaults, then validates the result.
func Load() (*Config, error) {
	config := Default()

	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	// Viper leaves slices untouched when the key is absent; restore the
	// default whitelist rather than starting with nothing allowed.
	if len(config.Paths.AllowedBasePaths) == 0 && !viper.IsSet("paths.allowed_base_paths") {
		config.Paths.AllowedBasePaths = Default().Paths.AllowedBasePaths
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
