package config

import (
	"fmt"

	guarderrors "github.com/right-flow/docguard/internal/errors"
)

// Validate rejects configurations the pipeline cannot run with. Bad
// configuration is programmer/operator misuse and fails hard at startup,
// unlike runtime denials which are reported as verdicts.
func (c *Config) Validate() error {
	if c.RateLimit.MaxRequests <= 0 {
		return configErr("rate_limit.max_requests must be positive, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Window <= 0 {
		return configErr("rate_limit.window must be positive, got %v", c.RateLimit.Window)
	}
	if c.RateLimit.MaxConcurrent <= 0 {
		return configErr("rate_limit.max_concurrent must be positive, got %d", c.RateLimit.MaxConcurrent)
	}

	if len(c.Paths.AllowedBasePaths) == 0 {
		return configErr("paths.allowed_base_paths must not be empty")
	}
	for _, p := range c.Paths.AllowedBasePaths {
		if p == "" {
			return configErr("paths.allowed_base_paths contains an empty entry")
		}
	}

	if c.Memory.MaxPerDocument <= 0 {
		return configErr("memory.max_per_document must be positive, got %d", c.Memory.MaxPerDocument)
	}
	if c.Memory.MaxTotal <= 0 {
		return configErr("memory.max_total must be positive, got %d", c.Memory.MaxTotal)
	}
	if c.Memory.MaxPerDocument > c.Memory.MaxTotal {
		return configErr("memory.max_per_document (%d) exceeds memory.max_total (%d)",
			c.Memory.MaxPerDocument, c.Memory.MaxTotal)
	}

	switch c.Verify.Algorithm {
	case "sha256", "sha512":
	default:
		return configErr("verify.algorithm must be sha256 or sha512, got %q", c.Verify.Algorithm)
	}
	switch c.Verify.Encoding {
	case "hex", "base64":
	default:
		return configErr("verify.encoding must be hex or base64, got %q", c.Verify.Encoding)
	}

	switch c.PII.HashAlgorithm {
	case "sha256", "sha512", "blake2b":
	default:
		return configErr("pii.hash_algorithm must be sha256, sha512 or blake2b, got %q", c.PII.HashAlgorithm)
	}
	switch c.PII.HashEncoding {
	case "hex", "base64":
	default:
		return configErr("pii.hash_encoding must be hex or base64, got %q", c.PII.HashEncoding)
	}

	if c.Audit.LogDir == "" {
		return configErr("audit.log_dir must not be empty")
	}
	if c.Audit.MaxFileSize <= 0 {
		return configErr("audit.max_file_size must be positive, got %d", c.Audit.MaxFileSize)
	}
	if c.Audit.RetentionDays < 1 {
		return configErr("audit.retention_days must be at least 1, got %d", c.Audit.RetentionDays)
	}
	if c.Audit.BufferSize < 1 {
		return configErr("audit.buffer_size must be at least 1, got %d", c.Audit.BufferSize)
	}
	if c.Audit.FlushInterval < 0 {
		return configErr("audit.flush_interval must not be negative, got %v", c.Audit.FlushInterval)
	}

	return nil
}

func configErr(format string, args ...interface{}) error {
	return guarderrors.NewConfigError("INVALID_CONFIG", fmt.Sprintf(format, args...))
}
