package cmd

import (
	"os"

	"github.com/right-flow/docguard/internal/audit"
	"github.com/right-flow/docguard/internal/config"
	"github.com/right-flow/docguard/internal/logging"
	"github.com/right-flow/docguard/internal/pii"
	"github.com/right-flow/docguard/internal/registry"
	"github.com/right-flow/docguard/internal/verify"
)

// loadConfig resolves the effective configuration for a command invocation.
func loadConfig() (*config.Config, error) {
	return config.Load()
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
}

func newVerifier(cfg *config.Config) (*verify.Verifier, error) {
	return verify.New(verify.Config{
		Algorithm:          cfg.Verify.Algorithm,
		Encoding:           cfg.Verify.Encoding,
		CheckJavaScript:    cfg.Verify.CheckJavaScript,
		CheckEmbeddedFiles: cfg.Verify.CheckEmbeddedFiles,
		ThrowOnMismatch:    cfg.Verify.ThrowOnMismatch,
	})
}

func newPIIHandler(cfg *config.Config, logger logging.Logger) (*pii.Handler, error) {
	return pii.New(pii.Config{
		HashAlgorithm: cfg.PII.HashAlgorithm,
		HashEncoding:  cfg.PII.HashEncoding,
		SecureErase:   cfg.PII.SecureErase,
		EnableLogging: cfg.PII.EnableLogging,
		Replacement:   cfg.PII.Replacement,
	}, logger)
}

func newAuditor(cfg *config.Config) (*audit.Logger, error) {
	return audit.New(audit.Config{
		LogDir:        cfg.Audit.LogDir,
		MaxFileSize:   cfg.Audit.MaxFileSize,
		RetentionDays: cfg.Audit.RetentionDays,
		EnableConsole: cfg.Audit.EnableConsole,
		BufferSize:    cfg.Audit.BufferSize,
		FlushInterval: cfg.Audit.FlushInterval,
	})
}

func newRegistry(cfg *config.Config, logger logging.Logger) (*registry.Registry, *audit.Logger, error) {
	verifier, err := newVerifier(cfg)
	if err != nil {
		return nil, nil, err
	}

	auditor, err := newAuditor(cfg)
	if err != nil {
		return nil, nil, err
	}

	reg, err := registry.New(cfg.Registry.ManifestPath, verifier, auditor, logger)
	if err != nil {
		auditor.Close()
		return nil, nil, err
	}

	return reg, auditor, nil
}
