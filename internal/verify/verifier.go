// Package verify checks template integrity (content digests against trusted
// checksums) and scans raw PDF bytes for dangerous structural markers.
//
// The marker scan is a first line of defense only: it inspects the raw byte
// stream and will not see names hidden inside compressed object streams or
// encoded with PDF name escapes. It is deliberately isolated behind Verifier
// so it can be replaced by a real object-model parser without touching
// callers.
package verify

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"os"

	"github.com/right-flow/docguard/internal/errors"
)

// Config mirrors the verify section of the configuration surface.
type Config struct {
	Algorithm          string // "sha256" or "sha512"
	Encoding           string // "hex" or "base64"
	CheckJavaScript    bool
	CheckEmbeddedFiles bool
	ThrowOnMismatch    bool
}

// Verifier computes and verifies template checksums and scans for embedded
// scripts and file collections.
type Verifier struct {
	cfg Config
}

// New creates a Verifier. Unknown algorithms or encodings are configuration
// misuse and fail at construction.
func New(cfg Config) (*Verifier, error) {
	switch cfg.Algorithm {
	case "sha256", "sha512":
	default:
		return nil, errors.NewConfigError("INVALID_CONFIG", "checksum algorithm must be sha256 or sha512")
	}
	switch cfg.Encoding {
	case "hex", "base64":
	default:
		return nil, errors.NewConfigError("INVALID_CONFIG", "checksum encoding must be hex or base64")
	}

	return &Verifier{cfg: cfg}, nil
}

// Checksum digests data with the configured algorithm and encoding.
func (v *Verifier) Checksum(data []byte) string {
	h := v.newHash()
	h.Write(data)

	return v.encode(h.Sum(nil))
}

// ChecksumFile digests the file's byte content.
func (v *Verifier) ChecksumFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewIOError("TEMPLATE_READ_FAILED", "cannot read template", err).
			WithContext("path", path).
			WithComponent("verify")
	}

	return v.Checksum(data), nil
}

// VerifyChecksum recomputes the file's digest and compares it to expected.
// With ThrowOnMismatch a mismatch is returned as a security error carrying
// both digests; otherwise it reports (false, nil).
func (v *Verifier) VerifyChecksum(path, expected string) (bool, error) {
	actual, err := v.ChecksumFile(path)
	if err != nil {
		return false, err
	}

	if actual == expected {
		return true, nil
	}

	if v.cfg.ThrowOnMismatch {
		return false, errors.ErrChecksumMismatch(path, expected, actual).WithComponent("verify")
	}

	return false, nil
}

// PDF structural markers. /JavaScript and /JS mark script objects, /OpenAction
// and /AA mark catalog-level actions that run them, /EmbeddedFiles and
// /Filespec mark attached file collections.
var (
	markerJavaScript    = []byte("/JavaScript")
	markerJS            = []byte("/JS")
	markerOpenAction    = []byte("/OpenAction")
	markerAA            = []byte("/AA")
	markerEmbeddedFiles = []byte("/EmbeddedFiles")
	markerFilespec      = []byte("/Filespec")
)

// ScanPDF performs a byte-level scan of the document for dangerous markers.
// Each class of check is independently toggleable via the configuration.
func (v *Verifier) ScanPDF(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewIOError("TEMPLATE_READ_FAILED", "cannot read template", err).
			WithContext("path", path).
			WithComponent("verify")
	}

	return v.scan(path, data)
}

func (v *Verifier) scan(path string, data []byte) error {
	if v.cfg.CheckJavaScript {
		hasScript := bytes.Contains(data, markerJavaScript) || bytes.Contains(data, markerJS)
		// Action dictionaries fire without user interaction, so they are
		// findings on their own even when no script marker is visible (the
		// payload may sit in a compressed object stream).
		hasAction := bytes.Contains(data, markerOpenAction) || bytes.Contains(data, markerAA)

		if hasScript || hasAction {
			return errors.NewSecurityError(errors.CodeJavaScriptDetected, "embedded script or action marker in template").
				WithContext("path", path).
				WithComponent("verify")
		}
	}

	if v.cfg.CheckEmbeddedFiles {
		if bytes.Contains(data, markerEmbeddedFiles) || bytes.Contains(data, markerFilespec) {
			return errors.NewSecurityError(errors.CodeEmbeddedFiles, "embedded file collection in template").
				WithContext("path", path).
				WithComponent("verify")
		}
	}

	return nil
}

// ValidateTemplate composes checksum verification and the safety scan into a
// single pass/fail. The checksum runs first so a tampered file never reaches
// the marker scan.
func (v *Verifier) ValidateTemplate(path, expectedChecksum string) error {
	ok, err := v.VerifyChecksum(path, expectedChecksum)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrChecksumMismatch(path, expectedChecksum, "").WithComponent("verify")
	}

	return v.ScanPDF(path)
}

// ValidateBatch validates every {path → checksum} pair and never aborts
// early: each entry is evaluated and reported.
func (v *Verifier) ValidateBatch(templates map[string]string) map[string]bool {
	results := make(map[string]bool, len(templates))
	for path, checksum := range templates {
		results[path] = v.ValidateTemplate(path, checksum) == nil
	}

	return results
}

func (v *Verifier) newHash() hash.Hash {
	if v.cfg.Algorithm == "sha512" {
		return sha512.New()
	}

	return sha256.New()
}

func (v *Verifier) encode(sum []byte) string {
	if v.cfg.Encoding == "base64" {
		return base64.StdEncoding.EncodeToString(sum)
	}

	return hex.EncodeToString(sum)
}
