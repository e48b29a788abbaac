// Package pathsec confines template and asset paths to a whitelist of base
// directories, defending against traversal, null-byte truncation, and
// symlink escape attacks.
package pathsec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/right-flow/docguard/internal/errors"
)

// Unicode dot variants that render like "." and can smuggle a ".." sequence
// past naive string checks once normalized downstream.
var unicodeDotVariants = []rune{
	'․', // ONE DOT LEADER
	'．', // FULLWIDTH FULL STOP
	'﹒', // SMALL FULL STOP
}

// Sanitizer resolves candidate paths against a whitelist of base directories.
type Sanitizer struct {
	allowedBases  []string // Absolute, cleaned base directories
	allowSymlinks bool
}

// New creates a Sanitizer from a whitelist of base directories. Bases are
// made absolute at construction so later containment checks compare
// canonical forms.
func New(allowedBasePaths []string, allowSymlinks bool) (*Sanitizer, error) {
	if len(allowedBasePaths) == 0 {
		return nil, errors.NewConfigError("INVALID_CONFIG", "path sanitizer requires at least one allowed base path")
	}

	bases := make([]string, 0, len(allowedBasePaths))
	for _, base := range allowedBasePaths {
		if base == "" {
			return nil, errors.NewConfigError("INVALID_CONFIG", "allowed base path must not be empty")
		}
		abs, err := filepath.Abs(base)
		if err != nil {
			return nil, errors.NewConfigError("INVALID_CONFIG",
				fmt.Sprintf("cannot resolve base path %q: %v", base, err))
		}
		bases = append(bases, filepath.Clean(abs))
	}

	return &Sanitizer{allowedBases: bases, allowSymlinks: allowSymlinks}, nil
}

// Sanitize resolves candidate relative to base and returns the canonical
// absolute path. Any rejection returns a security-class error; the candidate
// is never partially trusted.
func (s *Sanitizer) Sanitize(candidate, base string) (string, error) {
	// Null bytes are checked on the raw input before any cleaning: a C-level
	// consumer would truncate at the byte, so "a.pdf\x00.exe" must die here.
	if strings.ContainsRune(candidate, 0) || strings.ContainsRune(base, 0) {
		return "", errors.ErrNullByte(printable(candidate)).WithComponent("pathsec")
	}

	for _, dot := range unicodeDotVariants {
		if strings.ContainsRune(candidate, dot) {
			return "", errors.NewSecurityError(errors.CodePathTraversal,
				"unicode dot variant in path").
				WithContext("path", printable(candidate)).
				WithComponent("pathsec")
		}
	}

	allowedBase, err := s.resolveBase(base)
	if err != nil {
		return "", err
	}

	resolved := filepath.Clean(filepath.Join(allowedBase, candidate))
	if filepath.IsAbs(candidate) {
		resolved = filepath.Clean(candidate)
	}

	resolved, err = s.resolveSymlinks(resolved)
	if err != nil {
		return "", err
	}

	if !contains(allowedBase, resolved) {
		return "", errors.ErrPathTraversal(printable(candidate)).
			WithContext("base", allowedBase).
			WithComponent("pathsec")
	}

	return resolved, nil
}

// resolveBase checks base against the whitelist and returns its canonical
// absolute form.
func (s *Sanitizer) resolveBase(base string) (string, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", errors.NewSecurityError(errors.CodeBaseNotAllowed, "cannot resolve base directory").
			WithContext("base", printable(base)).
			WithComponent("pathsec")
	}
	abs = filepath.Clean(abs)

	for _, allowed := range s.allowedBases {
		if abs == allowed {
			return allowed, nil
		}
	}

	return "", errors.NewSecurityError(errors.CodeBaseNotAllowed, "base directory not in whitelist").
		WithContext("base", printable(base)).
		WithComponent("pathsec")
}

// resolveSymlinks canonicalizes path through any symlinks. When the target
// does not exist yet (a document about to be written), the deepest existing
// ancestor is resolved instead so a symlinked parent cannot smuggle the
// write outside the base.
func (s *Sanitizer) resolveSymlinks(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		if !s.allowSymlinks && resolved != path {
			return "", errors.NewSecurityError(errors.CodeSymlinkDenied, "symlinked path rejected").
				WithContext("path", path).
				WithContext("target", resolved).
				WithComponent("pathsec")
		}
		return resolved, nil
	}

	if !os.IsNotExist(err) {
		return "", errors.NewIOError("PATH_RESOLVE_FAILED", "cannot resolve path", err).
			WithComponent("pathsec")
	}

	dir, file := filepath.Split(path)
	dir = filepath.Clean(dir)
	if dir == path {
		// Walked up to the root without finding an existing ancestor.
		return path, nil
	}

	resolvedDir, err := s.resolveSymlinks(dir)
	if err != nil {
		return "", err
	}

	return filepath.Join(resolvedDir, file), nil
}

// contains reports whether path sits inside base's subtree. The comparison is
// separator-aware: /var/templates2 is not inside /var/templates.
func contains(base, path string) bool {
	if path == base {
		return true
	}

	return strings.HasPrefix(path, base+string(filepath.Separator))
}

// printable makes attacker-controlled input safe to embed in error context.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '�'
		}
		return r
	}, s)
}
