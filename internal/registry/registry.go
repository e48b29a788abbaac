// Package registry binds template files to their trusted checksums. The
// manifest is written at publish time and consulted at use time; an optional
// filesystem watcher re-verifies templates as soon as they change on disk so
// tampering is caught before the next fill request.
package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/right-flow/docguard/internal/audit"
	"github.com/right-flow/docguard/internal/errors"
	"github.com/right-flow/docguard/internal/logging"
	"github.com/right-flow/docguard/internal/verify"
)

// manifest is the on-disk YAML shape: template path → trusted checksum.
type manifest struct {
	Templates map[string]string `yaml:"templates"`
}

// Registry tracks published templates and verifies them on demand or on
// change. Safe for concurrent use.
type Registry struct {
	manifestPath string
	verifier     *verify.Verifier
	auditor      *audit.Logger
	logger       logging.Logger

	mu        sync.Mutex
	templates map[string]string

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a Registry over manifestPath, loading the existing manifest if
// present. The auditor may be nil when no audit trail is wired (tests, CLI
// one-shots).
func New(manifestPath string, verifier *verify.Verifier, auditor *audit.Logger, logger logging.Logger) (*Registry, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := &Registry{
		manifestPath: manifestPath,
		verifier:     verifier,
		auditor:      auditor,
		logger:       logger.WithComponent("registry"),
		templates:    make(map[string]string),
	}

	if err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.manifestPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.NewIOError("MANIFEST_READ_FAILED", "cannot read template manifest", err).
			WithContext("path", r.manifestPath)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return errors.NewIOError("MANIFEST_PARSE_FAILED", "cannot parse template manifest", err).
			WithContext("path", r.manifestPath)
	}

	if m.Templates != nil {
		r.templates = m.Templates
	}

	return nil
}

func (r *Registry) saveLocked() error {
	data, err := yaml.Marshal(manifest{Templates: r.templates})
	if err != nil {
		return errors.NewInternalError("MANIFEST_ENCODE_FAILED", "cannot encode template manifest", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.manifestPath), 0o755); err != nil {
		return errors.NewIOError("MANIFEST_WRITE_FAILED", "cannot create manifest directory", err).
			WithContext("path", r.manifestPath)
	}

	if err := os.WriteFile(r.manifestPath, data, 0o644); err != nil {
		return errors.NewIOError("MANIFEST_WRITE_FAILED", "cannot write template manifest", err).
			WithContext("path", r.manifestPath)
	}

	return nil
}

// Publish computes the template's checksum and records it as trusted. The
// template must pass the safety scan first: a template with embedded scripts
// never becomes trusted.
func (r *Registry) Publish(path string) (string, error) {
	if err := r.verifier.ScanPDF(path); err != nil {
		return "", err
	}

	checksum, err := r.verifier.ChecksumFile(path)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates[path] = checksum
	if err := r.saveLocked(); err != nil {
		return "", err
	}

	r.logger.Info(context.Background(), "template published", "path", path)

	return checksum, nil
}

// Checksum returns the trusted checksum recorded for path.
func (r *Registry) Checksum(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	checksum, ok := r.templates[path]

	return checksum, ok
}

// Verify validates path against its recorded checksum and the safety scan.
func (r *Registry) Verify(path string) error {
	checksum, ok := r.Checksum(path)
	if !ok {
		return errors.NewValidationError("TEMPLATE_NOT_PUBLISHED", "template has no trusted checksum").
			WithContext("path", path).
			WithComponent("registry")
	}

	return r.verifier.ValidateTemplate(path, checksum)
}

// VerifyAll validates every published template and reports per-path results
// without aborting early.
func (r *Registry) VerifyAll() map[string]bool {
	r.mu.Lock()
	snapshot := make(map[string]string, len(r.templates))
	for path, checksum := range r.templates {
		snapshot[path] = checksum
	}
	r.mu.Unlock()

	return r.verifier.ValidateBatch(snapshot)
}

// Paths returns the published template paths, sorted.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]string, 0, len(r.templates))
	for path := range r.templates {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	return paths
}

// Watch starts a filesystem watcher over the directories containing
// published templates. A modified template is re-verified immediately;
// failures are logged as SECURITY audit events.
func (r *Registry) Watch() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewInternalError("WATCHER_FAILED", "cannot create filesystem watcher", err)
	}

	dirs := make(map[string]bool)
	for path := range r.templates {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return errors.NewIOError("WATCHER_FAILED", "cannot watch template directory", err).
				WithContext("dir", dir)
		}
	}

	r.watcher = watcher
	r.done = make(chan struct{})
	r.wg.Add(1)
	go r.watchLoop(watcher)

	return nil
}

func (r *Registry) watchLoop(watcher *fsnotify.Watcher) {
	defer r.wg.Done()

	for {
		select {
		case <-r.done:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			r.handleChange(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn(context.Background(), err, "watcher error")
		}
	}
}

func (r *Registry) handleChange(path string) {
	if _, published := r.Checksum(path); !published {
		return
	}

	err := r.Verify(path)
	if err == nil {
		r.logger.Debug(context.Background(), "template re-verified after change", "path", path)
		return
	}

	r.logger.Warn(context.Background(), err, "published template failed re-verification", "path", path)

	if r.auditor != nil {
		r.auditor.LogSecurityViolation("template_tampered", "published template changed on disk",
			map[string]interface{}{
				"path": path,
				"code": errors.CodeOf(err),
			})
	}
}

// Close stops the watcher. The registry remains usable for verification.
func (r *Registry) Close() error {
	r.mu.Lock()
	watcher := r.watcher
	done := r.done
	r.watcher = nil
	r.mu.Unlock()

	if watcher == nil {
		return nil
	}

	close(done)
	err := watcher.Close()
	r.wg.Wait()

	return err
}
