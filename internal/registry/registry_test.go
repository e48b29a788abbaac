package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/right-flow/docguard/internal/audit"
	"github.com/right-flow/docguard/internal/errors"
	"github.com/right-flow/docguard/internal/verify"
)

var cleanPDF = []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF")

func newTestVerifier(t *testing.T) *verify.Verifier {
	t.Helper()

	v, err := verify.New(verify.Config{
		Algorithm:          "sha256",
		Encoding:           "hex",
		CheckJavaScript:    true,
		CheckEmbeddedFiles: true,
		ThrowOnMismatch:    true,
	})
	require.NoError(t, err)

	return v
}

func newTestRegistry(t *testing.T, auditor *audit.Logger) (*Registry, string) {
	t.Helper()

	dir := t.TempDir()
	r, err := New(filepath.Join(dir, "manifest.yml"), newTestVerifier(t), auditor, nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	return r, dir
}

func writeTemplate(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	return path
}

func TestPublishAndVerify(t *testing.T) {
	r, dir := newTestRegistry(t, nil)
	path := writeTemplate(t, dir, "contract.pdf", cleanPDF)

	checksum, err := r.Publish(path)
	require.NoError(t, err)
	assert.Len(t, checksum, 64)

	got, ok := r.Checksum(path)
	assert.True(t, ok)
	assert.Equal(t, checksum, got)

	assert.NoError(t, r.Verify(path))
}

func TestPublish_RefusesDangerousTemplate(t *testing.T) {
	r, dir := newTestRegistry(t, nil)
	path := writeTemplate(t, dir, "evil.pdf", []byte("%PDF-1.7 /JavaScript /JS (x)"))

	_, err := r.Publish(path)
	require.Error(t, err)
	assert.Equal(t, errors.CodeJavaScriptDetected, errors.CodeOf(err))

	_, ok := r.Checksum(path)
	assert.False(t, ok, "dangerous template must not become trusted")
}

func TestVerify_UnpublishedTemplate(t *testing.T) {
	r, dir := newTestRegistry(t, nil)
	path := writeTemplate(t, dir, "unknown.pdf", cleanPDF)

	err := r.Verify(path)
	require.Error(t, err)
	assert.Equal(t, "TEMPLATE_NOT_PUBLISHED", errors.CodeOf(err))
}

func TestVerify_DetectsTampering(t *testing.T) {
	r, dir := newTestRegistry(t, nil)
	path := writeTemplate(t, dir, "form.pdf", cleanPDF)

	_, err := r.Publish(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 tampered"), 0o644))

	err = r.Verify(path)
	require.Error(t, err)
	assert.Equal(t, errors.CodeChecksumMismatch, errors.CodeOf(err))
}

func TestManifestPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.yml")
	path := writeTemplate(t, dir, "persist.pdf", cleanPDF)

	first, err := New(manifestPath, newTestVerifier(t), nil, nil)
	require.NoError(t, err)
	_, err = first.Publish(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(manifestPath, newTestVerifier(t), nil, nil)
	require.NoError(t, err)
	defer second.Close()

	assert.NoError(t, second.Verify(path))
	assert.Equal(t, []string{path}, second.Paths())
}

func TestVerifyAll_ReportsEveryTemplate(t *testing.T) {
	r, dir := newTestRegistry(t, nil)

	good := writeTemplate(t, dir, "good.pdf", cleanPDF)
	bad := writeTemplate(t, dir, "bad.pdf", append(cleanPDF, []byte(" padding")...))

	_, err := r.Publish(good)
	require.NoError(t, err)
	_, err = r.Publish(bad)
	require.NoError(t, err)

	// Tamper after publishing.
	require.NoError(t, os.WriteFile(bad, []byte("%PDF-1.7 changed"), 0o644))

	results := r.VerifyAll()
	require.Len(t, results, 2)
	assert.True(t, results[good])
	assert.False(t, results[bad])
}

func TestWatch_AuditsTampering(t *testing.T) {
	auditDir := t.TempDir()
	auditor, err := audit.New(audit.Config{
		LogDir:        auditDir,
		MaxFileSize:   1 << 20,
		RetentionDays: 7,
		BufferSize:    1,
	})
	require.NoError(t, err)
	defer auditor.Close()

	r, dir := newTestRegistry(t, auditor)
	path := writeTemplate(t, dir, "watched.pdf", cleanPDF)

	_, err = r.Publish(path)
	require.NoError(t, err)

	require.NoError(t, r.Watch())

	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 tampered after publish"), 0o644))

	// The watcher re-verifies asynchronously.
	require.Eventually(t, func() bool {
		entries, qerr := auditor.Query(audit.Filter{Action: "template_tampered"})
		return qerr == nil && len(entries) > 0
	}, 5*time.Second, 50*time.Millisecond)

	entries, err := auditor.Query(audit.Filter{Action: "template_tampered"})
	require.NoError(t, err)
	assert.Equal(t, audit.LevelSecurity, entries[0].Level)
	assert.Equal(t, errors.CodeChecksumMismatch, entries[0].Metadata["code"])

	require.NoError(t, r.Close())
}
