package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(dir string) Config {
	return Config{
		LogDir:        dir,
		MaxFileSize:   1 << 20,
		RetentionDays: 30,
		BufferSize:    10,
	}
}

func newTestLogger(t *testing.T, cfg Config) *Logger {
	t.Helper()

	logger, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	return logger
}

func diskEntries(t *testing.T, logger *Logger) []Entry {
	t.Helper()

	entries, err := logger.Query(Filter{})
	require.NoError(t, err)

	return entries
}

func TestLogger_BuffersUntilThreshold(t *testing.T) {
	dir := t.TempDir()
	logger := newTestLogger(t, testConfig(dir))

	for i := 0; i < 9; i++ {
		require.NoError(t, logger.Info("fill", "buffered", nil))
	}

	// Nothing on disk yet: nine entries sit below the buffer size of ten.
	files, err := logger.logFiles()
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, logger.Info("fill", "tenth entry", nil))

	files, err = logger.logFiles()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestLogger_PeriodicFlushDrainsQuietBuffer(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.FlushInterval = 10 * time.Millisecond
	logger := newTestLogger(t, cfg)

	// One entry, far below the buffer threshold of ten. Only the ticker can
	// put it on disk.
	require.NoError(t, logger.Info("quiet", "aging entry", nil))

	require.Eventually(t, func() bool {
		files, err := logger.logFiles()
		return err == nil && len(files) > 0
	}, time.Second, 5*time.Millisecond)

	entries := diskEntries(t, logger)
	require.Len(t, entries, 1)
	assert.Equal(t, "aging entry", entries[0].Message)
}

func TestLogger_FlushWritesPartialBuffer(t *testing.T) {
	logger := newTestLogger(t, testConfig(t.TempDir()))

	require.NoError(t, logger.Warn("check", "single entry", nil))
	require.NoError(t, logger.Flush())

	entries := diskEntries(t, logger)
	require.Len(t, entries, 1)
	assert.Equal(t, LevelWarn, entries[0].Level)
	assert.Equal(t, "check", entries[0].Action)
}

func TestLogger_CloseFlushesTail(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(testConfig(dir))
	require.NoError(t, err)

	require.NoError(t, logger.Security("violation", "tail entry", nil))
	require.NoError(t, logger.Close())

	// A fresh logger over the same directory sees the entry.
	reader := newTestLogger(t, testConfig(dir))
	entries := diskEntries(t, reader)
	require.Len(t, entries, 1)
	assert.Equal(t, "tail entry", entries[0].Message)

	// Logging after close is refused.
	assert.Error(t, logger.Info("late", "x", nil))
	assert.NoError(t, logger.Close())
}

func TestLogger_RotationKeepsEveryEntry(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.MaxFileSize = 150 // A line or two per file
	cfg.BufferSize = 1
	logger := newTestLogger(t, cfg)

	for i := 0; i < 20; i++ {
		require.NoError(t, logger.Info("rotate", "entry", map[string]interface{}{"n": i}))
	}

	files, err := logger.logFiles()
	require.NoError(t, err)
	assert.Greater(t, len(files), 1, "rotation should have produced multiple files")

	assert.Len(t, diskEntries(t, logger), 20)
}

func TestLogger_MachineIDStableAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first := newTestLogger(t, testConfig(dir))
	id := first.MachineID()
	require.NotEmpty(t, id)
	require.NoError(t, first.Close())

	second := newTestLogger(t, testConfig(dir))
	assert.Equal(t, id, second.MachineID())

	// The identity rides on every entry.
	require.NoError(t, second.Info("check", "x", nil))
	require.NoError(t, second.Flush())
	entries := diskEntries(t, second)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].MachineID)
}

func TestLogger_MachineIDRegeneratedWhenSidecarDeleted(t *testing.T) {
	dir := t.TempDir()

	first := newTestLogger(t, testConfig(dir))
	id := first.MachineID()
	require.NoError(t, first.Close())

	require.NoError(t, os.Remove(filepath.Join(dir, machineIDFile)))

	second := newTestLogger(t, testConfig(dir))
	assert.NotEqual(t, id, second.MachineID())
}

func TestLogger_CleanupHonorsRetention(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.RetentionDays = 7
	logger := newTestLogger(t, cfg)

	// Fabricate an expired rotation artifact.
	old := filepath.Join(dir, filePrefix+"2020-01-01T00-00-00.000000000"+fileSuffix)
	require.NoError(t, os.WriteFile(old, []byte("{}\n"), 0o600))
	expired := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(old, expired, expired))

	require.NoError(t, logger.Info("keep", "active file entry", nil))
	require.NoError(t, logger.Flush())

	require.NoError(t, logger.Cleanup())

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err), "expired file should be deleted")

	files, err := logger.logFiles()
	require.NoError(t, err)
	assert.Len(t, files, 1, "active file must survive cleanup")
}

func TestLogger_QueryFilters(t *testing.T) {
	logger := newTestLogger(t, testConfig(t.TempDir()))

	require.NoError(t, logger.Info("document_fill", "ok", nil))
	require.NoError(t, logger.Security("path_violation", "traversal blocked", nil))
	require.NoError(t, logger.Security("rate_limit_violation", "denied", nil))
	require.NoError(t, logger.Error("document_fill", "render failed", nil))

	byLevel, err := logger.Query(Filter{Level: LevelSecurity})
	require.NoError(t, err)
	assert.Len(t, byLevel, 2)

	byAction, err := logger.Query(Filter{Action: "document_fill"})
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	both, err := logger.Query(Filter{Action: "path_violation", Level: LevelSecurity})
	require.NoError(t, err)
	assert.Len(t, both, 1)

	future, err := logger.Query(Filter{From: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)

	past, err := logger.Query(Filter{To: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestLogger_DocumentAccessStoresDigestOnly(t *testing.T) {
	logger := newTestLogger(t, testConfig(t.TempDir()))

	content := []byte("very sensitive document body")
	require.NoError(t, logger.LogDocumentAccess("user-7", content))
	require.NoError(t, logger.Flush())

	entries := diskEntries(t, logger)
	require.Len(t, entries, 1)
	assert.Equal(t, "user-7", entries[0].UserID)
	assert.Len(t, entries[0].DocumentHash, 64)

	raw := readRawLogs(t, logger)
	assert.NotContains(t, raw, "very sensitive document body")
}

func TestLogger_TypedSecurityEvents(t *testing.T) {
	logger := newTestLogger(t, testConfig(t.TempDir()))

	require.NoError(t, logger.LogAuthAttempt("user-1", "10.0.0.9", false))
	require.NoError(t, logger.LogRateLimitViolation("client-4", "RATE_LIMITED"))
	require.NoError(t, logger.LogSecurityViolation("bidi_attack", "override stripped", map[string]interface{}{"field": "fileName"}))

	entries := diskEntries(t, logger)
	require.Len(t, entries, 3)
	for _, entry := range entries {
		assert.Equal(t, LevelSecurity, entry.Level)
	}

	auth := entries[0]
	require.NotNil(t, auth.Success)
	assert.False(t, *auth.Success)
	assert.Equal(t, "10.0.0.9", auth.IPAddress)
	assert.Equal(t, "client-4", entries[1].ClientID)
}

func TestLogger_CyclicMetadataDoesNotFail(t *testing.T) {
	logger := newTestLogger(t, testConfig(t.TempDir()))

	cyclic := map[string]interface{}{"safe": "value"}
	cyclic["self"] = cyclic

	require.NoError(t, logger.Security("cycle", "self-referential metadata", cyclic))

	entries := diskEntries(t, logger)
	require.Len(t, entries, 1)
	assert.Equal(t, "value", entries[0].Metadata["safe"])
	assert.Equal(t, cycleMarker, entries[0].Metadata["self"])
}

func TestLogger_TimestampsAreISO(t *testing.T) {
	logger := newTestLogger(t, testConfig(t.TempDir()))

	require.NoError(t, logger.Info("ts", "x", nil))
	require.NoError(t, logger.Flush())

	raw := readRawLogs(t, logger)
	assert.Regexp(t, `"timestamp":"\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`, raw)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{LogDir: "", MaxFileSize: 1, RetentionDays: 1, BufferSize: 1})
	assert.Error(t, err)

	_, err = New(Config{LogDir: t.TempDir(), MaxFileSize: 0, RetentionDays: 1, BufferSize: 1})
	assert.Error(t, err)

	_, err = New(Config{LogDir: t.TempDir(), MaxFileSize: 1, RetentionDays: 1, BufferSize: 1, FlushInterval: -time.Second})
	assert.Error(t, err)
}

func readRawLogs(t *testing.T, logger *Logger) string {
	t.Helper()

	files, err := logger.logFiles()
	require.NoError(t, err)

	var sb strings.Builder
	for _, path := range files {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		sb.Write(data)
	}

	return sb.String()
}
