// Package audit provides the tamper-evident security event trail: buffered
// append-only JSONL files with size-based rotation, retention cleanup, a
// stable per-deployment machine identity, and filtered queries over the
// on-disk history.
//
// This is a security log, not an operational one: Close must be called on
// shutdown so the tail of the trail is never lost.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/right-flow/docguard/internal/errors"
)

const (
	filePrefix = "audit-"
	fileSuffix = ".log"

	// ISO-8601-like, filesystem-safe, nanosecond precision so rotations in
	// the same instant cannot collide.
	fileTimeFormat = "2006-01-02T15-04-05.000000000"

	// Audit files carry security metadata; owner-only access.
	fileMode = 0o600
)

// Config mirrors the audit section of the configuration surface.
type Config struct {
	LogDir        string
	MaxFileSize   int64
	RetentionDays int
	EnableConsole bool
	BufferSize    int
	// FlushInterval bounds how long a buffered entry can sit in memory.
	// Zero disables the background flusher; entries then reach disk on
	// buffer overflow, Flush, or Close.
	FlushInterval time.Duration
}

// Logger is the append-only audit trail. All methods are safe for concurrent
// use; entries become durable on buffer overflow, Flush, or Close.
type Logger struct {
	cfg       Config
	machineID string

	mu       sync.Mutex
	buffer   []Entry
	file     *os.File
	filePath string
	fileSize int64
	closed   bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Logger, creating LogDir if needed and binding to the
// directory's persistent machine identity.
func New(cfg Config) (*Logger, error) {
	if cfg.LogDir == "" || cfg.MaxFileSize <= 0 || cfg.RetentionDays < 1 || cfg.BufferSize < 1 || cfg.FlushInterval < 0 {
		return nil, errors.NewConfigError("INVALID_CONFIG",
			fmt.Sprintf("audit logger options invalid: dir=%q maxFileSize=%d retentionDays=%d bufferSize=%d flushInterval=%v",
				cfg.LogDir, cfg.MaxFileSize, cfg.RetentionDays, cfg.BufferSize, cfg.FlushInterval))
	}

	if err := os.MkdirAll(cfg.LogDir, 0o700); err != nil {
		return nil, errors.NewIOError("LOG_DIR_CREATE_FAILED", "cannot create audit log directory", err).
			WithContext("dir", cfg.LogDir)
	}

	machineID, err := loadOrCreateMachineID(cfg.LogDir)
	if err != nil {
		return nil, err
	}

	l := &Logger{
		cfg:       cfg,
		machineID: machineID,
		buffer:    make([]Entry, 0, cfg.BufferSize),
	}

	if cfg.FlushInterval > 0 {
		l.done = make(chan struct{})
		l.wg.Add(1)
		go l.flushLoop()
	}

	return l, nil
}

// flushLoop writes the buffer through on every interval tick so entries
// never age in memory past FlushInterval, however quiet the pipeline is.
func (l *Logger) flushLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.Flush()
		}
	}
}

// MachineID returns the stable anonymous identity shared by every logger
// bound to this log directory.
func (l *Logger) MachineID() string {
	return l.machineID
}

// Log appends an entry at the given level. The buffer is written through
// once it reaches the configured size.
func (l *Logger) Log(level Level, action, message string, metadata map[string]interface{}) error {
	return l.append(Entry{
		Level:    level,
		Action:   action,
		Message:  message,
		Metadata: normalizeMetadata(metadata),
	})
}

// Info logs an informational event.
func (l *Logger) Info(action, message string, metadata map[string]interface{}) error {
	return l.Log(LevelInfo, action, message, metadata)
}

// Warn logs a warning event.
func (l *Logger) Warn(action, message string, metadata map[string]interface{}) error {
	return l.Log(LevelWarn, action, message, metadata)
}

// Error logs an error event.
func (l *Logger) Error(action, message string, metadata map[string]interface{}) error {
	return l.Log(LevelError, action, message, metadata)
}

// Security logs a security event.
func (l *Logger) Security(action, message string, metadata map[string]interface{}) error {
	return l.Log(LevelSecurity, action, message, metadata)
}

// LogDocumentAccess records that userID touched a document. Only a digest of
// the content is stored, never the content itself.
func (l *Logger) LogDocumentAccess(userID string, content []byte) error {
	digest := sha256.Sum256(content)

	return l.append(Entry{
		Level:        LevelInfo,
		Action:       "document_access",
		Message:      "document accessed",
		UserID:       userID,
		DocumentHash: hex.EncodeToString(digest[:]),
	})
}

// LogAuthAttempt records an authentication attempt outcome.
func (l *Logger) LogAuthAttempt(userID, ipAddress string, success bool) error {
	return l.append(Entry{
		Level:     LevelSecurity,
		Action:    "auth_attempt",
		Message:   "authentication attempt",
		UserID:    userID,
		IPAddress: ipAddress,
		Success:   &success,
	})
}

// LogRateLimitViolation records an admission denial for clientID.
func (l *Logger) LogRateLimitViolation(clientID, reason string) error {
	return l.append(Entry{
		Level:    LevelSecurity,
		Action:   "rate_limit_violation",
		Message:  "request denied by rate limiter",
		ClientID: clientID,
		Metadata: map[string]interface{}{"reason": reason},
	})
}

// LogSecurityViolation records a detected attack with structured context.
// Callers must pre-sanitize metadata through the pii handler.
func (l *Logger) LogSecurityViolation(action, message string, metadata map[string]interface{}) error {
	return l.Security(action, message, metadata)
}

func (l *Logger) append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errors.NewInternalError("LOGGER_CLOSED", "audit logger is closed", nil)
	}

	entry.Timestamp = time.Now().UTC()
	entry.MachineID = l.machineID

	l.buffer = append(l.buffer, entry)
	if len(l.buffer) >= l.cfg.BufferSize {
		return l.flushLocked()
	}

	return nil
}

// Flush writes all buffered entries to disk.
func (l *Logger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.flushLocked()
}

// Close flushes the buffer, stops the background flusher, and releases the
// active file. The final flush is a hard requirement: losing the tail of a
// security trail is unacceptable.
func (l *Logger) Close() error {
	l.mu.Lock()

	if l.closed {
		l.mu.Unlock()
		return nil
	}

	flushErr := l.flushLocked()
	l.closed = true

	if l.file != nil {
		if err := l.file.Close(); err != nil && flushErr == nil {
			flushErr = errors.NewIOError("LOG_CLOSE_FAILED", "cannot close audit log", err)
		}
		l.file = nil
	}
	l.mu.Unlock()

	// The flusher takes the mutex, so it must be joined outside it.
	if l.done != nil {
		close(l.done)
		l.wg.Wait()
	}

	return flushErr
}

// flushLocked writes the buffer through the active file, rotating as needed.
// Must be called with the mutex held.
func (l *Logger) flushLocked() error {
	if len(l.buffer) == 0 {
		return nil
	}

	for _, entry := range l.buffer {
		line, err := json.Marshal(entry)
		if err != nil {
			// normalizeMetadata keeps entries encodable; anything else is a
			// programming error worth surfacing, not silently dropping.
			return errors.NewInternalError("ENTRY_ENCODE_FAILED", "cannot encode audit entry", err)
		}
		line = append(line, '\n')

		if err := l.ensureFileLocked(int64(len(line))); err != nil {
			return err
		}

		n, err := l.file.Write(line)
		l.fileSize += int64(n)
		if err != nil {
			return errors.NewIOError("LOG_WRITE_FAILED", "cannot write audit entry", err).
				WithContext("path", l.filePath)
		}

		if l.cfg.EnableConsole {
			os.Stdout.Write(line)
		}
	}

	l.buffer = l.buffer[:0]

	return nil
}

// ensureFileLocked opens the active file, rotating first when the pending
// write would push it over the size cap. Must be called with the mutex held.
func (l *Logger) ensureFileLocked(pending int64) error {
	if l.file != nil && l.fileSize+pending <= l.cfg.MaxFileSize {
		return nil
	}
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return errors.NewIOError("LOG_ROTATE_FAILED", "cannot close audit log for rotation", err).
				WithContext("path", l.filePath)
		}
		l.file = nil
	}

	name := filePrefix + time.Now().UTC().Format(fileTimeFormat) + fileSuffix
	path := filepath.Join(l.cfg.LogDir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, fileMode)
	if err != nil {
		return errors.NewIOError("LOG_OPEN_FAILED", "cannot open audit log", err).
			WithContext("path", path)
	}

	l.file = file
	l.filePath = path
	l.fileSize = 0

	return nil
}

// Cleanup deletes rotated files older than the retention period. The active
// file always survives, whatever its age.
func (l *Logger) Cleanup() error {
	l.mu.Lock()
	activePath := l.filePath
	l.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)

	files, err := l.logFiles()
	if err != nil {
		return err
	}

	for _, path := range files {
		if path == activePath {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return errors.NewIOError("LOG_CLEANUP_FAILED", "cannot delete expired audit log", err).
					WithContext("path", path)
			}
		}
	}

	return nil
}

// Query returns all on-disk entries matching filter, oldest file first.
// Buffered entries are flushed first so results are complete.
func (l *Logger) Query(filter Filter) ([]Entry, error) {
	if err := l.Flush(); err != nil {
		return nil, err
	}

	files, err := l.logFiles()
	if err != nil {
		return nil, err
	}

	var results []Entry
	for _, path := range files {
		entries, err := readEntries(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if filter.matches(entry) {
				results = append(results, entry)
			}
		}
	}

	return results, nil
}

// logFiles lists the rotation artifacts in LogDir, sorted by name, which is
// chronological given the timestamp naming.
func (l *Logger) logFiles() ([]string, error) {
	dirEntries, err := os.ReadDir(l.cfg.LogDir)
	if err != nil {
		return nil, errors.NewIOError("LOG_DIR_READ_FAILED", "cannot list audit log directory", err).
			WithContext("dir", l.cfg.LogDir)
	}

	var files []string
	for _, de := range dirEntries {
		name := de.Name()
		if !de.IsDir() && strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix) {
			files = append(files, filepath.Join(l.cfg.LogDir, name))
		}
	}
	sort.Strings(files)

	return files, nil
}

func readEntries(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("LOG_READ_FAILED", "cannot open audit log", err).
			WithContext("path", path)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			// A torn tail line from a crash must not poison the whole query.
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIOError("LOG_READ_FAILED", "cannot scan audit log", err).
			WithContext("path", path)
	}

	return entries, nil
}
