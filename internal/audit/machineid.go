package audit

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/right-flow/docguard/internal/errors"
)

// machineIDFile is the hidden sidecar holding the deployment's stable
// anonymous identity. Owner-only: the identity links log files to a
// deployment and should not be world-readable.
const machineIDFile = ".machine-id"

// loadOrCreateMachineID reads the machine identity for logDir, generating
// and persisting a fresh one on first use. Later logger instances in the
// same directory report the same identity; the id only changes if the
// sidecar file is deleted.
func loadOrCreateMachineID(logDir string) (string, error) {
	path := filepath.Join(logDir, machineIDFile)

	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
		// Empty or truncated sidecar: fall through and regenerate.
	} else if !os.IsNotExist(err) {
		return "", errors.NewIOError("MACHINE_ID_READ_FAILED", "cannot read machine id", err).
			WithContext("path", path)
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", errors.NewIOError("MACHINE_ID_WRITE_FAILED", "cannot persist machine id", err).
			WithContext("path", path)
	}

	return id, nil
}
