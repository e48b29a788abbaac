package audit

import "time"

// Level classifies audit entries. SECURITY is reserved for events that must
// survive for forensic reconstruction of an attack.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarn     Level = "WARN"
	LevelError    Level = "ERROR"
	LevelSecurity Level = "SECURITY"
)

// Entry is one immutable audit record, serialized as a single JSON line.
// Entries never contain raw PII: callers sanitize via the pii handler before
// logging.
type Entry struct {
	Timestamp    time.Time              `json:"timestamp"`
	Level        Level                  `json:"level"`
	Action       string                 `json:"action"`
	Message      string                 `json:"message"`
	MachineID    string                 `json:"machineId"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	DocumentHash string                 `json:"documentHash,omitempty"`
	UserID       string                 `json:"userId,omitempty"`
	ClientID     string                 `json:"clientId,omitempty"`
	IPAddress    string                 `json:"ipAddress,omitempty"`
	Success      *bool                  `json:"success,omitempty"`
}

// Filter selects entries in Query. Zero values match everything.
type Filter struct {
	From   time.Time
	To     time.Time
	Action string
	Level  Level
}

// matches reports whether entry passes the filter.
func (f Filter) matches(entry Entry) bool {
	if !f.From.IsZero() && entry.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && entry.Timestamp.After(f.To) {
		return false
	}
	if f.Action != "" && entry.Action != f.Action {
		return false
	}
	if f.Level != "" && entry.Level != f.Level {
		return false
	}

	return true
}
