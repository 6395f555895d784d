package lockbox

import "time"

// Mode is the access mode carried by a permission grant.
type Mode string

const (
	ModeRead  Mode = "read"
	ModeWrite Mode = "write"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeRead || m == ModeWrite
}

// User is a registered account. Users are immutable once created.
type User struct {
	Username  string
	Secret    string // bcrypt hash of the password
	CreatedAt time.Time
}

// PermissionGrant gives a non-owner read or write access to a file.
type PermissionGrant struct {
	User string
	Mode Mode
}

// FileRecord describes one stored file. Its encrypted content lives in the
// vault under the record's ID.
type FileRecord struct {
	ID          string // time-derived, unique
	Name        string // sanitized display name
	Owner       string
	Size        int64 // plaintext bytes
	Uploaded    time.Time
	Modified    time.Time
	Permissions []PermissionGrant // insertion order; never contains Owner
}

// Clone returns a deep copy so callers can mutate the grant list safely.
func (f *FileRecord) Clone() *FileRecord {
	c := *f
	c.Permissions = append([]PermissionGrant(nil), f.Permissions...)
	return &c
}

// EventKind enumerates the audit event types.
type EventKind string

const (
	EventRegister      EventKind = "REGISTER"
	EventLogin         EventKind = "LOGIN"
	EventLogout        EventKind = "LOGOUT"
	EventUploadSafe    EventKind = "UPLOAD_SAFE"
	EventUploadBlocked EventKind = "UPLOAD_BLOCKED"
	EventEdit          EventKind = "EDIT"
	EventDelete        EventKind = "DELETE"
	EventShare         EventKind = "SHARE"
)

// UnknownUser is recorded as the actor of events raised without a session.
const UnknownUser = "unknown"

// AuditEvent is an immutable record of a security-relevant action.
type AuditEvent struct {
	ID     string // time-derived
	Kind   EventKind
	Detail string
	Time   time.Time
	User   string
}
