package lockbox

// Store provides metadata storage for users, file records and the audit log.
// Updates to a single file record are atomic: UpdateFile applies fn to a
// freshly loaded copy and persists the result without interleaving with
// other writers of the same record.
type Store interface {
	// User operations

	// CreateUser inserts a new user. Returns ErrUserExists if the username is taken.
	CreateUser(user *User) error

	// FindUser returns the user with the given name, or nil if there is none.
	FindUser(username string) (*User, error)

	// UpdateUserSecret replaces a user's stored password hash.
	// Returns ErrNotFound if there is no such user.
	UpdateUserSecret(username, secret string) error

	// File operations

	// CreateFile inserts a new file record. Returns ErrFileExists if the
	// identifier is already taken; the existing record is left untouched.
	CreateFile(record *FileRecord) error

	// FindFile returns the record with the given id, or nil if there is none.
	FindFile(id string) (*FileRecord, error)

	// ListFilesForUser returns records the user owns or holds a grant on,
	// ordered by upload time.
	ListFilesForUser(username string) ([]*FileRecord, error)

	// UpdateFile atomically loads the record, applies fn and saves it.
	// Returns ErrNotFound if the record does not exist. If fn returns an
	// error nothing is written and that error is returned. Side effects of
	// fn outside the store are not rolled back if the save fails.
	UpdateFile(id string, fn func(record *FileRecord) error) (*FileRecord, error)

	// DeleteFile removes the record. Deleting a missing record is not an error.
	DeleteFile(id string) error

	// Audit log operations

	// AppendEvent appends an event to the audit log.
	AppendEvent(event *AuditEvent) error

	// ListEvents returns audit events, oldest first.
	ListEvents() ([]*AuditEvent, error)

	// Close releases the underlying resources.
	Close() error
}
