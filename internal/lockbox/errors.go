package lockbox

import "errors"

// Caller-visible failures. Service methods wrap these with context, so
// callers should match with errors.Is.
var (
	// ErrAuthenticationRequired indicates the call was made without an active session.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrAuthorizationDenied indicates the actor's permission level is insufficient.
	ErrAuthorizationDenied = errors.New("permission denied")

	// ErrNotFound indicates an unknown file identifier or username.
	ErrNotFound = errors.New("not found")

	// ErrValidationRejected indicates the upload screener rejected the file.
	ErrValidationRejected = errors.New("upload rejected")

	// ErrDecryption indicates stored ciphertext is absent, corrupt, or was
	// encrypted under a different key.
	ErrDecryption = errors.New("unable to decrypt content")
)

// Account and sharing errors.
var (
	// ErrUserExists indicates a registration for a username that is taken.
	ErrUserExists = errors.New("user already exists")

	// ErrFileExists indicates a file record with the same identifier is
	// already stored.
	ErrFileExists = errors.New("file already exists")

	// ErrInvalidCredentials indicates an unknown username or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidGrant indicates a share request with a bad mode or grantee.
	ErrInvalidGrant = errors.New("invalid permission grant")

	// ErrPartialDelete indicates the encrypted content was erased but the
	// file record could not be removed. Retrying the delete is safe.
	ErrPartialDelete = errors.New("content erased but record removal failed")

	// ErrPartialWrite indicates new content was stored but the record update
	// that follows it failed, so size and modified time are stale. Retrying
	// the write with the same content repairs the record.
	ErrPartialWrite = errors.New("content replaced but record update failed")
)

// RejectionError carries the screener's human-readable reason.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return ErrValidationRejected.Error() + ": " + e.Reason
}

func (e *RejectionError) Unwrap() error {
	return ErrValidationRejected
}
