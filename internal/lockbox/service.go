package lockbox

import (
	"bytes"
	"errors"
	"fmt"
)

// FileService is the orchestration layer that coordinates screening,
// encryption, metadata and auditing. It is the only component the HTTP
// layer talks to.
//
// Every operation takes the acting username supplied by the session
// collaborator; an empty actor means the caller is not authenticated.
type FileService struct {
	store        Store
	blobs        *EncryptedBlobStore
	screener     Screener
	staging      StagingArea
	logger       Logger
	clock        Clock
	idgen        IDGenerator
	passwordCost int
}

// NewFileService creates a new FileService with the provided dependencies.
func NewFileService(store Store, blobs *EncryptedBlobStore, screener Screener, staging StagingArea, logger Logger, clock Clock, idgen IDGenerator) *FileService {
	return &FileService{
		store:        store,
		blobs:        blobs,
		screener:     screener,
		staging:      staging,
		logger:       logger,
		clock:        clock,
		idgen:        idgen,
		passwordCost: defaultPasswordCost,
	}
}

// Upload screens the file and, if it is allowed, encrypts and stores it and
// creates its record. Both outcomes are recorded in the audit log.
func (s *FileService) Upload(actor, filename string, content []byte) (*FileRecord, error) {
	if actor == "" {
		return nil, ErrAuthenticationRequired
	}

	result := s.screener.Screen(filename, content)
	if !result.Allowed {
		s.recordEvent(EventUploadBlocked, result.Detail, actor)
		s.logger.Warn("upload blocked", "user", actor, "name", result.Name, "reason", result.Reason)
		return nil, &RejectionError{Reason: result.Reason}
	}

	now := s.clock.Now()
	record := &FileRecord{
		Name:     result.Name,
		Owner:    actor,
		Size:     int64(len(content)),
		Uploaded: now,
		Modified: now,
	}

	// The record claims the identifier before any content is written, so a
	// colliding identifier can never overwrite or erase another file's blob.
	if err := s.claimID(record); err != nil {
		return nil, err
	}

	if err := s.blobs.Store(record.ID, content); err != nil {
		if delErr := s.store.DeleteFile(record.ID); delErr != nil {
			s.logger.Error("orphaned record after failed upload", "id", record.ID, "error", delErr)
		}
		return nil, fmt.Errorf("storing content: %w", err)
	}

	s.recordEvent(EventUploadSafe, fmt.Sprintf("%s uploaded successfully", record.Name), actor)
	s.logger.Info("file uploaded", "id", record.ID, "name", record.Name, "size", record.Size)
	return record, nil
}

// ListFiles returns the records the actor owns or has been granted access to.
func (s *FileService) ListFiles(actor string) ([]*FileRecord, error) {
	if actor == "" {
		return nil, ErrAuthenticationRequired
	}

	records, err := s.store.ListFilesForUser(actor)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return records, nil
}

// Read decrypts and returns the content of a file the actor can read.
func (s *FileService) Read(actor, id string) ([]byte, error) {
	record, err := s.authorize(actor, id, PermissionRead)
	if err != nil {
		return nil, err
	}

	content, err := s.blobs.Retrieve(record.ID)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", record.ID, err)
	}
	return content, nil
}

// Write replaces the content of a file the actor can write, updating its
// size and modified timestamp.
func (s *FileService) Write(actor, id string, content []byte) (*FileRecord, error) {
	if actor == "" {
		return nil, ErrAuthenticationRequired
	}

	// The blob is replaced inside the record update so concurrent writers of
	// the same file are serialized and a failed encrypt leaves the record untouched.
	stored := false
	updated, err := s.store.UpdateFile(id, func(record *FileRecord) error {
		if !Resolve(record, actor).CanWrite() {
			return fmt.Errorf("%w: %s cannot write %s", ErrAuthorizationDenied, actor, record.ID)
		}
		if err := s.blobs.Store(record.ID, content); err != nil {
			return fmt.Errorf("storing content: %w", err)
		}
		stored = true
		record.Size = int64(len(content))
		record.Modified = s.clock.Now()
		return nil
	})
	if err != nil {
		if stored {
			s.logger.Error("record update failed after content was replaced", "id", id, "user", actor, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrPartialWrite, err)
		}
		return nil, err
	}

	s.recordEvent(EventEdit, fmt.Sprintf("%s edited %s", actor, updated.Name), actor)
	s.logger.Info("file edited", "id", updated.ID, "user", actor, "size", updated.Size)
	return updated, nil
}

// Delete erases a file's content and then its record. Only the owner may
// delete. If the content is erased but the record removal fails the error
// wraps ErrPartialDelete; retrying is safe because erasure is idempotent.
func (s *FileService) Delete(actor, id string) error {
	if actor == "" {
		return ErrAuthenticationRequired
	}

	record, err := s.loadFile(id)
	if err != nil {
		return err
	}
	if record.Owner != actor {
		return fmt.Errorf("%w: only the owner can delete %s", ErrAuthorizationDenied, record.ID)
	}

	if err := s.blobs.Erase(record.ID); err != nil {
		return fmt.Errorf("deleting %s: %w", record.ID, err)
	}

	if err := s.store.DeleteFile(record.ID); err != nil {
		s.logger.Error("record removal failed after content erase", "id", record.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrPartialDelete, err)
	}

	s.recordEvent(EventDelete, fmt.Sprintf("%s deleted file %s", actor, record.Name), actor)
	s.logger.Info("file deleted", "id", record.ID, "user", actor)
	return nil
}

// Download decrypts a file into a temporary artifact and passes it to fn.
// The artifact is released when fn returns, whether or not fn succeeded.
func (s *FileService) Download(actor, id string, fn func(artifact Artifact) error) error {
	record, err := s.authorize(actor, id, PermissionRead)
	if err != nil {
		return err
	}

	content, err := s.blobs.Retrieve(record.ID)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", record.ID, err)
	}

	artifact, err := s.staging.Stage(record.Name, bytes.NewReader(content), int64(len(content)), record.Modified)
	if err != nil {
		return fmt.Errorf("staging download: %w", err)
	}
	defer func() {
		if err := artifact.Release(); err != nil {
			s.logger.Error("releasing download artifact", "id", record.ID, "error", err)
		}
	}()

	return fn(artifact)
}

// Share grants grantee the given mode on a file owned by the actor.
// A grantee already present keeps its position and gets the new mode.
func (s *FileService) Share(actor, id, grantee string, mode Mode) (*FileRecord, error) {
	if actor == "" {
		return nil, ErrAuthenticationRequired
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidGrant, mode)
	}
	if grantee == "" {
		return nil, fmt.Errorf("%w: missing grantee", ErrInvalidGrant)
	}

	user, err := s.store.FindUser(grantee)
	if err != nil {
		return nil, fmt.Errorf("finding grantee: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, grantee)
	}

	updated, err := s.store.UpdateFile(id, func(record *FileRecord) error {
		if record.Owner != actor {
			return fmt.Errorf("%w: only the owner can share %s", ErrAuthorizationDenied, record.ID)
		}
		if grantee == record.Owner {
			return fmt.Errorf("%w: owner already has full access", ErrInvalidGrant)
		}
		record.Permissions = upsertGrant(record.Permissions, PermissionGrant{User: grantee, Mode: mode})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordEvent(EventShare, fmt.Sprintf("%s shared %s with %s (%s)", actor, updated.Name, grantee, mode), actor)
	s.logger.Info("file shared", "id", updated.ID, "grantee", grantee, "mode", string(mode))
	return updated, nil
}

// Meta returns the record of a file the actor can read.
func (s *FileService) Meta(actor, id string) (*FileRecord, error) {
	return s.authorize(actor, id, PermissionRead)
}

// Events returns the audit log, oldest first.
func (s *FileService) Events(actor string) ([]*AuditEvent, error) {
	if actor == "" {
		return nil, ErrAuthenticationRequired
	}

	events, err := s.store.ListEvents()
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}

// loadFile returns the record for id or an error wrapping ErrNotFound.
func (s *FileService) loadFile(id string) (*FileRecord, error) {
	record, err := s.store.FindFile(id)
	if err != nil {
		return nil, fmt.Errorf("finding file: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}
	return record, nil
}

// authorize loads the record and checks the actor holds at least need.
func (s *FileService) authorize(actor, id string, need PermissionLevel) (*FileRecord, error) {
	if actor == "" {
		return nil, ErrAuthenticationRequired
	}

	record, err := s.loadFile(id)
	if err != nil {
		return nil, err
	}

	level := Resolve(record, actor)
	allowed := level.CanRead()
	if need == PermissionWrite {
		allowed = level.CanWrite()
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s has %s access to %s", ErrAuthorizationDenied, actor, level, record.ID)
	}
	return record, nil
}

// recordEvent appends to the audit log. A failed append is logged but does
// not fail the operation, whose effect has already been applied.
func (s *FileService) recordEvent(kind EventKind, detail, actor string) {
	if actor == "" {
		actor = UnknownUser
	}
	event := &AuditEvent{
		ID:     s.idgen.New(),
		Kind:   kind,
		Detail: detail,
		Time:   s.clock.Now(),
		User:   actor,
	}
	if err := s.store.AppendEvent(event); err != nil {
		s.logger.Error("audit append failed", "event", string(kind), "detail", detail, "error", err)
	}
}

// upsertGrant replaces the mode of an existing grant for g.User in place,
// dropping any later duplicates, or appends g.
func upsertGrant(grants []PermissionGrant, g PermissionGrant) []PermissionGrant {
	out := make([]PermissionGrant, 0, len(grants)+1)
	found := false
	for _, existing := range grants {
		if existing.User != g.User {
			out = append(out, existing)
			continue
		}
		if !found {
			out = append(out, g)
			found = true
		}
	}
	if !found {
		out = append(out, g)
	}
	return out
}

// maxIDAttempts bounds how many fresh identifiers Upload tries when the
// generator hands out one that is already taken.
const maxIDAttempts = 5

// claimID assigns record a fresh identifier and inserts it.
func (s *FileService) claimID(record *FileRecord) error {
	for attempt := 1; ; attempt++ {
		record.ID = s.idgen.New()
		err := s.store.CreateFile(record)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrFileExists) || attempt == maxIDAttempts {
			return fmt.Errorf("creating file record: %w", err)
		}
		s.logger.Warn("file id collision, retrying", "id", record.ID, "attempt", attempt)
	}
}
