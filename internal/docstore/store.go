package docstore

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"lockbox/internal/lockbox"
)

type userDoc struct {
	Password string `json:"password"`
	Created  string `json:"created,omitempty"`
}

type grantDoc struct {
	User string `json:"user"`
	Mode string `json:"mode"`
}

type fileDoc struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Owner       string     `json:"owner"`
	Size        int64      `json:"size"`
	Uploaded    string     `json:"uploaded"`
	Modified    string     `json:"modified"`
	Permissions []grantDoc `json:"permissions"`
}

type logDoc struct {
	Event  string `json:"event"`
	Detail string `json:"detail"`
	Time   string `json:"time"`
	User   string `json:"user"`
}

var _ lockbox.Store = (*DocumentStore)(nil)

func (s *DocumentStore) CreateUser(user *lockbox.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := load[userDoc](s, CollectionUsers)
	if err != nil {
		return err
	}
	if _, ok := users[user.Username]; ok {
		return fmt.Errorf("%w: %s", lockbox.ErrUserExists, user.Username)
	}

	users[user.Username] = userDoc{Password: user.Secret, Created: formatTime(user.CreatedAt)}
	return save(s, CollectionUsers, users)
}

func (s *DocumentStore) FindUser(username string) (*lockbox.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := load[userDoc](s, CollectionUsers)
	if err != nil {
		return nil, err
	}
	doc, ok := users[username]
	if !ok {
		return nil, nil
	}

	created, err := parseTime(doc.Created)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", username, err)
	}
	return &lockbox.User{Username: username, Secret: doc.Password, CreatedAt: created}, nil
}

func (s *DocumentStore) UpdateUserSecret(username, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := load[userDoc](s, CollectionUsers)
	if err != nil {
		return err
	}
	doc, ok := users[username]
	if !ok {
		return fmt.Errorf("%w: user %s", lockbox.ErrNotFound, username)
	}

	doc.Password = secret
	users[username] = doc
	return save(s, CollectionUsers, users)
}

func (s *DocumentStore) CreateFile(record *lockbox.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := load[fileDoc](s, CollectionFiles)
	if err != nil {
		return err
	}
	if _, ok := files[record.ID]; ok {
		return fmt.Errorf("%w: %s", lockbox.ErrFileExists, record.ID)
	}

	files[record.ID] = toFileDoc(record)
	return save(s, CollectionFiles, files)
}

func (s *DocumentStore) FindFile(id string) (*lockbox.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := load[fileDoc](s, CollectionFiles)
	if err != nil {
		return nil, err
	}
	doc, ok := files[id]
	if !ok {
		return nil, nil
	}
	return fromFileDoc(id, doc)
}

func (s *DocumentStore) ListFilesForUser(username string) ([]*lockbox.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := load[fileDoc](s, CollectionFiles)
	if err != nil {
		return nil, err
	}

	records := []*lockbox.FileRecord{}
	for id, doc := range files {
		record, err := fromFileDoc(id, doc)
		if err != nil {
			return nil, err
		}
		if lockbox.VisibleTo(record, username) {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Uploaded.Equal(records[j].Uploaded) {
			return records[i].Uploaded.Before(records[j].Uploaded)
		}
		return idLess(records[i].ID, records[j].ID)
	})
	return records, nil
}

// UpdateFile holds the store lock across the whole read-modify-write, so
// concurrent updates of any file are applied one at a time.
func (s *DocumentStore) UpdateFile(id string, fn func(record *lockbox.FileRecord) error) (*lockbox.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := load[fileDoc](s, CollectionFiles)
	if err != nil {
		return nil, err
	}
	doc, ok := files[id]
	if !ok {
		return nil, fmt.Errorf("%w: file %s", lockbox.ErrNotFound, id)
	}

	record, err := fromFileDoc(id, doc)
	if err != nil {
		return nil, err
	}
	if err := fn(record); err != nil {
		return nil, err
	}

	files[id] = toFileDoc(record)
	if err := save(s, CollectionFiles, files); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *DocumentStore) DeleteFile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := load[fileDoc](s, CollectionFiles)
	if err != nil {
		return err
	}
	if _, ok := files[id]; !ok {
		return nil
	}

	delete(files, id)
	return save(s, CollectionFiles, files)
}

func (s *DocumentStore) AppendEvent(event *lockbox.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := load[logDoc](s, CollectionLogs)
	if err != nil {
		return err
	}

	logs[event.ID] = logDoc{
		Event:  string(event.Kind),
		Detail: event.Detail,
		Time:   formatTime(event.Time),
		User:   event.User,
	}
	return save(s, CollectionLogs, logs)
}

func (s *DocumentStore) ListEvents() ([]*lockbox.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := load[logDoc](s, CollectionLogs)
	if err != nil {
		return nil, err
	}

	events := make([]*lockbox.AuditEvent, 0, len(logs))
	for id, doc := range logs {
		ts, err := parseTime(doc.Time)
		if err != nil {
			return nil, fmt.Errorf("log %s: %w", id, err)
		}
		events = append(events, &lockbox.AuditEvent{
			ID:     id,
			Kind:   lockbox.EventKind(doc.Event),
			Detail: doc.Detail,
			Time:   ts,
			User:   doc.User,
		})
	}

	sort.Slice(events, func(i, j int) bool { return idLess(events[i].ID, events[j].ID) })
	return events, nil
}

// Close is a no-op; every operation writes through.
func (s *DocumentStore) Close() error {
	return nil
}

func toFileDoc(r *lockbox.FileRecord) fileDoc {
	grants := make([]grantDoc, len(r.Permissions))
	for i, g := range r.Permissions {
		grants[i] = grantDoc{User: g.User, Mode: string(g.Mode)}
	}
	return fileDoc{
		ID:          r.ID,
		Name:        r.Name,
		Owner:       r.Owner,
		Size:        r.Size,
		Uploaded:    formatTime(r.Uploaded),
		Modified:    formatTime(r.Modified),
		Permissions: grants,
	}
}

func fromFileDoc(id string, d fileDoc) (*lockbox.FileRecord, error) {
	uploaded, err := parseTime(d.Uploaded)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", id, err)
	}
	modified, err := parseTime(d.Modified)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", id, err)
	}

	var grants []lockbox.PermissionGrant
	for _, g := range d.Permissions {
		grants = append(grants, lockbox.PermissionGrant{User: g.User, Mode: lockbox.Mode(g.Mode)})
	}

	return &lockbox.FileRecord{
		ID:          id,
		Name:        d.Name,
		Owner:       d.Owner,
		Size:        d.Size,
		Uploaded:    uploaded,
		Modified:    modified,
		Permissions: grants,
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrCorruptDocument, s)
	}
	return t, nil
}

// idLess orders "<seconds>.<fraction>" identifiers numerically.
func idLess(a, b string) bool {
	aInt, aFrac, _ := strings.Cut(a, ".")
	bInt, bFrac, _ := strings.Cut(b, ".")
	if len(aInt) != len(bInt) {
		return len(aInt) < len(bInt)
	}
	if aInt != bInt {
		return aInt < bInt
	}
	return aFrac < bFrac
}
