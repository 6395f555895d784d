// Package storetest provides a behavioural test suite shared by every
// lockbox.Store implementation.
package storetest

import (
	"errors"
	"testing"
	"time"

	"lockbox/internal/lockbox"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the suite. newStore must return an empty, ready-to-use store;
// the suite closes it.
func Run(t *testing.T, newStore func(t *testing.T) lockbox.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, open(t, newStore)) })
	t.Run("create and find file", func(t *testing.T) { testCreateFindFile(t, open(t, newStore)) })
	t.Run("list files for user", func(t *testing.T) { testListFiles(t, open(t, newStore)) })
	t.Run("update file", func(t *testing.T) { testUpdateFile(t, open(t, newStore)) })
	t.Run("update file callback error", func(t *testing.T) { testUpdateFileAborts(t, open(t, newStore)) })
	t.Run("delete file", func(t *testing.T) { testDeleteFile(t, open(t, newStore)) })
	t.Run("events", func(t *testing.T) { testEvents(t, open(t, newStore)) })
}

func open(t *testing.T, newStore func(t *testing.T) lockbox.Store) lockbox.Store {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { s.Close() })
	for _, name := range []string{"alice", "bob", "carol"} {
		if err := s.CreateUser(&lockbox.User{Username: name, Secret: "hash-" + name, CreatedAt: base}); err != nil {
			t.Fatalf("CreateUser(%s) error = %v", name, err)
		}
	}
	return s
}

func newRecord(id, owner string, uploaded time.Time, grants ...lockbox.PermissionGrant) *lockbox.FileRecord {
	return &lockbox.FileRecord{
		ID:          id,
		Name:        id + ".txt",
		Owner:       owner,
		Size:        5,
		Uploaded:    uploaded,
		Modified:    uploaded,
		Permissions: grants,
	}
}

func testUsers(t *testing.T, s lockbox.Store) {
	got, err := s.FindUser("alice")
	if err != nil {
		t.Fatalf("FindUser() error = %v", err)
	}
	if got == nil || got.Username != "alice" || got.Secret != "hash-alice" {
		t.Fatalf("FindUser() = %+v, want alice with hash-alice", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
	}

	missing, err := s.FindUser("mallory")
	if err != nil {
		t.Fatalf("FindUser(missing) error = %v", err)
	}
	if missing != nil {
		t.Errorf("FindUser(missing) = %+v, want nil", missing)
	}

	err = s.CreateUser(&lockbox.User{Username: "alice", Secret: "other", CreatedAt: base})
	if !errors.Is(err, lockbox.ErrUserExists) {
		t.Errorf("CreateUser(duplicate) error = %v, want ErrUserExists", err)
	}

	if err := s.UpdateUserSecret("alice", "rehashed"); err != nil {
		t.Fatalf("UpdateUserSecret() error = %v", err)
	}
	got, err = s.FindUser("alice")
	if err != nil {
		t.Fatalf("FindUser() after update error = %v", err)
	}
	if got.Secret != "rehashed" || !got.CreatedAt.Equal(base) {
		t.Errorf("FindUser() after update = %+v", got)
	}
	if err := s.UpdateUserSecret("mallory", "x"); !errors.Is(err, lockbox.ErrNotFound) {
		t.Errorf("UpdateUserSecret(missing) error = %v, want ErrNotFound", err)
	}
}

func testCreateFindFile(t *testing.T, s lockbox.Store) {
	rec := newRecord("f1", "alice", base,
		lockbox.PermissionGrant{User: "carol", Mode: lockbox.ModeWrite},
		lockbox.PermissionGrant{User: "bob", Mode: lockbox.ModeRead},
	)
	if err := s.CreateFile(rec); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}

	got, err := s.FindFile("f1")
	if err != nil {
		t.Fatalf("FindFile() error = %v", err)
	}
	if got == nil {
		t.Fatal("FindFile() = nil, want record")
	}
	if got.Name != "f1.txt" || got.Owner != "alice" || got.Size != 5 {
		t.Errorf("FindFile() = %+v", got)
	}
	if !got.Uploaded.Equal(base) || !got.Modified.Equal(base) {
		t.Errorf("timestamps = %v / %v, want %v", got.Uploaded, got.Modified, base)
	}
	if len(got.Permissions) != 2 || got.Permissions[0].User != "carol" || got.Permissions[1].User != "bob" {
		t.Errorf("Permissions = %+v, want [carol bob] in order", got.Permissions)
	}

	missing, err := s.FindFile("nope")
	if err != nil {
		t.Fatalf("FindFile(missing) error = %v", err)
	}
	if missing != nil {
		t.Errorf("FindFile(missing) = %+v, want nil", missing)
	}

	dup := newRecord("f1", "bob", base.Add(time.Minute))
	if err := s.CreateFile(dup); !errors.Is(err, lockbox.ErrFileExists) {
		t.Errorf("CreateFile(duplicate id) error = %v, want ErrFileExists", err)
	}
	kept, err := s.FindFile("f1")
	if err != nil {
		t.Fatalf("FindFile() after duplicate error = %v", err)
	}
	if kept == nil || kept.Owner != "alice" {
		t.Errorf("FindFile() after duplicate = %+v, want alice's record", kept)
	}
}

func testListFiles(t *testing.T, s lockbox.Store) {
	records := []*lockbox.FileRecord{
		newRecord("f2", "alice", base.Add(2*time.Second)),
		newRecord("f1", "alice", base.Add(time.Second), lockbox.PermissionGrant{User: "bob", Mode: lockbox.ModeRead}),
		newRecord("f3", "carol", base.Add(3*time.Second), lockbox.PermissionGrant{User: "bob", Mode: lockbox.ModeWrite}),
		newRecord("f4", "carol", base.Add(4*time.Second)),
	}
	for _, r := range records {
		if err := s.CreateFile(r); err != nil {
			t.Fatalf("CreateFile(%s) error = %v", r.ID, err)
		}
	}

	tests := []struct {
		user string
		want []string
	}{
		{"alice", []string{"f1", "f2"}},
		{"bob", []string{"f1", "f3"}},
		{"carol", []string{"f3", "f4"}},
		{"mallory", nil},
	}
	for _, tt := range tests {
		got, err := s.ListFilesForUser(tt.user)
		if err != nil {
			t.Fatalf("ListFilesForUser(%s) error = %v", tt.user, err)
		}
		var ids []string
		for _, r := range got {
			ids = append(ids, r.ID)
		}
		if len(ids) != len(tt.want) {
			t.Errorf("ListFilesForUser(%s) = %v, want %v", tt.user, ids, tt.want)
			continue
		}
		for i := range ids {
			if ids[i] != tt.want[i] {
				t.Errorf("ListFilesForUser(%s) = %v, want %v", tt.user, ids, tt.want)
				break
			}
		}
	}

	got, err := s.ListFilesForUser("bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) > 0 && len(got[0].Permissions) != 1 {
		t.Errorf("listed record permissions = %+v, want one grant", got[0].Permissions)
	}
}

func testUpdateFile(t *testing.T, s lockbox.Store) {
	if err := s.CreateFile(newRecord("f1", "alice", base)); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}

	later := base.Add(time.Hour)
	updated, err := s.UpdateFile("f1", func(r *lockbox.FileRecord) error {
		r.Size = 42
		r.Modified = later
		r.Permissions = append(r.Permissions, lockbox.PermissionGrant{User: "bob", Mode: lockbox.ModeRead})
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateFile() error = %v", err)
	}
	if updated.Size != 42 {
		t.Errorf("returned Size = %d, want 42", updated.Size)
	}

	got, err := s.FindFile("f1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Size != 42 || !got.Modified.Equal(later) || !got.Uploaded.Equal(base) {
		t.Errorf("persisted record = %+v", got)
	}
	if len(got.Permissions) != 1 || got.Permissions[0] != (lockbox.PermissionGrant{User: "bob", Mode: lockbox.ModeRead}) {
		t.Errorf("Permissions = %+v, want [bob:read]", got.Permissions)
	}

	_, err = s.UpdateFile("missing", func(r *lockbox.FileRecord) error { return nil })
	if !errors.Is(err, lockbox.ErrNotFound) {
		t.Errorf("UpdateFile(missing) error = %v, want ErrNotFound", err)
	}
}

func testUpdateFileAborts(t *testing.T, s lockbox.Store) {
	if err := s.CreateFile(newRecord("f1", "alice", base)); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}

	boom := errors.New("boom")
	_, err := s.UpdateFile("f1", func(r *lockbox.FileRecord) error {
		r.Size = 99
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("UpdateFile() error = %v, want callback error", err)
	}

	got, err := s.FindFile("f1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Size != 5 {
		t.Errorf("Size after aborted update = %d, want 5", got.Size)
	}
}

func testDeleteFile(t *testing.T, s lockbox.Store) {
	if err := s.CreateFile(newRecord("f1", "alice", base, lockbox.PermissionGrant{User: "bob", Mode: lockbox.ModeRead})); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}

	if err := s.DeleteFile("f1"); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	if err := s.DeleteFile("f1"); err != nil {
		t.Fatalf("second DeleteFile() error = %v", err)
	}

	got, err := s.FindFile("f1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("FindFile() after delete = %+v, want nil", got)
	}

	listed, err := s.ListFilesForUser("bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 0 {
		t.Errorf("ListFilesForUser(bob) after delete = %d records, want 0", len(listed))
	}
}

func testEvents(t *testing.T, s lockbox.Store) {
	events := []*lockbox.AuditEvent{
		{ID: "1.000001", Kind: lockbox.EventRegister, Detail: "User 'alice' registered", Time: base, User: "alice"},
		{ID: "1.000002", Kind: lockbox.EventUploadSafe, Detail: "notes.txt uploaded successfully", Time: base.Add(time.Second), User: "alice"},
		{ID: "1.000003", Kind: lockbox.EventUploadBlocked, Detail: "Forbidden extension: payload.exe", Time: base.Add(2 * time.Second), User: lockbox.UnknownUser},
	}
	for _, e := range events {
		if err := s.AppendEvent(e); err != nil {
			t.Fatalf("AppendEvent(%s) error = %v", e.ID, err)
		}
	}

	got, err := s.ListEvents()
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("len(ListEvents()) = %d, want %d", len(got), len(events))
	}
	for i, e := range events {
		if got[i].ID != e.ID || got[i].Kind != e.Kind || got[i].Detail != e.Detail || got[i].User != e.User {
			t.Errorf("event[%d] = %+v, want %+v", i, got[i], e)
		}
		if !got[i].Time.Equal(e.Time) {
			t.Errorf("event[%d].Time = %v, want %v", i, got[i].Time, e.Time)
		}
	}
}
