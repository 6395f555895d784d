package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lockbox/internal/lockbox"
	"lockbox/internal/lockbox/storetest"
)

func newTestStore(t *testing.T) *DocumentStore {
	t.Helper()
	s, err := NewDocumentStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDocumentStore() error = %v", err)
	}
	return s
}

func TestDocumentStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) lockbox.Store {
		return newTestStore(t)
	})
}

func TestDocumentStore_LoadSave(t *testing.T) {
	s := newTestStore(t)

	empty, err := s.Load(CollectionFiles)
	if err != nil {
		t.Fatalf("Load() on fresh store error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Load() on fresh store = %v, want empty", empty)
	}

	docs := map[string]json.RawMessage{
		"alice": json.RawMessage(`{"password":"x"}`),
	}
	if err := s.Save(CollectionUsers, docs); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load(CollectionUsers)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// Saved files are indented, so compare the compacted document.
	var compact bytes.Buffer
	if err := json.Compact(&compact, got["alice"]); err != nil {
		t.Fatalf("Load()[alice] is not valid JSON: %v", err)
	}
	if compact.String() != `{"password":"x"}` {
		t.Errorf("Load()[alice] = %s", compact.String())
	}

	if _, err := s.Load("secrets"); err == nil {
		t.Error("Load() of unknown collection should fail")
	}
}

func TestDocumentStore_FileLayout(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2024, 3, 1, 9, 30, 15, 0, time.UTC)

	if err := s.CreateFile(&lockbox.FileRecord{
		ID:          "1709285415.000001",
		Name:        "notes.txt",
		Owner:       "alice",
		Size:        5,
		Uploaded:    at,
		Modified:    at,
		Permissions: []lockbox.PermissionGrant{{User: "bob", Mode: lockbox.ModeRead}},
	}); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	if err := s.AppendEvent(&lockbox.AuditEvent{
		ID: "1709285415.000002", Kind: lockbox.EventUploadSafe,
		Detail: "notes.txt uploaded successfully", Time: at, User: "alice",
	}); err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}

	var files map[string]map[string]any
	readJSON(t, filepath.Join(s.dir, "files.json"), &files)
	doc := files["1709285415.000001"]
	if doc["uploaded"] != "2024-03-01 09:30:15" {
		t.Errorf("uploaded = %v, want %q", doc["uploaded"], "2024-03-01 09:30:15")
	}
	perms, ok := doc["permissions"].([]any)
	if !ok || len(perms) != 1 {
		t.Fatalf("permissions = %v, want one entry", doc["permissions"])
	}
	if grant := perms[0].(map[string]any); grant["user"] != "bob" || grant["mode"] != "read" {
		t.Errorf("permissions[0] = %v, want bob/read", grant)
	}

	var logs map[string]map[string]string
	readJSON(t, filepath.Join(s.dir, "logs.json"), &logs)
	entry := logs["1709285415.000002"]
	if entry["event"] != "UPLOAD_SAFE" || entry["user"] != "alice" || entry["time"] != "2024-03-01 09:30:15" {
		t.Errorf("log entry = %v", entry)
	}
}

func TestDocumentStore_EmptyPermissionsEncodeAsArray(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	if err := s.CreateFile(&lockbox.FileRecord{ID: "1.1", Name: "a", Owner: "alice", Uploaded: now, Modified: now}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, "files.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"permissions": []`) {
		t.Errorf("files.json = %s, want empty permissions array", data)
	}
}

func TestDocumentStore_ReadsLegacyDocuments(t *testing.T) {
	s := newTestStore(t)

	writeFile(t, filepath.Join(s.dir, "users.json"), `{"alice": {"password": "$2a$10$hash"}}`)
	writeFile(t, filepath.Join(s.dir, "logs.json"), `{
    "1712345678.9": {"event": "LOGIN", "detail": "User 'alice' logged in", "time": "2024-04-05 19:34:38", "user": "alice"},
    "1712345678.12": {"event": "REGISTER", "detail": "User 'alice' registered", "time": "2024-04-05 19:34:38", "user": "unknown"}
}`)

	user, err := s.FindUser("alice")
	if err != nil {
		t.Fatalf("FindUser() error = %v", err)
	}
	if user == nil || user.Secret != "$2a$10$hash" {
		t.Fatalf("FindUser() = %+v", user)
	}
	if !user.CreatedAt.IsZero() {
		t.Errorf("CreatedAt = %v, want zero for legacy user", user.CreatedAt)
	}

	events, err := s.ListEvents()
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 2 || events[0].Kind != lockbox.EventRegister || events[1].Kind != lockbox.EventLogin {
		t.Errorf("ListEvents() order = %v, want REGISTER then LOGIN", events)
	}
}

func TestDocumentStore_CorruptDocumentFailsLoudly(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, filepath.Join(s.dir, "files.json"), `{"oops": `)

	if _, err := s.FindFile("x"); !errors.Is(err, ErrCorruptDocument) {
		t.Errorf("FindFile() error = %v, want ErrCorruptDocument", err)
	}
	if err := s.DeleteFile("x"); !errors.Is(err, ErrCorruptDocument) {
		t.Errorf("DeleteFile() error = %v, want ErrCorruptDocument", err)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, "files.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"oops": ` {
		t.Error("corrupt document was overwritten")
	}
}

func TestDocumentStore_BadTimestamp(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, filepath.Join(s.dir, "files.json"),
		`{"1.1": {"id": "1.1", "name": "a", "owner": "alice", "size": 1, "uploaded": "yesterday", "modified": "", "permissions": []}}`)

	if _, err := s.FindFile("1.1"); !errors.Is(err, ErrCorruptDocument) {
		t.Errorf("FindFile() error = %v, want ErrCorruptDocument", err)
	}
}

func TestIDLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1.000001", "1.000002", true},
		{"9.5", "10.1", true},
		{"10.1", "9.5", false},
		{"5.09", "5.1", true},
		{"5.1", "5.1", false},
	}
	for _, tt := range tests {
		if got := idLess(tt.a, tt.b); got != tt.want {
			t.Errorf("idLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decoding %s: %v", path, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}
