package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lockbox/internal/config"
	"lockbox/internal/lockbox"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig("test-instance", dir, strings.Repeat("s", 32))
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Encryption = config.EncryptionConfig{Type: "test"}
	cfg.Vault = config.VaultConfig{Type: "memory", Name: "mem"}
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Staging = config.StagingConfig{Type: "memory", MaxSize: 1 << 20}
	return cfg
}

func openApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := newApp(cfg, "test", io.Discard)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *config.Config)
		want   string
	}{
		{"short token secret", func(cfg *config.Config) { cfg.Server.TokenSecret = "short" }, "token secret"},
		{"unknown vault", func(cfg *config.Config) { cfg.Vault.Type = "tape" }, "creating vault"},
		{"unknown database", func(cfg *config.Config) { cfg.Database.Type = "mongo" }, "creating database"},
		{"unknown sessions", func(cfg *config.Config) { cfg.Sessions.Type = "etcd" }, "session store"},
		{"unknown key kind", func(cfg *config.Config) { cfg.Encryption.Type = "rot13" }, "encryption key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig(t)
			tt.modify(cfg)

			_, err := newApp(cfg, "test", io.Discard)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("newApp() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestNewApp_RequiresMigratedDatabase(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Database = config.DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(cfg.BaseDir, "db")}

	_, err := newApp(cfg, "test", io.Discard)
	if err == nil || !strings.Contains(err.Error(), "lockbox db migrate") {
		t.Fatalf("newApp() on fresh database error = %v, want migrate hint", err)
	}

	migrated, err := MigrateDatabase(cfg.Database)
	if err != nil || !migrated {
		t.Fatalf("MigrateDatabase() = %v, %v", migrated, err)
	}
	openApp(t, cfg)
}

func TestMigrateDatabase_DocumentStore(t *testing.T) {
	migrated, err := MigrateDatabase(config.DatabaseConfig{Type: "json", DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("MigrateDatabase() error = %v", err)
	}
	if migrated {
		t.Error("json store should report no migration")
	}
}

func TestApp_PersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig("persist", dir, strings.Repeat("s", 32))
	cfg.Database.Type = "json"

	first := openApp(t, cfg)
	if err := first.AddUser("alice", "pw"); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	record, err := first.Service().Upload("alice", "notes.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second := openApp(t, cfg)
	content, err := second.Service().Read("alice", record.ID)
	if err != nil {
		t.Fatalf("Read() after restart error = %v", err)
	}
	if string(content) != "hello" {
		t.Errorf("Read() = %q, want %q", content, "hello")
	}

	events, err := second.AuditLog()
	if err != nil {
		t.Fatalf("AuditLog() error = %v", err)
	}
	if len(events) != 2 || events[1].Kind != lockbox.EventUploadSafe {
		t.Errorf("AuditLog() = %v", events)
	}
}

func TestApp_HTTPRoundTrip(t *testing.T) {
	a := openApp(t, memoryConfig(t))
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	post := func(path, token string, body any) *http.Response {
		t.Helper()
		data, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		return resp
	}

	creds := map[string]string{"username": "alice", "password": "pw"}
	post("/api/register", "", creds).Body.Close()
	resp := post("/api/login", "", creds)
	var login struct {
		Token string `json:"token"`
	}
	json.NewDecoder(resp.Body).Decode(&login)
	resp.Body.Close()
	if login.Token == "" {
		t.Fatal("no token from login")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "notes.txt")
	part.Write([]byte("hello"))
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var upload struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&upload)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || upload.ID == "" {
		t.Fatalf("upload status = %d, id = %q", resp.StatusCode, upload.ID)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/download/"+upload.ID, nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "hello" {
		t.Errorf("download = %q, want %q", body, "hello")
	}
}

func TestApp_SecureCookie(t *testing.T) {
	for _, secure := range []bool{false, true} {
		t.Run(fmt.Sprintf("secure_cookie=%v", secure), func(t *testing.T) {
			cfg := memoryConfig(t)
			cfg.Server.SecureCookie = secure
			a := openApp(t, cfg)
			if err := a.Service().Register("alice", "pw"); err != nil {
				t.Fatalf("Register() error = %v", err)
			}

			body := strings.NewReader(`{"username":"alice","password":"pw"}`)
			req := httptest.NewRequest(http.MethodPost, "/api/login", body)
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, req)

			cookies := rec.Result().Cookies()
			if rec.Code != http.StatusOK || len(cookies) != 1 {
				t.Fatalf("login = %d with %d cookies", rec.Code, len(cookies))
			}
			if cookies[0].Secure != secure {
				t.Errorf("cookie Secure = %v, want %v", cookies[0].Secure, secure)
			}
		})
	}
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	a := openApp(t, memoryConfig(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
