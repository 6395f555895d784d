package screen

import (
	"testing"

	"lockbox/internal/config"
)

func TestScreener_BlockedExtensions(t *testing.T) {
	s := New(nil, nil)

	tests := []struct {
		filename string
		wantOK   bool
	}{
		{"payload.exe", false},
		{"PAYLOAD.EXE", false},
		{"lib.Dll", false},
		{"run.bat", false},
		{"install.sh", false},
		{"notes.txt", true},
		{"archive.tar.gz", true},
		{"shell.shx", true},
		{"exe", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := s.Screen(tt.filename, []byte("harmless"))
			if got.Allowed != tt.wantOK {
				t.Errorf("Screen(%q).Allowed = %v, want %v (reason %q)", tt.filename, got.Allowed, tt.wantOK, got.Reason)
			}
			if !tt.wantOK && got.Reason != "File type not allowed" {
				t.Errorf("Reason = %q, want %q", got.Reason, "File type not allowed")
			}
		})
	}
}

func TestScreener_ExtensionCheckedBeforeContent(t *testing.T) {
	s := New(nil, nil)

	got := s.Screen("payload.exe", []byte("malware"))
	if got.Allowed {
		t.Fatal("Screen() allowed a blocked extension")
	}
	if got.Detail != "Forbidden extension: payload.exe" {
		t.Errorf("Detail = %q, want %q", got.Detail, "Forbidden extension: payload.exe")
	}
}

func TestScreener_Signatures(t *testing.T) {
	s := New(nil, nil)

	tests := []struct {
		name    string
		content string
		wantOK  bool
	}{
		{"virus lowercase", "this is a virus", false},
		{"trojan mixed case", "A TroJaN horse", false},
		{"malware upper", "MALWARE", false},
		{"embedded", "xxmalwarexx", false},
		{"clean", "hello", true},
		{"empty", "", true},
		{"split marker", "mal ware", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Screen("notes.txt", []byte(tt.content))
			if got.Allowed != tt.wantOK {
				t.Errorf("Screen(%q).Allowed = %v, want %v", tt.content, got.Allowed, tt.wantOK)
			}
			if !tt.wantOK && got.Detail != "Malware detected in notes.txt" {
				t.Errorf("Detail = %q, want %q", got.Detail, "Malware detected in notes.txt")
			}
		})
	}
}

func TestScreener_BinaryContent(t *testing.T) {
	s := New(nil, nil)

	content := append([]byte{0xff, 0xfe, 0x00}, []byte("ViRuS")...)
	if got := s.Screen("blob.bin", content); got.Allowed {
		t.Error("Screen() allowed signature inside binary content")
	}

	if got := s.Screen("blob.bin", []byte{0xc3, 0x28, 0x00, 0x01}); !got.Allowed {
		t.Errorf("Screen() rejected clean binary content: %q", got.Reason)
	}
}

func TestScreener_InvalidFilename(t *testing.T) {
	s := New(nil, nil)

	for _, name := range []string{"", "...", "///", "☃"} {
		if got := s.Screen(name, []byte("hello")); got.Allowed {
			t.Errorf("Screen(%q) allowed an empty sanitized name", name)
		}
	}
}

func TestScreener_SanitizesBeforeExtensionCheck(t *testing.T) {
	s := New(nil, nil)

	got := s.Screen("../bin/evil.sh", []byte("echo hi"))
	if got.Allowed {
		t.Fatal("Screen() allowed a blocked extension behind a path")
	}
	if got.Name != "bin_evil.sh" {
		t.Errorf("Name = %q, want %q", got.Name, "bin_evil.sh")
	}
}

func TestNewFromConfig(t *testing.T) {
	s := NewFromConfig(config.ScreeningConfig{
		BlockedExtensions: []string{"PS1", " .js "},
		Signatures:        []string{"EICAR"},
	})

	if got := s.Screen("script.ps1", nil); got.Allowed {
		t.Error("configured extension without dot was not blocked")
	}
	if got := s.Screen("app.JS", nil); got.Allowed {
		t.Error("configured extension with whitespace was not blocked")
	}
	if got := s.Screen("payload.exe", nil); !got.Allowed {
		t.Error("configured list should replace the defaults")
	}
	if got := s.Screen("a.txt", []byte("x-eicar-x")); got.Allowed {
		t.Error("configured signature was not matched case-insensitively")
	}
	if got := s.Screen("a.txt", []byte("virus")); !got.Allowed {
		t.Error("configured signatures should replace the defaults")
	}
}
