package screen

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"notes.txt", "notes.txt"},
		{"My Notes (v2).txt", "My_Notes_v2.txt"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\Users\alice\report.pdf`, "C_Users_alice_report.pdf"},
		{"  spaced   out  .md", "spaced_out_.md"},
		{".hidden", "hidden"},
		{"__init__.py", "init__.py"},
		{"résumé.doc", "rsum.doc"},
		{"con.txt", "_con.txt"},
		{"NUL", "_NUL"},
		{"...", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
