package screen

import "strings"

// windowsDeviceNames cannot be used as filenames on Windows regardless of extension.
var windowsDeviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeFilename reduces a client-supplied filename to a flat, safe name.
// Path separators become word breaks, runs of whitespace become a single
// underscore, anything outside [A-Za-z0-9_.-] is dropped, and leading or
// trailing dots and underscores are trimmed. The result never contains a
// path component and may be empty.
//
//	"../../etc/passwd"   -> "etc_passwd"
//	"My Notes (v2).txt"  -> "My_Notes_v2.txt"
func SanitizeFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '.' || r == '-':
			b.WriteRune(r)
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return ""
	}

	stem := strings.ToUpper(strings.SplitN(out, ".", 2)[0])
	if windowsDeviceNames[stem] {
		out = "_" + out
	}
	return out
}
