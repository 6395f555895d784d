package screen

import (
	"bytes"
	"fmt"
	"strings"

	"lockbox/internal/config"
	"lockbox/internal/lockbox"
)

// DefaultBlockedExtensions are rejected when no blocklist is configured.
var DefaultBlockedExtensions = []string{".exe", ".dll", ".bat", ".sh"}

// DefaultSignatures are the byte markers rejected when none are configured.
var DefaultSignatures = []string{"virus", "trojan", "malware"}

// Screener rejects uploads by filename extension and by a naive,
// case-insensitive substring scan of the content. It is not malware
// detection; any encoding of the content defeats it.
type Screener struct {
	extensions []string
	signatures [][]byte
}

var _ lockbox.Screener = (*Screener)(nil)

// New creates a Screener. Extensions are matched case-insensitively with or
// without a leading dot. Empty lists select the defaults.
func New(extensions, signatures []string) *Screener {
	if len(extensions) == 0 {
		extensions = DefaultBlockedExtensions
	}
	if len(signatures) == 0 {
		signatures = DefaultSignatures
	}

	s := &Screener{}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.extensions = append(s.extensions, ext)
	}
	for _, sig := range signatures {
		if sig == "" {
			continue
		}
		s.signatures = append(s.signatures, asciiLower([]byte(sig)))
	}
	return s
}

// NewFromConfig creates a Screener from the screening config section.
func NewFromConfig(cfg config.ScreeningConfig) *Screener {
	return New(cfg.BlockedExtensions, cfg.Signatures)
}

// Screen sanitizes the filename, then checks the extension blocklist, then
// the content signatures, stopping at the first failure.
func (s *Screener) Screen(filename string, content []byte) lockbox.ScreenResult {
	name := SanitizeFilename(filename)
	if name == "" {
		return lockbox.ScreenResult{
			Name:   name,
			Reason: "Invalid filename",
			Detail: fmt.Sprintf("Invalid filename: %q", filename),
		}
	}

	lowerName := strings.ToLower(name)
	for _, ext := range s.extensions {
		if strings.HasSuffix(lowerName, ext) {
			return lockbox.ScreenResult{
				Name:   name,
				Reason: "File type not allowed",
				Detail: fmt.Sprintf("Forbidden extension: %s", name),
			}
		}
	}

	lowered := asciiLower(content)
	for _, sig := range s.signatures {
		if bytes.Contains(lowered, sig) {
			return lockbox.ScreenResult{
				Name:   name,
				Reason: "Malware detected",
				Detail: fmt.Sprintf("Malware detected in %s", name),
			}
		}
	}

	return lockbox.ScreenResult{Name: name, Allowed: true}
}

// asciiLower lowercases ASCII letters only and leaves every other byte
// untouched, so arbitrary binary content keeps its length and offsets.
func asciiLower(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}
