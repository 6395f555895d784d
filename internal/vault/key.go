package vault

import (
	"fmt"
	"strings"
)

// validateKey rejects keys that are empty or could name a path outside the
// vault's content area.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return fmt.Errorf("invalid blob key %q", key)
	}
	if strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("invalid blob key %q: contains a path separator", key)
	}
	return nil
}
