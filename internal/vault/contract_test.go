package vault

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"lockbox/internal/lockbox"
)

// runVaultContract exercises the behaviour every lockbox.Vault must share.
func runVaultContract(t *testing.T, newVault func(t *testing.T) lockbox.Vault) {
	t.Run("put then get", func(t *testing.T) {
		v := newVault(t)
		data := "hello world"

		if err := v.Put("1700000000.000001", strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.Get("1700000000.000001", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("Get() = %q, want %q", buf.String(), data)
		}
	})

	t.Run("put replaces", func(t *testing.T) {
		v := newVault(t)

		if err := v.Put("k", strings.NewReader("version 1"), 9); err != nil {
			t.Fatalf("first Put() error = %v", err)
		}
		if err := v.Put("k", strings.NewReader("v2"), 2); err != nil {
			t.Fatalf("second Put() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.Get("k", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != "v2" {
			t.Errorf("Get() = %q, want %q", buf.String(), "v2")
		}

		size, err := v.Size("k")
		if err != nil {
			t.Fatalf("Size() error = %v", err)
		}
		if size != 2 {
			t.Errorf("Size() = %d, want 2", size)
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		v := newVault(t)
		if err := v.Put("k", strings.NewReader("hello"), 100); err == nil {
			t.Error("Put() expected error for size mismatch")
		}
	})

	t.Run("missing blob", func(t *testing.T) {
		v := newVault(t)

		var buf bytes.Buffer
		if err := v.Get("missing", &buf); !errors.Is(err, lockbox.ErrBlobNotFound) {
			t.Errorf("Get() error = %v, want ErrBlobNotFound", err)
		}
		if _, err := v.Size("missing"); !errors.Is(err, lockbox.ErrBlobNotFound) {
			t.Errorf("Size() error = %v, want ErrBlobNotFound", err)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		v := newVault(t)

		if err := v.Put("k", strings.NewReader("data"), 4); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := v.Delete("k"); err != nil {
			t.Fatalf("first Delete() error = %v", err)
		}
		if err := v.Delete("k"); err != nil {
			t.Fatalf("second Delete() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.Get("k", &buf); !errors.Is(err, lockbox.ErrBlobNotFound) {
			t.Errorf("Get() after Delete error = %v, want ErrBlobNotFound", err)
		}
	})

	t.Run("rejects escaping keys", func(t *testing.T) {
		v := newVault(t)
		for _, key := range []string{"", "..", "../etc", "a/b", `a\b`} {
			if err := v.Put(key, strings.NewReader("x"), 1); err == nil {
				t.Errorf("Put(%q) expected error", key)
			}
		}
	})
}
