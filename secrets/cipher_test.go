package secrets

import (
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := New([]byte("root-secret"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for _, plain := range []string{"api-key-123", "x", "multi word secret with unicode é🔑"} {
		stored, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt(%q) error: %v", plain, err)
		}
		if !strings.Contains(stored, ":") {
			t.Fatalf("encrypted form missing delimiter: %q", stored)
		}

		got, err := c.Decrypt(stored)
		if err != nil {
			t.Fatalf("Decrypt error: %v", err)
		}
		if got != plain {
			t.Fatalf("round trip mismatch: got %q want %q", got, plain)
		}
	}
}

func TestEncryptUniqueIVs(t *testing.T) {
	c, err := New([]byte("root-secret"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	a, err := c.Encrypt("same-secret")
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}
	b, err := c.Encrypt("same-secret")
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}
	if a == b {
		t.Fatal("two encryptions of the same plaintext must differ (fresh IV)")
	}
}

func TestDecryptWrongRootSecret(t *testing.T) {
	c1, err := New([]byte("root-one"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c2, err := New([]byte("root-two"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	stored, err := c1.Encrypt("secret-value")
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}

	if _, err := c2.Decrypt(stored); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity for wrong key, got %v", err)
	}
}

func TestDecryptCorruptedCiphertext(t *testing.T) {
	c, err := New([]byte("root-secret"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	stored, err := c.Encrypt("secret-value")
	if err != nil {
		t.Fatalf("Encrypt error: %v", err)
	}

	// Flip the last ciphertext nibble.
	corrupted := stored[:len(stored)-1]
	if strings.HasSuffix(stored, "0") {
		corrupted += "1"
	} else {
		corrupted += "0"
	}

	if _, err := c.Decrypt(corrupted); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity for corrupted data, got %v", err)
	}
}

func TestDecryptLegacyPlaintextPassthrough(t *testing.T) {
	c, err := New([]byte("root-secret"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	got, err := c.Decrypt("legacy-unencrypted-api-key")
	if err != nil {
		t.Fatalf("Decrypt error: %v", err)
	}
	if got != "legacy-unencrypted-api-key" {
		t.Fatalf("legacy value must pass through unchanged, got %q", got)
	}
}

func TestDecryptMalformedEncryptedValue(t *testing.T) {
	c, err := New([]byte("root-secret"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for _, bad := range []string{"zz:zz", "deadbeef:", ":deadbeef", "nothex:deadbeef"} {
		if _, err := c.Decrypt(bad); !errors.Is(err, ErrMalformedCiphertext) {
			t.Fatalf("Decrypt(%q): expected ErrMalformedCiphertext, got %v", bad, err)
		}
	}
}

func TestNewMissingRootSecret(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrMissingRootSecret) {
		t.Fatalf("expected ErrMissingRootSecret, got %v", err)
	}
}

func TestEncryptEmptyInputs(t *testing.T) {
	c, err := New([]byte("root-secret"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, err := c.Encrypt(""); !errors.Is(err, ErrEmptyPlaintext) {
		t.Fatalf("expected ErrEmptyPlaintext, got %v", err)
	}
	if _, err := c.Decrypt(""); !errors.Is(err, ErrEmptyPlaintext) {
		t.Fatalf("expected ErrEmptyPlaintext, got %v", err)
	}
}

func TestParseTagging(t *testing.T) {
	stored, err := Parse("plain-old-value")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if stored.Kind != KindLegacyPlaintext || stored.Plaintext != "plain-old-value" {
		t.Fatalf("expected legacy plaintext tag, got %+v", stored)
	}

	stored, err = Parse("deadbeef:cafef00d")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if stored.Kind != KindEncrypted || len(stored.IV) != 4 || len(stored.Ciphertext) != 4 {
		t.Fatalf("expected encrypted tag with decoded parts, got %+v", stored)
	}
}
