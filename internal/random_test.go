package internal

import (
	"strings"
	"testing"
)

func TestRandomBytesLengthAndUniqueness(t *testing.T) {
	a, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes error: %v", err)
	}
	b, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes error: %v", err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("unexpected lengths: %d, %d", len(a), len(b))
	}
	if string(a) == string(b) {
		t.Fatal("two RandomBytes calls returned identical output")
	}
}

func TestNewOpaqueTokenIsHeaderSafe(t *testing.T) {
	token, err := NewOpaqueToken(48)
	if err != nil {
		t.Fatalf("NewOpaqueToken error: %v", err)
	}
	if strings.ContainsAny(token, "+/= \t\n") {
		t.Fatalf("token contains non-header-safe characters: %q", token)
	}
	raw, err := DecodeB64URL(token)
	if err != nil {
		t.Fatalf("token is not valid base64url: %v", err)
	}
	if len(raw) != 48 {
		t.Fatalf("expected 48 raw bytes, got %d", len(raw))
	}
}

func TestHashTokenDeterministicAndOneWay(t *testing.T) {
	h1 := HashToken("some-token")
	h2 := HashToken("some-token")
	if h1 != h2 {
		t.Fatal("HashToken is not deterministic")
	}
	if h1 == HashToken("other-token") {
		t.Fatal("distinct tokens hashed identically")
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestConstantTimeEquals(t *testing.T) {
	if !ConstantTimeEquals("abc", "abc") {
		t.Fatal("equal strings reported unequal")
	}
	if ConstantTimeEquals("abc", "abd") {
		t.Fatal("unequal strings reported equal")
	}
	if ConstantTimeEquals("abc", "abcd") {
		t.Fatal("different lengths reported equal")
	}
}
