// Package kdf derives per-purpose keys from the deployment root secret.
//
// Each consumer passes a fixed, versioned context string (for example
// "krm:secret-cipher:v1"). Namespacing by context keeps the signing key and
// the encryption key independent even though both come from the same root
// secret, and versioning lets a future derivation change coexist with data
// produced by the current one.
package kdf

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Context strings for every key the engine derives. New purposes get new
// entries; existing entries never change meaning.
const (
	ContextAccessToken  = "krm:access-token:v1"
	ContextSecretCipher = "krm:secret-cipher:v1"
)

// ErrEmptyRootSecret indicates key derivation was attempted without root
// key material. A missing root secret must never degrade to a weak key.
var ErrEmptyRootSecret = errors.New("kdf: empty root secret")

// DeriveKey expands rootSecret into size bytes of key material bound to the
// given context string using HKDF-SHA256.
func DeriveKey(rootSecret []byte, context string, size int) ([]byte, error) {
	if len(rootSecret) == 0 {
		return nil, ErrEmptyRootSecret
	}
	if context == "" {
		return nil, errors.New("kdf: empty context")
	}

	key := make([]byte, size)
	r := hkdf.New(sha256.New, rootSecret, nil, []byte(context))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
