package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"strings"

	"github.com/dervish666/KidsReadingManager-sub001/internal"
	"github.com/dervish666/KidsReadingManager-sub001/internal/kdf"
)

const (
	keySize   = 32 // AES-256
	delimiter = ":"
)

var (
	// ErrIntegrity indicates authentication-tag failure during decryption.
	// Deliberately does not distinguish "wrong key" from "corrupted data".
	ErrIntegrity = errors.New("secret integrity check failed")
	// ErrMissingRootSecret indicates encryption or decryption was attempted
	// without root key material. Deployment misconfiguration, not attacker input.
	ErrMissingRootSecret = errors.New("missing root secret")
	// ErrEmptyPlaintext indicates an attempt to encrypt nothing.
	ErrEmptyPlaintext = errors.New("empty plaintext")
	// ErrMalformedCiphertext indicates a stored value with the delimiter but
	// undecodable parts.
	ErrMalformedCiphertext = errors.New("malformed encrypted secret")
)

// Kind tags a parsed stored value.
type Kind int

const (
	// KindEncrypted marks a value produced by Encrypt: "<iv-hex>:<ct-hex>".
	KindEncrypted Kind = iota
	// KindLegacyPlaintext marks a pre-migration value stored before
	// encryption at rest existed. It decrypts to itself.
	KindLegacyPlaintext
)

// Stored is the tagged form of a tenant secret as held in configuration.
// Keeping the legacy variant explicit (rather than sniffing strings at each
// call site) makes its eventual removal a single greppable decision point.
type Stored struct {
	Kind       Kind
	IV         []byte
	Ciphertext []byte
	// Plaintext is set only for KindLegacyPlaintext.
	Plaintext string
}

// Parse classifies a stored value. A value without the delimiter is legacy
// plaintext; anything else must decode as "<iv-hex>:<ct-hex>".
func Parse(data string) (Stored, error) {
	if !strings.Contains(data, delimiter) {
		return Stored{Kind: KindLegacyPlaintext, Plaintext: data}, nil
	}

	parts := strings.SplitN(data, delimiter, 2)
	iv, err := internal.DecodeHex(parts[0])
	if err != nil || len(iv) == 0 {
		return Stored{}, fmt.Errorf("%w: bad iv", ErrMalformedCiphertext)
	}
	ct, err := internal.DecodeHex(parts[1])
	if err != nil || len(ct) == 0 {
		return Stored{}, fmt.Errorf("%w: bad ciphertext", ErrMalformedCiphertext)
	}
	return Stored{Kind: KindEncrypted, IV: iv, Ciphertext: ct}, nil
}

// Cipher encrypts and decrypts tenant-held secrets with AES-256-GCM under a
// key derived from the deployment root secret.
type Cipher struct {
	aead cipher.AEAD
}

// New derives the encryption key from rootSecret (HKDF, versioned context)
// and prepares the AEAD. Fails fast on a missing root secret — a weak or
// null key must never be produced silently.
func New(rootSecret []byte) (*Cipher, error) {
	if len(rootSecret) == 0 {
		return nil, ErrMissingRootSecret
	}

	key, err := kdf.DeriveKey(rootSecret, kdf.ContextSecretCipher, keySize)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV and returns the delimited
// stored form "<iv-hex>:<ct-hex>". The IV is unique per call and never
// reused with the same derived key.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	iv, err := internal.RandomBytes(c.aead.NonceSize())
	if err != nil {
		return "", err
	}

	ct := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	return internal.EncodeHex(iv) + delimiter + internal.EncodeHex(ct), nil
}

// Decrypt reverses Encrypt. Legacy plaintext values (no delimiter) are
// returned unchanged for backward compatibility during migration. A failed
// authentication tag surfaces as ErrIntegrity, never a raw crypto error.
func (c *Cipher) Decrypt(data string) (string, error) {
	if data == "" {
		return "", ErrEmptyPlaintext
	}

	stored, err := Parse(data)
	if err != nil {
		return "", err
	}
	if stored.Kind == KindLegacyPlaintext {
		return stored.Plaintext, nil
	}

	if len(stored.IV) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: bad iv length", ErrMalformedCiphertext)
	}

	plaintext, err := c.aead.Open(nil, stored.IV, stored.Ciphertext, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}
