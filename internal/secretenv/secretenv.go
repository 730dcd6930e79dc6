// Package secretenv implements the symmetric authenticated-envelope
// contract for wrapped secrets (spec §6.5). The reconciliation core never
// encrypts anything itself; it only needs to recognize whether a token is
// wrapped in this envelope format, and unwrap it when a key is available.
// The envelope is version-byte 0x80, base64url-encoded, scrypt-derived
// AES-256-GCM.
package secretenv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	// Version is the envelope format's leading byte.
	Version byte = 0x80

	// MinRawLength is the minimum pre-base64 envelope length in bytes:
	// 1 (version) + 16 (scrypt salt) + 12 (GCM nonce) + 16 (GCM tag) + at
	// least 12 bytes of ciphertext.
	MinRawLength = 57

	// MinEncodedLength is the minimum base64url-encoded envelope length.
	MinEncodedLength = 80

	saltLen  = 16
	nonceLen = 12
)

var (
	// ErrNotEnvelope is returned by Unwrap when token does not look like a
	// wrapped secret at all (length or version-byte check failed).
	ErrNotEnvelope = errors.New("secretenv: not an envelope")
	// ErrMalformed is returned when the token passes the envelope
	// recognition bounds but cannot be decoded or decrypted.
	ErrMalformed = errors.New("secretenv: malformed envelope")
)

// Looks reports whether token satisfies the envelope contract's detection
// bounds: minimum encoded length, valid base64url, minimum raw length, and
// version byte 0x80 after decode. It does not attempt decryption — this is
// a cheap structural check, not a validity guarantee.
func Looks(token string) bool {
	if len(token) < MinEncodedLength {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// Tolerate standard (padded) base64url too.
		raw, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return false
		}
	}
	if len(raw) < MinRawLength {
		return false
	}
	return raw[0] == Version
}

// Wrap encrypts plaintext under a key derived from passphrase via scrypt,
// producing a base64url-encoded envelope.
func Wrap(passphrase string, plaintext []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("secretenv: generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secretenv: generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	raw := make([]byte, 0, 1+saltLen+nonceLen+len(sealed))
	raw = append(raw, Version)
	raw = append(raw, salt...)
	raw = append(raw, nonce...)
	raw = append(raw, sealed...)

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Unwrap decrypts an envelope produced by Wrap, given the same passphrase.
func Unwrap(passphrase string, token string) ([]byte, error) {
	if !Looks(token) {
		return nil, ErrNotEnvelope
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	salt := raw[1 : 1+saltLen]
	nonce := raw[1+saltLen : 1+saltLen+nonceLen]
	ciphertext := raw[1+saltLen+nonceLen:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return plaintext, nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("secretenv: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secretenv: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretenv: new gcm: %w", err)
	}
	return gcm, nil
}
