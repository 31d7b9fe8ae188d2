// Package secret implements at-rest encryption for configuration strings
// prefixed "ENC:", per SPEC_FULL.md §6.4. AES-256-GCM is used with a key
// derived via scrypt from a master key and a fixed salt; the IV is the
// first 16 bytes of the decoded payload, the GCM auth tag the last 16, and
// the ciphertext the bytes in between, the whole thing base64-encoded
// after the "ENC:" prefix.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// Prefix marks a configuration string value as ciphertext.
const Prefix = "ENC:"

// fixedSalt is deliberately constant: the master key (not the salt) is the
// secret, and a fixed salt keeps the derived key stable across restarts
// without needing separate salt storage alongside every ciphertext.
var fixedSalt = []byte("gorunner-enc-v1-scrypt-salt")

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	keyLen       = 32 // AES-256
	gcmIVLen     = 16
	gcmTagLen    = 16
	gcmNonceSize = 12 // standard.GCM nonce length; derived from the leading IV bytes
)

// deriveKey stretches masterKey into a 32-byte AES key via scrypt.
func deriveKey(masterKey string) ([]byte, error) {
	if masterKey == "" {
		return nil, errors.New("secret: master key is empty")
	}
	return scrypt.Key([]byte(masterKey), fixedSalt, scryptN, scryptR, scryptP, keyLen)
}

// IsEncrypted reports whether s carries the ENC: prefix.
func IsEncrypted(s string) bool {
	return len(s) >= len(Prefix) && s[:len(Prefix)] == Prefix
}

// Encrypt produces an "ENC:<base64>" string for plaintext using masterKey.
func Encrypt(masterKey, plaintext string) (string, error) {
	key, err := deriveKey(masterKey)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("secret: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("secret: new gcm: %w", err)
	}

	iv := make([]byte, gcmIVLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("secret: generate iv: %w", err)
	}

	// GCM wants a 12-byte nonce; derive it from the first 12 bytes of our
	// 16-byte IV so the on-disk layout matches SPEC_FULL.md §6.4 exactly
	// while still satisfying crypto/cipher's API.
	sealed := gcm.Seal(nil, iv[:gcmNonceSize], []byte(plaintext), nil)
	// sealed = ciphertext || 16-byte tag (crypto/cipher appends the tag).
	if len(sealed) < gcmTagLen {
		return "", errors.New("secret: unexpected seal output length")
	}
	ciphertext := sealed[:len(sealed)-gcmTagLen]
	tag := sealed[len(sealed)-gcmTagLen:]

	payload := make([]byte, 0, gcmIVLen+len(ciphertext)+gcmTagLen)
	payload = append(payload, iv...)
	payload = append(payload, ciphertext...)
	payload = append(payload, tag...)

	return Prefix + base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt reverses Encrypt. s may include the "ENC:" prefix or not.
func Decrypt(masterKey, s string) (string, error) {
	s = trimPrefix(s)

	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("secret: decode base64: %w", err)
	}
	if len(raw) < gcmIVLen+gcmTagLen {
		return "", errors.New("secret: ciphertext too short")
	}

	iv := raw[:gcmIVLen]
	tag := raw[len(raw)-gcmTagLen:]
	ciphertext := raw[gcmIVLen : len(raw)-gcmTagLen]

	key, err := deriveKey(masterKey)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("secret: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("secret: new gcm: %w", err)
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := gcm.Open(nil, iv[:gcmNonceSize], sealed, nil)
	if err != nil {
		return "", fmt.Errorf("secret: decrypt: %w", err)
	}
	return string(plaintext), nil
}

func trimPrefix(s string) string {
	if IsEncrypted(s) {
		return s[len(Prefix):]
	}
	return s
}

// GenerateMasterKey returns a random 32-byte key, base64-encoded, suitable
// for ENV_ENCRYPTION_KEY when the operator hasn't set one (SPEC_FULL.md §6
// / spec.md §6: "if absent one is generated and reported").
func GenerateMasterKey() (string, error) {
	buf := make([]byte, keyLen)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("secret: generate master key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
