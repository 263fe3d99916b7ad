// Package fieldcrypt encrypts single persisted text fields with a key derived
// from an operator passphrase.
//
// Blob format: base64(IV[16] || AES-256-CBC ciphertext), PKCS#7 padded.
package fieldcrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
)

// KeySize is the length in bytes of generated passphrases.
const KeySize = 32

var (
	// ErrNotInitialized is returned by Encrypt and Decrypt when no key is configured.
	ErrNotInitialized = errors.New("encryption not initialized")
	// ErrDecrypt is returned when a blob cannot be decoded or decrypted.
	ErrDecrypt = errors.New("decryption failed")
)

// Codec encrypts and decrypts field values. The zero value and Disabled()
// are uninitialised codecs. A Codec is immutable and safe for concurrent use.
type Codec struct {
	key []byte
}

// New derives a codec from passphrase. The key is SHA-256(passphrase).
//
// Precondition: passphrase must not be empty.
// Postcondition: Returns an initialised Codec, or an error for an empty passphrase.
func New(passphrase string) (*Codec, error) {
	if passphrase == "" {
		return nil, errors.New("fieldcrypt: passphrase must not be empty")
	}
	sum := sha256.Sum256([]byte(passphrase))
	return &Codec{key: sum[:]}, nil
}

// Disabled returns a codec without a key.
func Disabled() *Codec {
	return &Codec{}
}

// Initialized reports whether the codec has a key.
func (c *Codec) Initialized() bool {
	return c != nil && len(c.key) == sha256.Size
}

// Fingerprint returns a short digest of the key suitable for status output,
// or "" when uninitialised.
func (c *Codec) Fingerprint() string {
	if !c.Initialized() {
		return ""
	}
	return Hash(string(c.key))[:12]
}

// Encrypt encrypts plaintext under a fresh random IV.
//
// Postcondition: Two calls with the same plaintext return different blobs.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if !c.Initialized() {
		return "", ErrNotInitialized
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: %w", err)
	}
	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("fieldcrypt: generating iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
//
// Postcondition: Returns the plaintext, ErrNotInitialized, or an error wrapping ErrDecrypt.
func (c *Codec) Decrypt(blob string) (string, error) {
	if !c.Initialized() {
		return "", ErrNotInitialized
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: blob length %d", ErrDecrypt, len(raw))
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: %w", err)
	}
	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)
	plain, err = unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Hash returns base64(SHA-256(text)).
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// VerifyHash reports whether hash is Hash(text), in constant time.
func VerifyHash(text, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(text)), []byte(hash)) == 1
}

// GenerateKey returns KeySize random bytes, base64 encoded.
func GenerateKey() (string, error) {
	buf := make([]byte, KeySize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("fieldcrypt: generating key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecrypt)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecrypt)
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecrypt)
		}
	}
	return b[:len(b)-n], nil
}
